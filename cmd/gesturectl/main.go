// Command gesturectl sends one control command to a running gesturekeys
// process and mirrors its output and exit code.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gesturekeys/internal/ipc"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// sendFn is replaced in tests.
var sendFn = ipc.Send

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gesturectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("pipe", "", "control pipe endpoint (default: per-user endpoint or $GESTUREKEYS_PIPE)")
	verbose := fs.Bool("v", false, "log the request and response to stderr")
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		printUsage(fs)
		return exitUsage
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(stderr, "[DEBUG-CTL] ", log.LstdFlags|log.Lmsgprefix)
	}
	debugf := func(format string, v ...any) {
		if logger != nil {
			logger.Printf(format, v...)
		}
	}

	req := ipc.Request{Command: strings.ToLower(fs.Arg(0)), Args: fs.Args()[1:]}
	target := strings.TrimSpace(*endpoint)
	if target == "" {
		target = ipc.DefaultEndpoint()
	}
	debugf("sending command=%s args=%v endpoint=%s", req.Command, req.Args, target)

	resp, err := sendFn(target, req)
	if err != nil {
		debugf("ipc error: %v", err)
		if ipc.IsConnectionError(err) {
			fmt.Fprintf(stderr, "no gesturekeys process listening on %s (is gesturekeys running?)\n", target)
			return exitError
		}
		fmt.Fprintln(stderr, err.Error())
		return exitError
	}
	debugf("response: exit=%d stdout=%d bytes stderr=%d bytes", resp.ExitCode, len(resp.Stdout), len(resp.Stderr))

	if resp.Stdout != "" {
		_, _ = io.WriteString(stdout, resp.Stdout)
	}
	if resp.Stderr != "" {
		_, _ = io.WriteString(stderr, resp.Stderr)
	}
	return resp.ExitCode
}
