// Package ipc carries control commands between gesturectl and the running
// gesturekeys process: a named pipe on Windows, a unix socket elsewhere.
// Each connection carries one newline-delimited JSON request and one
// newline-delimited JSON response.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gesturekeys/internal/userutil"
)

// endpointEnvVar overrides the default endpoint when it passes validation.
const endpointEnvVar = "GESTUREKEYS_PIPE"

// Request is a single control command.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the result of a control command, shaped like a process exit.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// CommandExecutor handles a request and returns a response.
type CommandExecutor interface {
	Execute(req Request) Response
}

// ExecutorFunc adapts a function to CommandExecutor.
type ExecutorFunc func(req Request) Response

// Execute implements CommandExecutor.
func (f ExecutorFunc) Execute(req Request) Response { return f(req) }

// DefaultEndpoint returns the pipe or socket path to use. If GESTUREKEYS_PIPE
// is set and passes pattern validation, its value is used; otherwise a
// per-user default is constructed from the current username.
func DefaultEndpoint() string {
	if v, ok := trustedEndpointFromEnv(); ok {
		return v
	}
	return defaultEndpointFor(userutil.CurrentUsername())
}

func trustedEndpointFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(endpointEnvVar))
	if value == "" {
		return "", false
	}
	if !endpointPattern.MatchString(value) {
		slog.Warn("[ipc] "+endpointEnvVar+" rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// readLine reads one newline-terminated message of at most limit bytes. A
// final line without a newline is accepted; an empty stream returns io.EOF.
func readLine(r io.Reader, limit int) ([]byte, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(limit, 4096)), limit)
	if sc.Scan() {
		return sc.Bytes(), nil
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("message exceeds %d bytes", limit)
		}
		return nil, err
	}
	return nil, io.EOF
}
