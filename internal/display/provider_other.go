//go:build !windows

package display

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const xrandrTimeout = 3 * time.Second

// " 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1"
var xrandrMonitorPattern = regexp.MustCompile(`(\d+)/\d+x(\d+)/\d+\+(-?\d+)\+(-?\d+)`)

// SystemProvider enumerates monitors with `xrandr --listmonitors`.
type SystemProvider struct {
	// run is a test seam returning the xrandr output.
	run func(ctx context.Context) ([]byte, error)
}

// NewSystemProvider returns the platform monitor provider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{run: runXrandr}
}

func runXrandr(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "xrandr", "--listmonitors").Output()
}

// Monitors implements Provider.
func (p *SystemProvider) Monitors() ([]Bounds, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xrandrTimeout)
	defer cancel()

	out, err := p.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("xrandr --listmonitors: %w", err)
	}
	return parseXrandrMonitors(string(out))
}

func parseXrandrMonitors(out string) ([]Bounds, error) {
	var bounds []Bounds
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Monitors:") {
			continue
		}
		m := xrandrMonitorPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var vals [4]int
		for i := range vals {
			v, err := strconv.Atoi(m[i+1])
			if err != nil {
				return nil, fmt.Errorf("parse xrandr line %q: %w", line, err)
			}
			vals[i] = v
		}
		bounds = append(bounds, Bounds{X: vals[2], Y: vals[3], Width: vals[0], Height: vals[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		return nil, errors.New("xrandr reported no monitors")
	}
	return bounds, nil
}
