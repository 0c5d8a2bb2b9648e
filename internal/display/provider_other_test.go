//go:build !windows

package display

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseXrandrMonitors(t *testing.T) {
	out := "Monitors: 2\n" +
		" 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1\n" +
		" 1: +HDMI-1 2560/597x1440/336+1920+0  HDMI-1\n"

	got, err := parseXrandrMonitors(out)
	if err != nil {
		t.Fatalf("parseXrandrMonitors() error = %v", err)
	}
	want := []Bounds{
		{X: 0, Y: 0, Width: 1920, Height: 1080},
		{X: 1920, Y: 0, Width: 2560, Height: 1440},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseXrandrMonitors() = %+v, want %+v", got, want)
	}
}

func TestParseXrandrMonitorsNegativeOffset(t *testing.T) {
	got, err := parseXrandrMonitors(" 0: +DP-2 1280/300x1024/240+-1280+100  DP-2\n")
	if err != nil {
		t.Fatalf("parseXrandrMonitors() error = %v", err)
	}
	want := []Bounds{{X: -1280, Y: 100, Width: 1280, Height: 1024}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseXrandrMonitors() = %+v, want %+v", got, want)
	}
}

func TestParseXrandrMonitorsEmpty(t *testing.T) {
	if _, err := parseXrandrMonitors("Monitors: 0\n"); err == nil {
		t.Fatal("parseXrandrMonitors() error = nil, want error for empty output")
	}
}

func TestSystemProviderPropagatesCommandError(t *testing.T) {
	p := &SystemProvider{run: func(context.Context) ([]byte, error) {
		return nil, errors.New("xrandr: not found")
	}}
	if _, err := p.Monitors(); err == nil {
		t.Fatal("Monitors() error = nil, want error")
	}
}
