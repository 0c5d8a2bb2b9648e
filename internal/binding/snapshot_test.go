package binding

import (
	"reflect"
	"testing"
)

func TestMergeKeepsFirstPositionLastValue(t *testing.T) {
	mouse := []Entry{
		{Channel: "mouthSmileLeft", Binding: Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: Single}},
		{Channel: "jawOpen", Binding: Binding{Device: Mouse, Action: "right", Threshold: 0.4, Mode: Single}},
	}
	keyboard := []Entry{
		{Channel: "browInnerUp", Binding: Binding{Device: Keyboard, Action: "space", Threshold: 0.3, Mode: Hold}},
		{Channel: "jawOpen", Binding: Binding{Device: Keyboard, Action: "enter", Threshold: 0.6, Mode: Hold}},
	}

	snap := Merge(mouse, keyboard)

	var gotOrder []string
	for _, e := range snap.Entries() {
		gotOrder = append(gotOrder, e.Channel)
	}
	wantOrder := []string{"mouthSmileLeft", "jawOpen", "browInnerUp"}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
	}
	b, ok := snap.Lookup("jawOpen")
	if !ok {
		t.Fatal("jawOpen missing from merged snapshot")
	}
	if b.Device != Keyboard || b.Action != "enter" {
		t.Fatalf("jawOpen = %v, want keyboard/enter", b)
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: Single}
	b := Binding{Device: Keyboard, Action: "space", Threshold: 0.5, Mode: Hold}

	tests := []struct {
		name  string
		left  Snapshot
		right Snapshot
		want  bool
	}{
		{
			name:  "both empty",
			left:  Snapshot{},
			right: NewSnapshot(),
			want:  true,
		},
		{
			name:  "same entries different order",
			left:  NewSnapshot(Entry{"x", a}, Entry{"y", b}),
			right: NewSnapshot(Entry{"y", b}, Entry{"x", a}),
			want:  true,
		},
		{
			name:  "threshold changed",
			left:  NewSnapshot(Entry{"x", a}),
			right: NewSnapshot(Entry{"x", Binding{Device: Mouse, Action: "left", Threshold: 0.6, Mode: Single}}),
			want:  false,
		},
		{
			name:  "channel renamed",
			left:  NewSnapshot(Entry{"x", a}),
			right: NewSnapshot(Entry{"z", a}),
			want:  false,
		},
		{
			name:  "entry added",
			left:  NewSnapshot(Entry{"x", a}),
			right: NewSnapshot(Entry{"x", a}, Entry{"y", b}),
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.left.Equal(tt.right); got != tt.want {
				t.Fatalf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.right.Equal(tt.left); got != tt.want {
				t.Fatalf("reverse Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateKeys(t *testing.T) {
	snap := NewSnapshot(
		Entry{"a", Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: Single}},
		Entry{"b", Binding{Device: Keyboard, Action: "space", Threshold: 0.5, Mode: Hold}},
		Entry{"c", Binding{Device: Mouse, Action: "left", Threshold: 0.7, Mode: Single}},
	)
	want := []string{"mouse_left", "keyboard_space"}
	if got := snap.StateKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("StateKeys() = %v, want %v", got, want)
	}
}

func TestBindingValidateSnapshotCases(t *testing.T) {
	tests := []struct {
		name    string
		b       Binding
		wantErr bool
	}{
		{name: "valid mouse", b: Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: Single}},
		{name: "valid keyboard edge threshold", b: Binding{Device: Keyboard, Action: "a", Threshold: 1, Mode: Hold}},
		{name: "unknown device", b: Binding{Device: "gamepad", Action: "a", Threshold: 0.5, Mode: Hold}, wantErr: true},
		{name: "blank action", b: Binding{Device: Mouse, Action: "  ", Threshold: 0.5, Mode: Hold}, wantErr: true},
		{name: "negative threshold", b: Binding{Device: Mouse, Action: "left", Threshold: -0.1, Mode: Hold}, wantErr: true},
		{name: "threshold above one", b: Binding{Device: Mouse, Action: "left", Threshold: 1.5, Mode: Hold}, wantErr: true},
		{name: "unknown mode", b: Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: "toggle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsSpecial(t *testing.T) {
	for _, action := range []string{ActionPause, ActionReset, ActionCycle} {
		if !(Binding{Device: Mouse, Action: action}).IsSpecial() {
			t.Errorf("mouse %q should be special", action)
		}
		if (Binding{Device: Keyboard, Action: action}).IsSpecial() {
			t.Errorf("keyboard %q should not be special", action)
		}
	}
	if (Binding{Device: Mouse, Action: "left"}).IsSpecial() {
		t.Error("mouse left should not be special")
	}
}
