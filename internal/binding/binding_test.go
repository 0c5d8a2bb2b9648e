package binding

import (
	"math"
	"testing"
)

func TestBindingValidate(t *testing.T) {
	valid := Binding{Device: Mouse, Action: "left", Threshold: 0.5, Mode: Single}
	tests := []struct {
		name    string
		mutate  func(b *Binding)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Binding) {}},
		{name: "zero threshold", mutate: func(b *Binding) { b.Threshold = 0 }},
		{name: "unit threshold", mutate: func(b *Binding) { b.Threshold = 1 }},
		{name: "negative threshold", mutate: func(b *Binding) { b.Threshold = -0.1 }, wantErr: true},
		{name: "threshold above one", mutate: func(b *Binding) { b.Threshold = 1.01 }, wantErr: true},
		{name: "NaN threshold", mutate: func(b *Binding) { b.Threshold = math.NaN() }, wantErr: true},
		{name: "infinite threshold", mutate: func(b *Binding) { b.Threshold = math.Inf(1) }, wantErr: true},
		{name: "unknown device", mutate: func(b *Binding) { b.Device = "pen" }, wantErr: true},
		{name: "blank action", mutate: func(b *Binding) { b.Action = "  " }, wantErr: true},
		{name: "unknown mode", mutate: func(b *Binding) { b.Mode = "toggle" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBindingIsSpecial(t *testing.T) {
	tests := []struct {
		b    Binding
		want bool
	}{
		{Binding{Device: Mouse, Action: ActionPause}, true},
		{Binding{Device: Mouse, Action: ActionReset}, true},
		{Binding{Device: Mouse, Action: ActionCycle}, true},
		{Binding{Device: Mouse, Action: "left"}, false},
		{Binding{Device: Keyboard, Action: ActionPause}, false},
	}
	for _, tt := range tests {
		if got := tt.b.IsSpecial(); got != tt.want {
			t.Errorf("%s IsSpecial() = %v, want %v", tt.b, got, tt.want)
		}
	}
}
