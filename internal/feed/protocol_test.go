package feed

import (
	"math"
	"testing"
)

func TestEncodeDecodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
	}{
		{name: "RoundTrip_Typical", values: []float64{0, 0.25, 0.5, 1}},
		{name: "RoundTrip_Single", values: []float64{0.75}},
		{name: "RoundTrip_Negative", values: []float64{-0.5, 2}},
		{name: "RoundTrip_DecimalThresholds", values: []float64{0.6, 0.1, 0.7, 0.35}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame := EncodeFrame(tt.values)
			if len(frame) != len(tt.values)*4 {
				t.Fatalf("frame length = %d, want %d", len(frame), len(tt.values)*4)
			}
			got, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("DecodeFrame returned unexpected error: %v", err)
			}
			if len(got) != len(tt.values) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.values))
			}
			for i := range got {
				if got[i] != tt.values[i] {
					t.Errorf("value[%d] = %v, want %v", i, got[i], tt.values[i])
				}
			}
		})
	}
}

func TestDecodeFrameKeepsThresholdEquality(t *testing.T) {
	got, err := DecodeFrame(EncodeFrame([]float64{0.6, math.NaN(), math.Inf(1)}))
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if got[0] > 0.6 || got[0] < 0.6 {
		t.Errorf("value[0] = %v, want exactly 0.6", got[0])
	}
	if !math.IsNaN(got[1]) {
		t.Errorf("value[1] = %v, want NaN", got[1])
	}
	if !math.IsInf(got[2], 1) {
		t.Errorf("value[2] = %v, want +Inf", got[2])
	}
}

func TestDecodeFrameLittleEndian(t *testing.T) {
	// 1.0 as float32 is 0x3f800000.
	got, err := DecodeFrame([]byte{0x00, 0x00, 0x80, 0x3f})
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("DecodeFrame = %v, want [1]", got)
	}
}

func TestDecodeFrameEmptyMeansAbsent(t *testing.T) {
	got, err := DecodeFrame(nil)
	if err != nil || got != nil {
		t.Fatalf("DecodeFrame(nil) = %v, %v; want nil, nil", got, err)
	}
	if frame := EncodeFrame(nil); len(frame) != 0 {
		t.Fatalf("EncodeFrame(nil) length = %d, want 0", len(frame))
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	for _, n := range []int{1, 3, 5, 7} {
		if _, err := DecodeFrame(make([]byte, n)); err == nil {
			t.Errorf("DecodeFrame(%d bytes) expected error", n)
		}
	}
}

func TestDecodeTextFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []float64
		nanAt   int
		wantErr bool
	}{
		{name: "values", payload: `{"values":[0.1,0.9]}`, want: []float64{0.1, 0.9}, nanAt: -1},
		{name: "null values", payload: `{"values":null}`, want: nil, nanAt: -1},
		{name: "missing values", payload: `{}`, want: nil, nanAt: -1},
		{name: "null element", payload: `{"values":[0.3,null]}`, want: []float64{0.3, 0}, nanAt: 1},
		{name: "invalid json", payload: `{"values":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTextFrame([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTextFrame returned error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if i == tt.nanAt {
					if !math.IsNaN(got[i]) {
						t.Errorf("value[%d] = %v, want NaN", i, got[i])
					}
					continue
				}
				if got[i] != tt.want[i] {
					t.Errorf("value[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	frame := EncodeFrame(make([]float64, 52))
	b.ResetTimer()
	for b.Loop() {
		if _, err := DecodeFrame(frame); err != nil {
			b.Fatal(err)
		}
	}
}
