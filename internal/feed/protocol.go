// Package feed receives activation vectors over a local WebSocket and pushes
// emitted intents back to the connected client.
//
// # Binary frame protocol
//
// A binary message is a sequence of little-endian IEEE-754 float32 values in
// vocabulary order. A zero-length binary message means "no reading this
// frame". Each value is widened to the float64 with the same shortest
// decimal form, so 0.6 sent as float32 arrives as 0.6 and compares equal to
// a 0.6 threshold instead of landing just above it.
//
// Text messages carry the same frame as JSON: {"values":[0.1, 0.7, ...]}.
// A missing or null "values" field means no reading; a null element decodes
// to NaN, which never crosses a threshold.
//
// Server-to-client messages are JSON text: {"type":"intent",...} for every
// executed intent, {"type":"active",...} on Active Flag changes and
// {"type":"error",...} for rejected client frames.
package feed

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// bytesPerValue is the encoded width of one channel value.
const bytesPerValue = 4

// EncodeFrame packs values as little-endian float32. A nil or empty frame
// encodes to a zero-length message.
func EncodeFrame(values []float64) []byte {
	buf := make([]byte, len(values)*bytesPerValue)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*bytesPerValue:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodeFrame parses a binary frame produced by EncodeFrame. A zero-length
// frame returns a nil vector and no error.
func DecodeFrame(frame []byte) ([]float64, error) {
	if len(frame) == 0 {
		return nil, nil
	}
	if len(frame)%bytesPerValue != 0 {
		return nil, fmt.Errorf("feed: decode frame: length %d is not a multiple of %d", len(frame), bytesPerValue)
	}
	out := make([]float64, len(frame)/bytesPerValue)
	for i := range out {
		out[i] = widen(math.Float32frombits(binary.LittleEndian.Uint32(frame[i*bytesPerValue:])))
	}
	return out, nil
}

// widen converts f to the float64 nearest its shortest float32 decimal
// representation.
func widen(f float32) float64 {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	w, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', -1, 32), 64)
	if err != nil {
		return v
	}
	return w
}

// textFrame is the JSON form of a client frame.
type textFrame struct {
	Values []*float64 `json:"values"`
}

// DecodeTextFrame parses a JSON client frame.
func DecodeTextFrame(payload []byte) ([]float64, error) {
	var msg textFrame
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("feed: decode text frame: %w", err)
	}
	if len(msg.Values) == 0 {
		return nil, nil
	}
	out := make([]float64, len(msg.Values))
	for i, v := range msg.Values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out, nil
}

// IntentMessage is pushed to the client for every executed intent.
type IntentMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Target  string `json:"target,omitempty"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActiveMessage is pushed to the client when the Active Flag changes.
type ActiveMessage struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// errorMsg is the JSON payload for server error notifications sent to the client.
type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	typeIntent = "intent"
	typeActive = "active"
	typeError  = "error"
)
