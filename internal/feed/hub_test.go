package feed

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testListenAddr lets the OS assign an ephemeral port.
const testListenAddr = "127.0.0.1:0"

// waitForCondition polls fn every 10ms until it returns true or the timeout
// expires.
func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ticker.C:
			if fn() {
				return true
			}
		case <-deadline.C:
			return false
		}
	}
}

func waitForConnection(t *testing.T, hub *Hub) {
	t.Helper()
	if !waitForCondition(t, 2*time.Second, hub.HasActiveConnection) {
		t.Fatal("timed out waiting for hub to register connection")
	}
}

func waitForNoConnection(t *testing.T, hub *Hub) {
	t.Helper()
	if !waitForCondition(t, 2*time.Second, func() bool { return !hub.HasActiveConnection() }) {
		t.Fatal("timed out waiting for hub to clear connection")
	}
}

type frameSink struct {
	mu     sync.Mutex
	frames [][]float64
}

func (s *frameSink) push(v []float64) {
	s.mu.Lock()
	s.frames = append(s.frames, v)
	s.mu.Unlock()
}

func (s *frameSink) snapshot() [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]float64, len(s.frames))
	copy(out, s.frames)
	return out
}

// startHub creates and starts a Hub for testing, registering cleanup.
func startHub(t *testing.T, sink *frameSink) *Hub {
	t.Helper()
	opts := HubOptions{Addr: testListenAddr}
	if sink != nil {
		opts.Sink = sink.push
	}
	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		if err := hub.Stop(); err != nil {
			t.Errorf("hub.Stop() returned error: %v", err)
		}
		cancel()
	})
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("hub.Start() returned error: %v", err)
	}
	return hub
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(hub.URL(), nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Logf("conn.Close() error: %v", err)
		}
	})
	return conn
}

func readText(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	msgType, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage returned error: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected TextMessage (%d), got %d", websocket.TextMessage, msgType)
	}
	if err := json.Unmarshal(msg, out); err != nil {
		t.Fatalf("failed to unmarshal %q: %v", msg, err)
	}
}

func TestStartAndStop(t *testing.T) {
	hub := NewHub(HubOptions{Addr: testListenAddr})
	if err := hub.Start(t.Context()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	if hub.URL() == "" {
		t.Fatal("URL() returned empty string after Start()")
	}
	if err := hub.Start(t.Context()); err == nil {
		t.Fatal("second Start() should return an error, got nil")
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("first Stop() returned error: %v", err)
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("second Stop() returned error: %v", err)
	}
}

func TestNewHubDefaultAddr(t *testing.T) {
	hub := NewHub(HubOptions{})
	if hub.opts.Addr != "127.0.0.1:0" {
		t.Fatalf("default Addr = %q", hub.opts.Addr)
	}
}

func TestBinaryAndTextFramesReachSink(t *testing.T) {
	sink := &frameSink{}
	hub := startHub(t, sink)
	conn := dialHub(t, hub)
	waitForConnection(t, hub)

	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame([]float64{0.5, 1})); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"values":[0.25]}`)); err != nil {
		t.Fatal(err)
	}

	if !waitForCondition(t, 2*time.Second, func() bool { return len(sink.snapshot()) == 3 }) {
		t.Fatalf("frames = %v, want 3", sink.snapshot())
	}
	frames := sink.snapshot()
	if len(frames[0]) != 2 || frames[0][0] != 0.5 || frames[0][1] != 1 {
		t.Errorf("binary frame = %v", frames[0])
	}
	if frames[1] != nil {
		t.Errorf("empty frame = %v, want nil", frames[1])
	}
	if len(frames[2]) != 1 || frames[2][0] != 0.25 {
		t.Errorf("text frame = %v", frames[2])
	}
	if got := hub.Stats().Frames; got != 3 {
		t.Errorf("Stats().Frames = %d, want 3", got)
	}
}

func TestMalformedFrameReturnsError(t *testing.T) {
	sink := &frameSink{}
	hub := startHub(t, sink)
	conn := dialHub(t, hub)
	waitForConnection(t, hub)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	var resp errorMsg
	readText(t, conn, &resp)
	if resp.Type != "error" || resp.Message == "" {
		t.Fatalf("response = %+v, want error", resp)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatal("malformed frame reached the sink")
	}
	if got := hub.Stats().DecodeErrors; got != 1 {
		t.Fatalf("DecodeErrors = %d, want 1", got)
	}
	if !hub.HasActiveConnection() {
		t.Fatal("connection dropped after malformed frame")
	}
}

func TestPushIntentAndActive(t *testing.T) {
	hub := startHub(t, nil)
	conn := dialHub(t, hub)
	waitForConnection(t, hub)

	hub.PushIntent(IntentMessage{Kind: "click", Target: "left", Channel: "mouthSmileLeft"})
	var intent IntentMessage
	readText(t, conn, &intent)
	if intent.Type != "intent" || intent.Kind != "click" || intent.Target != "left" || intent.Channel != "mouthSmileLeft" {
		t.Fatalf("intent = %+v", intent)
	}

	hub.PushActive(false)
	var active ActiveMessage
	readText(t, conn, &active)
	if active.Type != "active" || active.Active {
		t.Fatalf("active = %+v", active)
	}
	if got := hub.Stats().IntentsPushed; got != 1 {
		t.Fatalf("IntentsPushed = %d, want 1", got)
	}
}

func TestPushWithoutConnectionIsNoop(t *testing.T) {
	hub := startHub(t, nil)
	hub.PushIntent(IntentMessage{Kind: "click"})
	hub.PushActive(true)
	if got := hub.Stats().IntentsPushed; got != 0 {
		t.Fatalf("IntentsPushed = %d, want 0", got)
	}
}

func TestConnectionReplacement(t *testing.T) {
	hub := startHub(t, nil)
	conn1 := dialHub(t, hub)
	waitForConnection(t, hub)
	dialHub(t, hub)

	if err := conn1.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := conn1.ReadMessage(); err == nil {
		t.Fatal("expected first connection to be closed after replacement")
	}
	waitForConnection(t, hub)
}

func TestAbruptDisconnection(t *testing.T) {
	hub := startHub(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(hub.URL(), nil)
	if err != nil {
		t.Fatal(err)
	}
	waitForConnection(t, hub)
	if err := conn.Close(); err != nil {
		t.Logf("conn.Close() error: %v", err)
	}
	waitForNoConnection(t, hub)
}

func TestOnConnectRunsPerProducer(t *testing.T) {
	var connects atomic.Int32
	hub := NewHub(HubOptions{Addr: testListenAddr, OnConnect: func() { connects.Add(1) }})
	if err := hub.Start(t.Context()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	t.Cleanup(func() { _ = hub.Stop() })

	dialHub(t, hub)
	waitForConnection(t, hub)
	dialHub(t, hub)

	if !waitForCondition(t, 2*time.Second, func() bool { return connects.Load() == 2 }) {
		t.Fatalf("OnConnect calls = %d, want 2", connects.Load())
	}
	if got := hub.Stats().Connections; got != 2 {
		t.Fatalf("Stats().Connections = %d, want 2", got)
	}
}

func TestPushToDeadProducerDropsIt(t *testing.T) {
	hub := startHub(t, nil)
	dialHub(t, hub)
	waitForConnection(t, hub)

	p := hub.current()
	p.close("test")
	hub.PushIntent(IntentMessage{Kind: "click"})

	if hub.HasActiveConnection() {
		t.Fatal("producer still current after a failed push")
	}
	if got := hub.Stats().IntentsPushed; got != 0 {
		t.Fatalf("IntentsPushed = %d, want 0", got)
	}
}

func TestPushNeverBlocksOnFullOutbox(t *testing.T) {
	hub := NewHub(HubOptions{Addr: testListenAddr})
	// No writer drains this producer, as with a client that stopped reading.
	stalled := &producer{out: make(chan []byte, outboxSize), done: make(chan struct{})}
	hub.install(stalled)
	t.Cleanup(func() { hub.install(nil) })

	const extra = 5
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for range outboxSize + extra {
			hub.PushIntent(IntentMessage{Kind: "click", Target: "left"})
		}
		hub.PushActive(true)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("pushes blocked on a stalled producer")
	}

	st := hub.Stats()
	if st.IntentsPushed != outboxSize {
		t.Errorf("IntentsPushed = %d, want %d", st.IntentsPushed, outboxSize)
	}
	if st.PushesDropped != extra+1 {
		t.Errorf("PushesDropped = %d, want %d", st.PushesDropped, extra+1)
	}
	if !hub.HasActiveConnection() {
		t.Error("stalled producer was dropped; a full outbox should only drop messages")
	}
}
