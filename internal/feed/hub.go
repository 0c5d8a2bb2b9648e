package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds a single push; a producer that stalls longer is
	// dropped and must reconnect.
	writeTimeout = 5 * time.Second
	// idleTimeout drops a producer that sent neither frames nor pongs.
	idleTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
	// maxMessageBytes fits a blendshape frame in either encoding with room
	// to spare.
	maxMessageBytes = 32 * 1024
	shutdownTimeout = 5 * time.Second
	// outboxSize bounds messages waiting for a producer's writer. Pushes
	// beyond it are dropped so the dispatch goroutine never waits on a slow
	// client.
	outboxSize = 64
)

var errProducerClosed = errors.New("producer closed")
var errOutboxFull = errors.New("outbox full")

var upgrader = websocket.Upgrader{
	// Producers are local tracking processes, not browsers, and the feed
	// binds to loopback by default.
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// Sink receives every decoded frame. A nil vector means the producer sent
// "no reading". Sink is called from the connection's read goroutine and
// must not block.
type Sink func(vector []float64)

// HubOptions configures the feed server.
type HubOptions struct {
	// Addr is the listen address. "127.0.0.1:0" picks a free port.
	Addr string
	Sink Sink
	// OnConnect runs on the read goroutine after a producer is accepted and
	// before its first frame is read. Must not block.
	OnConnect func()
}

// Stats are cumulative feed counters.
type Stats struct {
	Connected     bool   `json:"connected"`
	Connections   uint64 `json:"connections"`
	Frames        uint64 `json:"frames"`
	DecodeErrors  uint64 `json:"decode_errors"`
	IntentsPushed uint64 `json:"intents_pushed"`
	PushesDropped uint64 `json:"pushes_dropped"`
}

// producer is one accepted WebSocket connection. Data frames are written
// only by its writeLoop, gorilla's single concurrent writer; pings go
// through WriteControl, which is safe alongside it.
type producer struct {
	conn      *websocket.Conn
	out       chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newProducer(conn *websocket.Conn) *producer {
	return &producer{
		conn: conn,
		out:  make(chan []byte, outboxSize),
		done: make(chan struct{}),
	}
}

// enqueue hands payload to the writer without blocking.
func (p *producer) enqueue(payload []byte) error {
	select {
	case <-p.done:
		return errProducerClosed
	default:
	}
	select {
	case p.out <- payload:
		return nil
	default:
		return errOutboxFull
	}
}

func (p *producer) sendText(payload []byte) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, payload)
}

func (p *producer) ping() error {
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (p *producer) close(reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		if err := p.conn.Close(); err != nil {
			slog.Debug("[DEBUG-FEED] close", "reason", reason, "error", err)
		}
	})
}

// Hub serves the activation feed to a single producer at a time. A new
// producer replaces the current one, so a restarted tracker takes over
// without waiting for the idle timeout. Any failed push drops the producer.
type Hub struct {
	opts HubOptions

	mu  sync.Mutex
	cur *producer

	connections   atomic.Uint64
	frames        atomic.Uint64
	decodeErrors  atomic.Uint64
	intentsPushed atomic.Uint64
	pushesDropped atomic.Uint64

	server   *http.Server
	url      string
	stopOnce sync.Once
}

// NewHub creates a Hub. Nothing listens until Start.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.Sink == nil {
		opts.Sink = func([]float64) {}
	}
	return &Hub{opts: opts}
}

// Start listens and serves in the background. Cancelling ctx cancels the
// request contexts of live handlers; Stop shuts the server down.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("feed: already started")
	}
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("feed: listen: %w", err)
	}
	h.url = "ws://" + ln.Addr().String() + "/ws"

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveProducer)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[DEBUG-FEED] serve failed", "error", err)
		}
	}()
	slog.Debug("[DEBUG-FEED] listening", "url", h.url)
	return nil
}

// Stop drops the producer and shuts the server down. A stopped Hub cannot
// be restarted. Safe to call more than once.
func (h *Hub) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		h.mu.Lock()
		p := h.cur
		h.cur = nil
		h.mu.Unlock()
		if p != nil {
			p.close("hub stopped")
		}
		if h.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := h.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("feed: shutdown: %w", shutdownErr)
		}
		slog.Info("[DEBUG-FEED] stopped")
	})
	return err
}

// URL returns the producer endpoint, e.g. "ws://127.0.0.1:47650/ws". Empty
// before Start.
func (h *Hub) URL() string { return h.url }

// HasActiveConnection reports whether a producer is connected.
func (h *Hub) HasActiveConnection() bool { return h.current() != nil }

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Connected:     h.HasActiveConnection(),
		Connections:   h.connections.Load(),
		Frames:        h.frames.Load(),
		DecodeErrors:  h.decodeErrors.Load(),
		IntentsPushed: h.intentsPushed.Load(),
		PushesDropped: h.pushesDropped.Load(),
	}
}

func (h *Hub) current() *producer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// install makes p current and returns the producer it replaced.
func (h *Hub) install(p *producer) *producer {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.cur
	h.cur = p
	return prev
}

// drop closes p and forgets it if it is still current.
func (h *Hub) drop(p *producer, reason string) {
	h.mu.Lock()
	if h.cur == p {
		h.cur = nil
	}
	h.mu.Unlock()
	p.close(reason)
}

// push queues v for p's writer. It never blocks: a full outbox drops the
// message and a closed producer is forgotten.
func (h *Hub) push(p *producer, v any, what string) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Debug("[DEBUG-FEED] marshal failed", "message", what, "error", err)
		return false
	}
	switch err := p.enqueue(payload); {
	case err == nil:
		return true
	case errors.Is(err, errOutboxFull):
		if h.pushesDropped.Add(1) == 1 {
			slog.Warn("[DEBUG-FEED] producer is not keeping up, dropping pushes", "message", what)
		}
	default:
		h.drop(p, "push to closed producer")
	}
	return false
}

// writeLoop drains p's outbox until p is closed. A failed write drops p.
func (h *Hub) writeLoop(p *producer) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] feed writer recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.drop(p, "writer panic")
		}
	}()
	for {
		select {
		case <-p.done:
			return
		case payload := <-p.out:
			if err := p.sendText(payload); err != nil {
				slog.Warn("[DEBUG-FEED] write failed, dropping producer", "error", err)
				h.drop(p, "write failed")
				return
			}
		}
	}
}

// PushIntent queues an executed intent for the producer. No-op when nobody
// is connected.
func (h *Hub) PushIntent(msg IntentMessage) {
	p := h.current()
	if p == nil {
		return
	}
	msg.Type = typeIntent
	if h.push(p, msg, typeIntent) {
		h.intentsPushed.Add(1)
	}
}

// PushActive queues the Active Flag for the producer.
func (h *Hub) PushActive(active bool) {
	if p := h.current(); p != nil {
		h.push(p, ActiveMessage{Type: typeActive, Active: active}, typeActive)
	}
}

func (h *Hub) serveProducer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-FEED] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
		slog.Warn("[DEBUG-FEED] set read deadline failed", "error", err)
		_ = conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	p := newProducer(conn)
	if prev := h.install(p); prev != nil {
		prev.close("replaced by a new producer")
	}
	h.connections.Add(1)
	slog.Info("[DEBUG-FEED] producer connected", "remoteAddr", conn.RemoteAddr())

	go h.keepAlive(p)
	go h.writeLoop(p)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] feed read loop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		h.drop(p, "read loop exit")
		slog.Info("[DEBUG-FEED] producer disconnected", "remoteAddr", conn.RemoteAddr())
	}()

	if h.opts.OnConnect != nil {
		h.opts.OnConnect()
	}
	h.readFrames(p)
}

func (h *Hub) readFrames(p *producer) {
	for {
		kind, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-FEED] read failed", "error", err)
			}
			return
		}
		// Any message proves liveness.
		if err := p.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			slog.Debug("[DEBUG-FEED] extend read deadline failed", "error", err)
		}

		var vector []float64
		switch kind {
		case websocket.BinaryMessage:
			vector, err = DecodeFrame(msg)
		case websocket.TextMessage:
			vector, err = DecodeTextFrame(msg)
		default:
			continue
		}
		if err != nil {
			h.decodeErrors.Add(1)
			slog.Debug("[DEBUG-FEED] rejected frame", "error", err)
			h.push(p, errorMsg{Type: typeError, Message: err.Error()}, typeError)
			continue
		}
		h.frames.Add(1)
		h.opts.Sink(vector)
	}
}

// keepAlive pings p until it is closed.
func (h *Hub) keepAlive(p *producer) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] feed keepalive recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.drop(p, "keepalive panic")
		}
	}()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				slog.Debug("[DEBUG-FEED] ping failed, dropping producer", "error", err)
				h.drop(p, "ping failed")
				return
			}
		}
	}
}
