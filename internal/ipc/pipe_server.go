package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// connTimeout bounds a whole request/response exchange.
	connTimeout     = 10 * time.Second
	maxRequestBytes = 64 * 1024
	// maxInFlight caps concurrently served connections; the daemon's commands
	// are short, so a handful is plenty.
	maxInFlight     = 8
	slotWait        = 2 * time.Second
	acceptBackoffLo = 10 * time.Millisecond
	acceptBackoffHi = time.Second
)

var errServerStarted = errors.New("pipe server already started")

// ServerStats counts connections since Start.
type ServerStats struct {
	Served   uint64 `json:"served"`
	Rejected uint64 `json:"rejected"`
	Invalid  uint64 `json:"invalid"`
}

// PipeServer serves control requests from gesturectl, one request per
// connection.
type PipeServer struct {
	endpoint string
	executor CommandExecutor

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	slots    chan struct{}

	served   atomic.Uint64
	rejected atomic.Uint64
	invalid  atomic.Uint64
}

// NewPipeServer constructs a PipeServer. An empty endpoint selects
// DefaultEndpoint.
func NewPipeServer(endpoint string, executor CommandExecutor) *PipeServer {
	if endpoint == "" {
		endpoint = DefaultEndpoint()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PipeServer{
		endpoint: endpoint,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, maxInFlight),
	}
}

// Endpoint returns the pipe or socket path.
func (s *PipeServer) Endpoint() string { return s.endpoint }

// Stats returns connection counters.
func (s *PipeServer) Stats() ServerStats {
	return ServerStats{
		Served:   s.served.Load(),
		Rejected: s.rejected.Load(),
		Invalid:  s.invalid.Load(),
	}
}

// Start opens the endpoint and begins accepting. A stopped server cannot be
// restarted.
func (s *PipeServer) Start() error {
	if s.executor == nil {
		return errors.New("pipe server requires an executor")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errServerStarted
	}
	if s.ctx.Err() != nil {
		return errors.New("pipe server stopped")
	}

	ln, err := listenEndpoint(s.endpoint)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.endpoint, err)
	}
	s.listener = ln
	s.wg.Go(func() { s.serve(ln) })
	return nil
}

// Stop closes the endpoint and waits for in-flight requests. Safe to call
// more than once.
func (s *PipeServer) Stop() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.cancel()
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	var closeErr error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		closeErr = fmt.Errorf("close %s: %w", s.endpoint, err)
	}
	s.wg.Wait()
	cleanupEndpoint(s.endpoint)
	return closeErr
}

func (s *PipeServer) serve(ln net.Listener) {
	backoff := time.Duration(0)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = min(max(2*backoff, acceptBackoffLo), acceptBackoffHi)
			slog.Warn("[ipc] accept failed", "error", err, "retryIn", backoff)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		if !s.takeSlot() {
			s.rejected.Add(1)
			s.reply(conn, Response{ExitCode: 1, Stderr: "gesturekeys is busy, try again\n"})
			_ = conn.Close()
			continue
		}
		s.wg.Go(func() {
			defer func() { <-s.slots }()
			s.handle(conn)
		})
	}
}

func (s *PipeServer) takeSlot() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
	}
	timer := time.NewTimer(slotWait)
	defer timer.Stop()
	select {
	case s.slots <- struct{}{}:
		return true
	case <-timer.C:
		slog.Warn("[ipc] all connection slots busy, rejecting client")
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *PipeServer) handle(conn net.Conn) {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(connTimeout)); err != nil {
		slog.Warn("[ipc] set deadline failed", "error", err)
		return
	}

	raw, err := readLine(conn, maxRequestBytes)
	if errors.Is(err, io.EOF) {
		slog.Debug("[ipc] client closed without a request")
		return
	}
	var req Request
	if err == nil {
		req, err = decodeRequest(raw)
	}
	if err != nil {
		s.invalid.Add(1)
		s.reply(conn, Response{ExitCode: 1, Stderr: fmt.Sprintf("invalid request: %v\n", err)})
		return
	}

	s.served.Add(1)
	s.reply(conn, s.execute(req))
}

// execute shields the accept loop from a panicking executor.
func (s *PipeServer) execute(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] control command panicked",
				"command", req.Command,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			resp = Response{ExitCode: 1, Stderr: fmt.Sprintf("command %q failed internally\n", req.Command)}
		}
	}()
	return s.executor.Execute(req)
}

func (s *PipeServer) reply(conn net.Conn, resp Response) {
	raw, err := encodeResponse(resp)
	if err != nil {
		slog.Warn("[ipc] encode response failed", "error", err)
		raw = []byte(`{"exit_code":1,"stderr":"response encoding failed\n"}`)
	}
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		slog.Debug("[ipc] write response failed", "error", err)
	}
}
