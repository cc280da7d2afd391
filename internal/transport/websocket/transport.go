// Package websocket implements transport.Transport over binary WebSocket frames.
//
// Each connection gets a reader goroutine that feeds the shared event channel
// and a single writer goroutine that drains a buffered send queue, so frames
// reach the peer in Send order.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

// ErrSendBufferFull is returned by Send when the peer is not draining its queue.
// The connection is closed when this happens.
var ErrSendBufferFull = errors.New("send buffer full")

// Transport accepts WebSocket connections and exposes them as transport events.
type Transport struct {
	cfg      config.TransportConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	events   chan transport.Event
	nextID   atomic.Uint64

	mu       sync.Mutex
	conns    map[transport.ConnID]*conn
	server   *http.Server
	listener net.Listener
	running  bool

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

type conn struct {
	id      transport.ConnID
	ws      *websocket.Conn
	send    chan []byte
	closing chan struct{}
	once    sync.Once
}

func (c *conn) requestClose() {
	c.once.Do(func() { close(c.closing) })
}

var _ transport.Transport = (*Transport)(nil)

// New creates a WebSocket transport with the given configuration.
//
// Precondition: cfg must pass config validation; logger must be non-nil.
// Postcondition: Returns a Transport ready to serve via ListenAndServe or as an http.Handler.
func New(cfg config.TransportConfig, logger *zap.Logger) *Transport {
	return &Transport{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		events: make(chan transport.Event, cfg.EventBuffer),
		conns:  make(map[transport.ConnID]*conn),
		quit:   make(chan struct{}),
	}
}

// ListenAndServe binds the configured address and serves upgrades until Stop is called.
//
// Precondition: The transport must not already be running.
// Postcondition: The listener is closed when this method returns.
func (t *Transport) ListenAndServe() error {
	start := time.Now()

	lis, err := net.Listen("tcp", t.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.Handle(t.cfg.Path, t)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: t.cfg.HandshakeTimeout,
	}

	t.mu.Lock()
	t.listener = lis
	t.server = srv
	t.running = true
	t.mu.Unlock()

	t.logger.Info("websocket transport listening",
		zap.String("addr", lis.Addr().String()),
		zap.String("path", t.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket transport: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and registers the resulting connection.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-t.quit:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	ws.SetReadLimit(t.cfg.ReadLimit)

	c := &conn{
		id:      transport.ConnID(t.nextID.Add(1)),
		ws:      ws,
		send:    make(chan []byte, t.cfg.SendBuffer),
		closing: make(chan struct{}),
	}

	t.mu.Lock()
	t.conns[c.id] = c
	t.mu.Unlock()

	t.logger.Info("client connected",
		zap.Stringer("conn", c.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	if !t.emit(transport.Event{Kind: transport.EventConnect, Conn: c.id}) {
		t.forget(c)
		_ = ws.Close()
		return
	}

	t.wg.Add(2)
	go t.writeLoop(c)
	go t.readLoop(c)
}

// emit delivers ev to the event channel unless the transport is stopping.
func (t *Transport) emit(ev transport.Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.quit:
		return false
	}
}

func (t *Transport) forget(c *conn) {
	t.mu.Lock()
	delete(t.conns, c.id)
	t.mu.Unlock()
}

func (t *Transport) readLoop(c *conn) {
	defer t.wg.Done()
	start := time.Now()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("read failed", zap.Stringer("conn", c.id), zap.Error(err))
			}
			break
		}
		if msgType != websocket.BinaryMessage {
			t.logger.Debug("ignoring non-binary frame", zap.Stringer("conn", c.id))
			continue
		}
		if !t.emit(transport.Event{Kind: transport.EventReceive, Conn: c.id, Data: data}) {
			break
		}
	}

	t.forget(c)
	c.requestClose()
	_ = c.ws.Close()

	t.logger.Info("client disconnected",
		zap.Stringer("conn", c.id),
		zap.Duration("duration", time.Since(start)),
	)
	t.emit(transport.Event{Kind: transport.EventDisconnect, Conn: c.id})
}

func (t *Transport) writeLoop(c *conn) {
	defer t.wg.Done()

	for {
		select {
		case data := <-c.send:
			if err := t.write(c, data); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-c.closing:
			// Flush what was queued before the close request.
			for {
				select {
				case data := <-c.send:
					if err := t.write(c, data); err != nil {
						_ = c.ws.Close()
						return
					}
				default:
					deadline := time.Now().Add(t.cfg.WriteTimeout)
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
					_ = c.ws.Close()
					return
				}
			}
		}
	}
}

func (t *Transport) write(c *conn, data []byte) error {
	if t.cfg.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.logger.Debug("write failed", zap.Stringer("conn", c.id), zap.Error(err))
		return err
	}
	return nil
}

// Poll waits at most timeout for the next event.
//
// Postcondition: Returns (event, true) when one arrived, (Event{}, false) otherwise.
func (t *Transport) Poll(ctx context.Context, timeout time.Duration) (transport.Event, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-t.events:
		return ev, true
	case <-timer.C:
		return transport.Event{}, false
	case <-ctx.Done():
		return transport.Event{}, false
	}
}

// Send queues data for conn.
//
// Postcondition: Returns transport.ErrUnknownConn for a closed handle and
// ErrSendBufferFull (after closing the connection) when the queue is full.
func (t *Transport) Send(id transport.ConnID, data []byte) error {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if !ok {
		return transport.ErrUnknownConn
	}

	select {
	case <-c.closing:
		return transport.ErrUnknownConn
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		t.logger.Warn("send buffer full, closing connection",
			zap.Stringer("conn", id),
			zap.Int("buffer", cap(c.send)),
		)
		c.requestClose()
		return ErrSendBufferFull
	}
}

// Disconnect closes conn once its queued frames are written.
func (t *Transport) Disconnect(id transport.ConnID) {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if ok {
		c.requestClose()
	}
}

// ConnCount returns the number of open connections.
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return ""
}

// Stop closes the listener and every connection, then waits for all
// connection goroutines to exit. Safe to call more than once.
//
// Postcondition: No goroutine started by the transport is running.
func (t *Transport) Stop() {
	t.quitOnce.Do(func() { close(t.quit) })

	t.mu.Lock()
	srv := t.server
	t.running = false
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.logger.Warn("websocket server shutdown", zap.Error(err))
		}
	}
	for _, c := range conns {
		c.requestClose()
		_ = c.ws.Close()
	}
	t.wg.Wait()

	t.logger.Info("websocket transport stopped")
}

// IsRunning reports whether ListenAndServe is accepting connections.
func (t *Transport) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
