package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/browser"
)

// Server is the page side of the WebSocket transport. Each connection is
// served by a read pump, a write pump and a single worker, so requests on one
// connection are answered strictly in arrival order.
type Server struct {
	host     *browser.Host
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*serverConn]struct{}
	closed bool
	wg     sync.WaitGroup
}

var _ http.Handler = (*Server)(nil)

// NewServer creates a Server answering requests with host.
func NewServer(host *browser.Host, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		host:   host,
		logger: logger.Named("ws_server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*serverConn]struct{}),
	}
}

// serverConn is one controller connection.
type serverConn struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	requests chan schemas.PerformRequest
	ctx      context.Context
	cancel   context.CancelFunc
}

// ServeHTTP upgrades the request and starts serving the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &serverConn{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		requests: make(chan schemas.PerformRequest, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.wg.Add(3)
	s.mu.Unlock()

	s.logger.Info("Controller connected.", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	go s.writePump(c)
	go s.worker(c)
	go s.readPump(c)
}

// readPump decodes requests and queues them for the worker.
func (s *Server) readPump(c *serverConn) {
	defer s.wg.Done()
	defer s.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Websocket controller read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		var req schemas.PerformRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.logger.Warn("Dropping malformed request.", zap.String("conn_id", c.id), zap.Error(err))
			s.reply(c, schemas.PerformResponse{Error: "malformed request: " + err.Error()})
			continue
		}

		select {
		case c.requests <- req:
		case <-c.ctx.Done():
			return
		}
	}
}

// worker answers queued requests one at a time.
func (s *Server) worker(c *serverConn) {
	defer s.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.requests:
			s.logger.Debug("Serving request.", zap.String("conn_id", c.id), zap.String("request_id", req.ID), zap.String("action", req.Action))
			s.reply(c, s.host.Serve(c.ctx, req))
		}
	}
}

func (s *Server) reply(c *serverConn, resp schemas.PerformResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to marshal response", zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	case <-c.ctx.Done():
	}
}

// writePump writes responses and keeps the connection alive with pings.
func (s *Server) writePump(c *serverConn) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(c)
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// drop unregisters the connection and stops its goroutines. The read pump
// unblocks once the socket is closed.
func (s *Server) drop(c *serverConn) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()

	c.cancel()
	c.conn.Close()
	if ok {
		s.logger.Info("Controller disconnected.", zap.String("conn_id", c.id))
	}
}

// Close disconnects every controller and waits for the connection goroutines
// to exit. New connections are refused afterwards.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.drop(c)
	}
	s.wg.Wait()
}
