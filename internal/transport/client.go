package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// ErrClientClosed is returned for requests made after the connection ended.
var ErrClientClosed = errors.New("websocket transport closed")

// Client is the controller side of the WebSocket transport. Requests may be
// issued concurrently; responses are matched to requests by ID.
type Client struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan schemas.PerformResponse
	readErr error

	readDone  chan struct{}
	closeOnce sync.Once
}

var (
	_ schemas.Transport       = (*Client)(nil)
	_ schemas.ContextResolver = (*Client)(nil)
)

// Dial connects to a page agent. timeout bounds the handshake and, when
// positive, every later request's wait for its response.
func Dial(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = websocket.DefaultDialer.HandshakeTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to page agent at %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to page agent at %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:     conn,
		logger:   logger.Named("ws_client"),
		timeout:  timeout,
		pending:  make(map[string]chan schemas.PerformResponse),
		readDone: make(chan struct{}),
	}
	c.logger.Info("Connected to page agent.", zap.String("url", url))
	go c.readLoop()
	return c, nil
}

// Send delivers one perform request and waits for its response.
func (c *Client) Send(ctx context.Context, target schemas.Target, req schemas.PerformRequest) (schemas.PerformResponse, error) {
	if req.Target == nil {
		req.Target = &target
	}
	if req.Action == "" {
		req.Action = schemas.RequestPerform
	}
	return c.roundTrip(ctx, req)
}

// ActiveTarget asks the page agent for its active page context.
func (c *Client) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	resp, err := c.roundTrip(ctx, schemas.PerformRequest{Action: schemas.RequestActiveTarget})
	if err != nil {
		return schemas.Target{}, err
	}
	if !resp.OK || resp.Target == nil {
		if resp.Error == "" || resp.Error == schemas.ErrNoActiveContext.Error() {
			return schemas.Target{}, schemas.ErrNoActiveContext
		}
		return schemas.Target{}, errors.New(resp.Error)
	}
	return *resp.Target, nil
}

func (c *Client) roundTrip(ctx context.Context, req schemas.PerformRequest) (schemas.PerformResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return schemas.PerformResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	ch := make(chan schemas.PerformResponse, 1)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return schemas.PerformResponse{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer c.forget(req.ID)

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return schemas.PerformResponse{}, fmt.Errorf("failed to send request %s: %w", req.ID, err)
	}

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return schemas.PerformResponse{}, ctx.Err()
	case <-timeout:
		return schemas.PerformResponse{}, fmt.Errorf("timed out after %s waiting for response to %s", c.timeout, req.ID)
	case <-c.readDone:
		// The response may have landed just before the connection ended.
		select {
		case resp := <-ch:
			return resp, nil
		default:
		}
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		return schemas.PerformResponse{}, err
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = fmt.Errorf("%w: %v", ErrClientClosed, err)
			c.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Page agent connection lost.", zap.Error(err))
			}
			return
		}

		var resp schemas.PerformResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Warn("Dropping malformed response.", zap.Error(err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Response for unknown request.", zap.String("request_id", resp.ID), zap.String("error", resp.Error))
			continue
		}
		ch <- resp
	}
}

// Close ends the connection and waits for the read loop to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.readDone
		c.logger.Info("Disconnected from page agent.")
	})
	return err
}
