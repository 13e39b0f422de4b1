package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
)

// ErrBusy is returned when Send is called while a previous request is still
// waiting for its reply. The protocol is strict lockstep request/reply;
// overlapping sends are a programming error in the caller.
var ErrBusy = errors.New("oracle transport: request already in flight")

// ErrClosed is returned for operations on a transport that is not open.
var ErrClosed = errors.New("oracle transport: not open")

// Client is a synchronous message transport to the oracle process. It keeps
// exactly one websocket connection and enforces the one-outstanding-request
// discipline of the protocol. It is not safe for concurrent use; the
// simulation drives it from a single event-loop goroutine.
type Client struct {
	log  logging.Logger
	conn *websocket.Conn
	busy bool
}

// NewClient constructs an unconnected transport.
func NewClient(log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	return &Client{log: log}
}

// Open dials the oracle endpoint, e.g. "ws://localhost:5555/channel".
func (c *Client) Open(url string) error {
	if c.conn != nil {
		return fmt.Errorf("oracle transport: already connected")
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("oracle transport: dial %s: %w", url, err)
	}
	c.conn = conn
	c.log.Info(context.Background(), "connected to oracle", logging.String("url", url))
	return nil
}

// Send transmits one request frame and blocks until the reply frame arrives.
// There is deliberately no timeout: a missing reply means the oracle is gone
// and the session cannot continue, which the caller must treat as fatal.
func (c *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrClosed
	}
	if c.busy {
		return nil, ErrBusy
	}
	c.busy = true
	defer func() { c.busy = false }()

	if err := c.conn.WriteMessage(websocket.TextMessage, request); err != nil {
		return nil, fmt.Errorf("oracle transport: send request: %w", err)
	}
	_, reply, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("oracle transport: no reply received: %w", err)
	}
	return reply, nil
}

// Close releases the connection. Safe to call once; further operations on
// the client return ErrClosed.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("oracle transport: close: %w", err)
	}
	return nil
}
