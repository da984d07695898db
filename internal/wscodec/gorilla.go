package wscodec

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
)

// gorillaCodec adapts a *websocket.Conn to the Codec interface.
type gorillaCodec struct {
	conn        *websocket.Conn
	subprotocol string
	keepalive   time.Duration

	mu    sync.Mutex
	state State
}

// NewGorillaFactory returns a Factory that builds codecs backed by
// gorilla/websocket, the production frame-level library the wider example
// corpus (coder/websocket-family handshake code, gorilla-based proxies)
// converges on. gorilla's NewConn takes the same net.Conn the handshake
// already spoke HTTP/1.1 over, plus any buffered-but-unread bytes, which
// is exactly the "given a duplex byte stream" contract the specification
// asks of the frame codec collaborator.
func NewGorillaFactory() Factory {
	return func(endpoint Endpoint, isServer bool, subprotocol string, keepalive time.Duration) Codec {
		conn := websocket.NewConn(endpoint.Conn, isServer, defaultReadBufferSize, defaultWriteBufferSize, endpoint.BufferedRead, nil)
		c := &gorillaCodec{conn: conn, subprotocol: subprotocol, keepalive: keepalive, state: StateOpen}
		conn.SetCloseHandler(func(code int, text string) error {
			c.mu.Lock()
			c.state = StateCloseReceived
			c.mu.Unlock()
			return nil
		})
		if keepalive > 0 {
			conn.SetPingHandler(func(data string) error {
				deadline := time.Now().Add(keepalive)
				return conn.WriteControl(websocket.PongMessage, []byte(data), deadline)
			})
		}
		return c
	}
}

func (c *gorillaCodec) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *gorillaCodec) Subprotocol() string { return c.subprotocol }

func (c *gorillaCodec) Receive(ctx context.Context) (Message, error) {
	type result struct {
		kind    int
		payload []byte
		err     error
	}
	done := make(chan result, 1)
	go func() {
		kind, payload, err := c.conn.ReadMessage()
		done <- result{kind, payload, err}
	}()

	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			var closeErr *websocket.CloseError
			if errors.As(r.err, &closeErr) {
				c.mu.Lock()
				c.state = StateCloseReceived
				c.mu.Unlock()
				return Message{CloseCode: CloseCode(closeErr.Code), CloseReason: closeErr.Text}, nil
			}
			return Message{}, r.err
		}
		switch r.kind {
		case websocket.TextMessage:
			return Message{Kind: Text, Payload: r.payload}, nil
		case websocket.BinaryMessage:
			return Message{Kind: Binary, Payload: r.payload}, nil
		default:
			return c.Receive(ctx)
		}
	}
}

func (c *gorillaCodec) Send(ctx context.Context, kind MessageKind, payload []byte) error {
	wireKind := websocket.TextMessage
	if kind == Binary {
		wireKind = websocket.BinaryMessage
	}
	errc := make(chan error, 1)
	go func() { errc <- c.conn.WriteMessage(wireKind, payload) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

func (c *gorillaCodec) Close(code CloseCode, reason string) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(int(code), reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.conn.Close()
}
