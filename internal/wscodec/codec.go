// Package wscodec defines the frame-codec abstraction the specification
// treats as an external collaborator: given a duplex byte stream, it
// presents send/receive/close over text and binary messages and exposes
// an open/closing/closed state. The default implementation wraps
// github.com/gorilla/websocket, the frame-level library the example
// corpus's coder/websocket- and gorilla-based services all converge on.
package wscodec

import (
	"bufio"
	"context"
	"net"
	"time"
)

// State mirrors the three-valued open/closing/closed lifecycle the
// specification requires of a frame codec.
type State int

const (
	StateOpen State = iota
	StateCloseReceived
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseReceived:
		return "close_received"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageKind distinguishes text from binary WebSocket messages.
type MessageKind int

const (
	Text MessageKind = iota
	Binary
)

// CloseCode is an RFC 6455 close status code. EndpointUnavailable is named
// after the .NET WebSocketCloseStatus enum the original implementation
// was built against; it carries the same wire value (1001) as the RFC's
// "going away" code.
type CloseCode uint16

const (
	CloseNormalClosure      CloseCode = 1000
	CloseEndpointUnavailable CloseCode = 1001
	CloseProtocolError      CloseCode = 1002
)

// Message is one fully-assembled WebSocket message handed back by
// Receive.
type Message struct {
	Kind        MessageKind
	Payload     []byte
	CloseCode   CloseCode
	CloseReason string
}

// Codec is the narrow interface the server/client lifecycle and message
// pump depend on. Production code gets one from Factory; tests can supply
// an in-memory fake (see fake.go).
type Codec interface {
	// State reports the current connection state.
	State() State
	// Receive blocks for the next complete message, or returns an error
	// if ctx is cancelled or the underlying stream fails. A received
	// close frame transitions State to StateCloseReceived and is
	// returned as a Message with Kind irrelevant and CloseCode/CloseReason
	// populated; callers detect it via IsClose.
	Receive(ctx context.Context) (Message, error)
	// Send writes one complete message.
	Send(ctx context.Context, kind MessageKind, payload []byte) error
	// Close sends a close frame (unless already closed; a received peer
	// close is answered) and releases the codec. Idempotent.
	Close(code CloseCode, reason string) error
	// Subprotocol returns the negotiated subprotocol, or "".
	Subprotocol() string
}

// IsClose reports whether msg represents a received close frame rather
// than a text/binary message.
func IsClose(msg Message, err error) bool {
	return err == nil && msg.CloseCode != 0
}

// Endpoint is the already-upgraded transport a Factory binds a Codec to:
// the raw net.Conn, plus whatever the handshake reader had already
// buffered but not consumed (a client may pipeline its first frame right
// after the handshake request).
type Endpoint struct {
	Conn        net.Conn
	BufferedRead *bufio.Reader
}

// Factory builds a Codec bound to an already-upgraded endpoint, given
// whether this side is the server, the negotiated subprotocol, and a
// keepalive interval for ping/pong.
type Factory func(endpoint Endpoint, isServer bool, subprotocol string, keepalive time.Duration) Codec
