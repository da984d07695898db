// Package wsupgrade implements the RFC 6455 HTTP/1.1 upgrade handshake,
// both server and client side, over a raw byte stream rather than an HTTP
// server framework.
package wsupgrade

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/pepnova9/wsnova/internal/wscodec"
	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wserr"
	"github.com/pepnova9/wsnova/internal/wsio"
)

// GUID is the fixed RFC 6455 magic string used to compute the
// Sec-WebSocket-Accept token. It is the only static state in the module.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const protocolVersion = "13"

var requestPathPattern = regexp.MustCompile(`^/[A-Za-z0-9\-._~/]*$`)

const initialReadChunk = 1024

// Handler owns a stream and the codec factory used once the handshake
// completes. One Handler is created per connection.
type Handler struct {
	stream  wsio.Stream
	factory wscodec.Factory
}

// NewHandler binds a Handler to stream, using factory to build a frame
// codec once the upgrade succeeds.
func NewHandler(stream wsio.Stream, factory wscodec.Factory) *Handler {
	return &Handler{stream: stream, factory: factory}
}

// AwaitContext reads the initial HTTP bytes off the stream and parses
// them into a web context. It reads into a 1 KiB buffer in a loop,
// continuing to drain already-buffered bytes after the first read, and
// fails if the stream closes before any bytes arrive.
func AwaitContext(stream wsio.Stream, kind wscontext.Kind) (*wscontext.Context, error) {
	var acc []byte
	buf := make([]byte, initialReadChunk)

	n, err := stream.Read(buf)
	if n == 0 && err != nil {
		return nil, wserr.Upgrade("await_context", fmt.Errorf("stream closed before any bytes arrived: %w", err))
	}
	acc = append(acc, buf[:n]...)

	for stream.DataAvailable() {
		n, err = stream.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	ctx, perr := wscontext.Parse(kind, acc)
	if perr != nil {
		return nil, wserr.Upgrade("await_context", perr)
	}
	return ctx, nil
}

// CreateCodec delegates to the injected factory, per the specification's
// "create codec" step. keepalive defaults to 30 seconds when zero.
func (h *Handler) CreateCodec(endpoint wscodec.Endpoint, isServer bool, subprotocol string, keepalive time.Duration) wscodec.Codec {
	if keepalive == 0 {
		keepalive = 30 * time.Second
	}
	return h.factory(endpoint, isServer, subprotocol, keepalive)
}

// EndpointFromConn builds a wscodec.Endpoint from a net.Conn and whatever
// the handshake reader left buffered but unconsumed.
func EndpointFromConn(conn net.Conn, br *bufio.Reader) wscodec.Endpoint {
	return wscodec.Endpoint{Conn: conn, BufferedRead: br}
}

// connEndpointer is satisfied by wsio.ConnStream; EndpointFromStream uses it
// to recover the raw net.Conn and buffered reader without the wsio package
// needing to know anything about wscodec.
type connEndpointer interface {
	Conn() net.Conn
	BufferedReader() *bufio.Reader
}

// EndpointFromStream builds a wscodec.Endpoint from any stream that exposes
// its underlying net.Conn (real connections do; in-memory test streams
// don't, and get a zero Endpoint, which is fine for a codec factory that
// ignores it).
func EndpointFromStream(stream wsio.Stream) wscodec.Endpoint {
	if ce, ok := stream.(connEndpointer); ok {
		return EndpointFromConn(ce.Conn(), ce.BufferedReader())
	}
	return wscodec.Endpoint{}
}

func computeAcceptToken(key string) string {
	sum := sha1.Sum([]byte(key + GUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func generateClientKey() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

func validateKeyDecodesTo16Bytes(key string) error {
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("Sec-WebSocket-Key is not valid base64: %w", err)
	}
	if len(decoded) != 16 {
		return fmt.Errorf("Sec-WebSocket-Key must decode to 16 bytes, got %d", len(decoded))
	}
	return nil
}

