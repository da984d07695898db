package wsnova

import (
	"context"
	"sync"
	"time"

	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wssession"
)

// Request is the read-only view of an incoming upgrade request handed to
// an UpgradeCallback.
type Request struct{ ctx *wscontext.Context }

func (r *Request) Host() (string, error) { return r.ctx.Host() }
func (r *Request) Port() (int, error)    { return r.ctx.Port() }
func (r *Request) Path() (string, error) { return r.ctx.RequestPath() }

// Header returns every comma-expanded value of the named header.
func (r *Request) Header(name string) []string { return r.ctx.GetAllValues(name) }

func (r *Request) ContainsHeader(name string, values ...string) bool {
	return r.ctx.ContainsHeader(name, values...)
}

func (r *Request) UserID() (string, bool) { return r.ctx.UserID() }

// Response is the mutable response an UpgradeCallback may fill in, either
// to customize a 101 (extra headers) or to reject the upgrade outright
// (status + body).
type Response struct{ ctx *wscontext.Context }

func newResponse() *Response { return &Response{ctx: wscontext.NewResponse()} }

// SetStatus sets the response status code. It may be called only once.
func (r *Response) SetStatus(code int, reason string) error { return r.ctx.SetStatusCode(code, reason) }

func (r *Response) AddHeader(name, value string) { r.ctx.AddHeader(name, value) }

// SetBody sets the response body. It may be called only once.
func (r *Response) SetBody(body string) error { return r.ctx.SetBody(body) }

// ClientInfo is the read-only handle to a connected client's session
// exposed through events, GetClientByID, and upgrade callbacks.
type ClientInfo struct{ session *wssession.Session }

func (c *ClientInfo) ID() string             { return c.session.ID() }
func (c *ClientInfo) RemoteEndpoint() string { return c.session.RemoteEndpoint() }
func (c *ClientInfo) FirstSeen() time.Time   { return c.session.FirstSeen() }
func (c *ClientInfo) LastSeen() time.Time    { return c.session.LastSeen() }

// SetProperty attaches a user-supplied property to the session, typically
// from within an upgrade callback.
func (c *ClientInfo) SetProperty(key string, value any) { c.session.SetProperty(key, value) }

func (c *ClientInfo) Property(key string) (any, bool) { return c.session.Property(key) }

func (c *ClientInfo) Properties() map[string]any { return c.session.Properties() }

// UpgradeEvent is handed to each UpgradeCallback in sequence. A callback
// may mutate Response and/or flip Handle to false to reject the upgrade;
// later callbacks in the chain still run against the same event.
type UpgradeEvent struct {
	Client   *ClientInfo
	Request  *Request
	Response *Response
	Handle   bool
}

// UpgradeCallback is the asynchronous upgrade-policy hook: it may accept or
// reject an incoming upgrade and customize the response. The chain runs
// sequentially and is awaited before the handshake proceeds.
type UpgradeCallback func(ctx context.Context, event *UpgradeEvent) error

// ConnectedEvent describes a newly accepted, registered client.
type ConnectedEvent struct {
	ClientID string
	Remote   string
}

// DisconnectedEvent describes a client leaving ACTIVE, from either side.
type DisconnectedEvent struct {
	ClientID string
	Reason   string
}

// MessageEvent carries one received text message.
type MessageEvent struct {
	ClientID string
	Text     string
}

// BinaryMessageEvent carries one received binary message.
type BinaryMessageEvent struct {
	ClientID string
	Data     []byte
}

// PassiveExpiredEvent fires when a PASSIVE session's TTL elapses.
type PassiveExpiredEvent struct {
	ClientID string
}

// ClientMessageEvent carries one text message received by a Client.
type ClientMessageEvent struct{ Text string }

// ClientBinaryMessageEvent carries one binary message received by a Client.
type ClientBinaryMessageEvent struct{ Data []byte }

// ClientDisconnectedEvent fires when a Client's connection ends, from
// either side.
type ClientDisconnectedEvent struct{ Reason string }

// handlerSet is a thread-safe set of listeners for one event type. Dispatch
// is fire-and-forget: every listener runs on its own goroutine so a slow
// handler can never stall the pump or accept loop, per the specification's
// detached-task event model.
type handlerSet[T any] struct {
	mu       sync.Mutex
	handlers []func(T)
}

func (h *handlerSet[T]) add(fn func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

func (h *handlerSet[T]) dispatch(v T) {
	h.mu.Lock()
	fns := make([]func(T), len(h.handlers))
	copy(fns, h.handlers)
	h.mu.Unlock()
	for _, fn := range fns {
		go fn(v)
	}
}
