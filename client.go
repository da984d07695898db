package wsnova

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pepnova9/wsnova/internal/wscodec"
	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wserr"
	"github.com/pepnova9/wsnova/internal/wsio"
	"github.com/pepnova9/wsnova/internal/wsupgrade"
)

// Client is the outbound counterpart to Server: it opens a TCP connection,
// performs the client side of the RFC 6455 handshake, and runs the
// message pump.
type Client struct {
	host string
	port int
	path string

	logger  logrus.FieldLogger
	options ClientOptions

	mu            sync.Mutex
	conn          net.Conn
	codec         wscodec.Codec
	userID        string
	connected     bool
	disconnecting bool

	messages       *handlerSet[ClientMessageEvent]
	binaryMessages *handlerSet[ClientBinaryMessageEvent]
	disconnects    *handlerSet[ClientDisconnectedEvent]
}

// NewClient constructs a Client targeting host:port/path. It does not
// connect; call Connect.
func NewClient(host string, port int, path string, opts ...ClientOption) *Client {
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{
		host:           host,
		port:           port,
		path:           path,
		logger:         options.logger,
		options:        options,
		userID:         options.userID,
		messages:       &handlerSet[ClientMessageEvent]{},
		binaryMessages: &handlerSet[ClientBinaryMessageEvent]{},
		disconnects:    &handlerSet[ClientDisconnectedEvent]{},
	}
}

// OnMessageReceived registers a listener for message_received.
func (c *Client) OnMessageReceived(h func(ClientMessageEvent)) { c.messages.add(h) }

// OnBinaryMessageReceived registers a listener for binary_message_received.
func (c *Client) OnBinaryMessageReceived(h func(ClientBinaryMessageEvent)) {
	c.binaryMessages.add(h)
}

// OnDisconnected registers a listener for disconnected.
func (c *Client) OnDisconnected(h func(ClientDisconnectedEvent)) { c.disconnects.add(h) }

// Connect dials the server, performs the handshake, and starts the
// background message pump. It fails if already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return wserr.Client("connect", fmt.Errorf("client already connected"))
	}
	c.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return wserr.Client("connect", fmt.Errorf("dialing %s: %w", addr, err))
	}

	stream := wsio.NewConnStream(conn)
	handler := wsupgrade.NewHandler(stream, c.options.codecFactory)

	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	sent, err := handler.SendUpgradeRequest(c.host, c.port, c.path, userID, c.options.extraHeaders)
	if err != nil {
		_ = conn.Close()
		return wserr.Client("connect", err)
	}

	response, err := wsupgrade.AwaitContext(stream, wscontext.Response)
	if err != nil {
		_ = conn.Close()
		return wserr.Client("connect", err)
	}
	if err := wsupgrade.ValidateUpgradeResponse(response, sent); err != nil {
		_ = conn.Close()
		return wserr.Client("connect", err)
	}

	confirmedID := userID
	if uid, ok := response.UserID(); ok {
		confirmedID = uid
	}

	endpoint := wsupgrade.EndpointFromStream(stream)
	codec := handler.CreateCodec(endpoint, false, "", 0)

	c.mu.Lock()
	c.conn = conn
	c.codec = codec
	c.userID = confirmedID
	c.connected = true
	c.disconnecting = false
	c.mu.Unlock()

	go c.runPump(ctx, codec)
	return nil
}

func (c *Client) runPump(ctx context.Context, codec wscodec.Codec) {
	_ = runPump(ctx, codec, c.isDisconnecting, pumpCallbacks{
		onText: func(payload []byte) {
			c.messages.dispatch(ClientMessageEvent{Text: string(payload)})
		},
		onBinary: func(payload []byte) {
			data := append([]byte(nil), payload...)
			c.binaryMessages.dispatch(ClientBinaryMessageEvent{Data: data})
		},
		onPeerClose: func(_ wscodec.CloseCode, reason string) {
			c.disconnects.dispatch(ClientDisconnectedEvent{Reason: reason})
		},
	})
	c.teardown()
}

func (c *Client) isDisconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnecting
}

func (c *Client) teardown() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// SendMessage sends a text frame. It requires an open connection.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	connected := c.connected
	codec := c.codec
	c.mu.Unlock()
	if !connected || codec == nil {
		return wserr.Client("send_message", fmt.Errorf("client is not connected"))
	}
	if err := codec.Send(ctx, wscodec.Text, []byte(text)); err != nil {
		return wserr.Client("send_message", err)
	}
	return nil
}

// Disconnect sends a normal-closure frame with reason (defaulting to
// "Closing") if the codec is still open or has already received a peer
// close, then tears down the TCP connection. It fails if already
// disconnecting.
func (c *Client) Disconnect(reason string) error {
	if reason == "" {
		reason = "Closing"
	}

	c.mu.Lock()
	if c.disconnecting {
		c.mu.Unlock()
		return wserr.Client("disconnect", fmt.Errorf("client already disconnecting"))
	}
	c.disconnecting = true
	codec := c.codec
	c.mu.Unlock()

	if codec != nil {
		switch codec.State() {
		case wscodec.StateOpen, wscodec.StateCloseReceived:
			_ = codec.Close(wscodec.CloseNormalClosure, reason)
		}
	}
	c.teardown()
	return nil
}

// IsConnected reports whether the client currently has an open connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// UserID returns the confirmed user id (the hint supplied at construction,
// or whatever the server echoed back in the upgrade response).
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}
