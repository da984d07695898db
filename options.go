package wsnova

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pepnova9/wsnova/internal/wscodec"
)

// ServerOptions holds the recognized server configuration. All other
// behavior is fixed; construct via functional With* options rather than
// setting fields directly.
type ServerOptions struct {
	listenIP   string
	listenPort int

	rememberDisconnectedClients  bool
	removePassiveAfterExpiration bool
	passiveClientLifetime        time.Duration

	sendUserIDToClient bool
	subprotocol        string

	logger       logrus.FieldLogger
	codecFactory wscodec.Factory

	upgradeCallbacks []UpgradeCallback
}

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		listenIP:              "0.0.0.0",
		listenPort:            0,
		passiveClientLifetime: time.Minute,
		logger:                logrus.StandardLogger(),
		codecFactory:          wscodec.NewGorillaFactory(),
	}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*ServerOptions)

// WithListenAddress sets the local ip and port the server binds to.
func WithListenAddress(ip string, port int) ServerOption {
	return func(o *ServerOptions) { o.listenIP = ip; o.listenPort = port }
}

// WithRememberDisconnectedClients enables PASSIVE bookkeeping on disconnect.
func WithRememberDisconnectedClients(v bool) ServerOption {
	return func(o *ServerOptions) { o.rememberDisconnectedClients = v }
}

// WithPassiveExpiration makes the PASSIVE mapping an expiring map instead
// of a plain one. Has no effect unless combined with
// WithRememberDisconnectedClients(true).
func WithPassiveExpiration(v bool) ServerOption {
	return func(o *ServerOptions) { o.removePassiveAfterExpiration = v }
}

// WithPassiveClientLifetime sets the TTL for PASSIVE entries when expiry is
// enabled. Default is one minute.
func WithPassiveClientLifetime(d time.Duration) ServerOption {
	return func(o *ServerOptions) { o.passiveClientLifetime = d }
}

// WithSendUserIDToClient makes the server echo the confirmed client id back
// via the x-user-id response header on a successful upgrade.
func WithSendUserIDToClient(v bool) ServerOption {
	return func(o *ServerOptions) { o.sendUserIDToClient = v }
}

// WithSubprotocol sets the server's preferred WebSocket subprotocol.
func WithSubprotocol(protocol string) ServerOption {
	return func(o *ServerOptions) { o.subprotocol = protocol }
}

// WithLogger overrides the default logrus.StandardLogger() sink.
func WithLogger(log logrus.FieldLogger) ServerOption {
	return func(o *ServerOptions) { o.logger = log }
}

// WithCodecFactory overrides the default gorilla/websocket-backed frame
// codec factory, mainly for tests.
func WithCodecFactory(f wscodec.Factory) ServerOption {
	return func(o *ServerOptions) { o.codecFactory = f }
}

// WithUpgradeCallback appends a callback to the sequential upgrade-policy
// chain. Callbacks run in registration order.
func WithUpgradeCallback(cb UpgradeCallback) ServerOption {
	return func(o *ServerOptions) { o.upgradeCallbacks = append(o.upgradeCallbacks, cb) }
}

// ClientOptions holds client-side configuration.
type ClientOptions struct {
	userID       string
	logger       logrus.FieldLogger
	codecFactory wscodec.Factory
	extraHeaders map[string]string
}

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		logger:       logrus.StandardLogger(),
		codecFactory: wscodec.NewGorillaFactory(),
		extraHeaders: make(map[string]string),
	}
}

// ClientOption configures a Client at construction time.
type ClientOption func(*ClientOptions)

// WithUserID sets the x-user-id hint sent with the upgrade request, used to
// re-identify a previously PASSIVE session.
func WithUserID(id string) ClientOption {
	return func(o *ClientOptions) { o.userID = id }
}

// WithClientLogger overrides the client's default logger.
func WithClientLogger(log logrus.FieldLogger) ClientOption {
	return func(o *ClientOptions) { o.logger = log }
}

// WithClientCodecFactory overrides the client's default frame codec
// factory, mainly for tests.
func WithClientCodecFactory(f wscodec.Factory) ClientOption {
	return func(o *ClientOptions) { o.codecFactory = f }
}

// WithExtraHeader adds one extra header to the upgrade request.
func WithExtraHeader(name, value string) ClientOption {
	return func(o *ClientOptions) { o.extraHeaders[name] = value }
}
