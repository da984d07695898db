// Package wsnova implements a self-contained RFC 6455 WebSocket server and
// client pair that speaks the handshake directly over raw TCP, bypassing
// any HTTP server framework.
package wsnova

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pepnova9/wsnova/internal/wscodec"
	"github.com/pepnova9/wsnova/internal/wserr"
	"github.com/pepnova9/wsnova/internal/wsio"
	"github.com/pepnova9/wsnova/internal/wssession"
)

// Server owns a TCP listener, the ACTIVE/PASSIVE session registries, and
// fans out connection/message events to registered listeners.
type Server struct {
	logger  logrus.FieldLogger
	options ServerOptions

	registry *wssession.Registry

	mu           sync.Mutex
	listener     net.Listener
	started      bool
	shuttingDown bool
	cancel       context.CancelFunc

	callbacksMu      sync.Mutex
	upgradeCallbacks []UpgradeCallback

	connected      *handlerSet[ConnectedEvent]
	disconnected   *handlerSet[DisconnectedEvent]
	messages       *handlerSet[MessageEvent]
	binaryMessages *handlerSet[BinaryMessageEvent]
	passiveExpired *handlerSet[PassiveExpiredEvent]
}

// NewServer constructs a Server. It does not start listening; call Start.
func NewServer(opts ...ServerOption) *Server {
	options := defaultServerOptions()
	for _, opt := range opts {
		opt(&options)
	}

	s := &Server{
		logger:           options.logger,
		upgradeCallbacks: append([]UpgradeCallback(nil), options.upgradeCallbacks...),
		connected:        &handlerSet[ConnectedEvent]{},
		disconnected:     &handlerSet[DisconnectedEvent]{},
		messages:         &handlerSet[MessageEvent]{},
		binaryMessages:   &handlerSet[BinaryMessageEvent]{},
		passiveExpired:   &handlerSet[PassiveExpiredEvent]{},
	}

	var registryOpts []wssession.RegistryOption
	if options.rememberDisconnectedClients && options.removePassiveAfterExpiration {
		registryOpts = append(registryOpts, wssession.WithExpiringPassive(
			options.passiveClientLifetime,
			func(sess *wssession.Session) {
				s.passiveExpired.dispatch(PassiveExpiredEvent{ClientID: sess.ID()})
			},
		))
	}
	s.registry = wssession.NewRegistry(registryOpts...)
	s.options = options
	return s
}

// OnClientConnected registers a listener for client_connected.
func (s *Server) OnClientConnected(h func(ConnectedEvent)) { s.connected.add(h) }

// OnClientDisconnected registers a listener for client_disconnected.
func (s *Server) OnClientDisconnected(h func(DisconnectedEvent)) { s.disconnected.add(h) }

// OnMessageReceived registers a listener for message_received.
func (s *Server) OnMessageReceived(h func(MessageEvent)) { s.messages.add(h) }

// OnBinaryMessageReceived registers a listener for binary_message_received.
func (s *Server) OnBinaryMessageReceived(h func(BinaryMessageEvent)) { s.binaryMessages.add(h) }

// OnPassiveUserExpired registers a listener for passive_user_expired.
func (s *Server) OnPassiveUserExpired(h func(PassiveExpiredEvent)) { s.passiveExpired.add(h) }

// OnUpgrade appends cb to the sequential, awaited upgrade-policy chain.
func (s *Server) OnUpgrade(cb UpgradeCallback) {
	s.callbacksMu.Lock()
	s.upgradeCallbacks = append(s.upgradeCallbacks, cb)
	s.callbacksMu.Unlock()
}

func (s *Server) upgradeChain() []UpgradeCallback {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	out := make([]UpgradeCallback, len(s.upgradeCallbacks))
	copy(out, s.upgradeCallbacks)
	return out
}

// Start binds the listener and begins accepting connections on a
// background goroutine. It fails if the server was already started.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return wserr.Server("start", fmt.Errorf("server already started"))
	}

	addr := fmt.Sprintf("%s:%d", s.options.listenIP, s.options.listenPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return wserr.Server("start", fmt.Errorf("binding %s: %w", addr, err))
	}

	rootCtx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()

	go s.acceptLoop(rootCtx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.logger.WithError(err).Warn("wsnova: accept failed, continuing")
			continue
		}
		stream := wsio.NewConnStream(conn)
		go s.handleConnection(ctx, stream)
	}
}

func (s *Server) handleConnection(ctx context.Context, stream wsio.Stream) {
	f := &clientFlow{server: s, stream: stream}
	f.run(ctx)
}

// Shutdown closes every ACTIVE session with an EndpointUnavailable close
// frame and "Server is shutting down" reason, cancels the root
// cancellation (unwinding the accept loop and every pump), and releases
// the listener. It fails if the server was never started or is already
// shutting down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.shuttingDown {
		s.mu.Unlock()
		return wserr.Server("shutdown", fmt.Errorf("server not started or already shutting down"))
	}
	s.shuttingDown = true
	listener := s.listener
	cancel := s.cancel
	s.mu.Unlock()

	for id, sess := range s.registry.ActiveSnapshot() {
		if codec := sess.Codec(); codec != nil && codec.State() == wscodec.StateOpen {
			_ = codec.Close(wscodec.CloseEndpointUnavailable, "Server is shutting down")
		}
		s.registry.ActiveDelete(id)
		_ = sess.Dispose()
		s.disconnected.dispatch(DisconnectedEvent{ClientID: id, Reason: "Server is shutting down"})
	}

	cancel()
	if listener != nil {
		_ = listener.Close()
	}
	return nil
}

// Addr returns the listener's bound address, or nil if Start hasn't
// completed yet. Useful when WithListenAddress was given port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// SendMessage sends a text frame to the named ACTIVE client.
func (s *Server) SendMessage(ctx context.Context, clientID, text string) error {
	sess, ok := s.registry.ActiveGet(clientID)
	if !ok {
		return wserr.Server("send_message", fmt.Errorf("client not found: %s", clientID))
	}
	codec := sess.Codec()
	if codec == nil {
		return wserr.Server("send_message", fmt.Errorf("client is not connected: %s", clientID))
	}
	if err := codec.Send(ctx, wscodec.Text, []byte(text)); err != nil {
		return wserr.Server("send_message", err)
	}
	return nil
}

// GetClientByID returns the connected client's handle.
func (s *Server) GetClientByID(clientID string) (*ClientInfo, error) {
	sess, ok := s.registry.ActiveGet(clientID)
	if !ok {
		return nil, wserr.Server("get_client_by_id", fmt.Errorf("client not found: %s", clientID))
	}
	return &ClientInfo{session: sess}, nil
}

// ClientIDs returns a snapshot of every ACTIVE client id.
func (s *Server) ClientIDs() []string { return s.registry.ActiveIDs() }

// ClientCount returns the number of ACTIVE clients.
func (s *Server) ClientCount() int { return s.registry.ActiveCount() }

// IsListening reports whether Start succeeded and Shutdown has not been
// called since.
func (s *Server) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.shuttingDown
}

// Stats aggregates ClientCount and ClientIDs from a single registry
// snapshot, for convenience.
type Stats struct {
	ClientCount int
	ClientIDs   []string
}

// Stats returns a point-in-time aggregation over ACTIVE.
func (s *Server) Stats() Stats {
	snap := s.registry.ActiveSnapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	return Stats{ClientCount: len(snap), ClientIDs: ids}
}
