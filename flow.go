package wsnova

import (
	"context"

	"github.com/pepnova9/wsnova/internal/wscodec"
	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wsio"
	"github.com/pepnova9/wsnova/internal/wssession"
	"github.com/pepnova9/wsnova/internal/wsupgrade"
)

// clientFlow orchestrates one server-side connection from raw stream to
// disconnect: reading_request -> identifying -> upgrade_callback ->
// {rejected, accepted} -> pumping -> closing -> retained|removed.
type clientFlow struct {
	server *Server
	stream wsio.Stream

	session *wssession.Session

	wasPassive bool
	accepted   bool

	disconnectDispatched bool
	disconnectReason     string
}

func (f *clientFlow) run(ctx context.Context) {
	f.session = wssession.New(f.stream)
	defer f.cleanup()

	handler := wsupgrade.NewHandler(f.stream, f.server.options.codecFactory)

	request, err := wsupgrade.AwaitContext(f.stream, wscontext.Request)
	if err != nil {
		f.server.logger.WithError(err).Debug("wsnova: reading upgrade request failed")
		return
	}

	if f.server.options.rememberDisconnectedClients {
		if userID, ok := request.UserID(); ok {
			if conflict := f.identify(userID); conflict != nil {
				if err := handler.Reject(conflict); err != nil {
					f.server.logger.WithError(err).Debug("wsnova: writing conflict response failed")
				}
				return
			}
		}
	}

	event := &UpgradeEvent{
		Client:   &ClientInfo{session: f.session},
		Request:  &Request{ctx: request},
		Response: newResponse(),
		Handle:   true,
	}
	for _, cb := range f.server.upgradeChain() {
		if err := cb(ctx, event); err != nil {
			f.server.logger.WithError(err).Warn("wsnova: upgrade callback returned an error, rejecting")
			event.Handle = false
			break
		}
	}

	if !event.Handle {
		if err := handler.Reject(event.Response.ctx); err != nil {
			f.server.logger.WithError(err).Debug("wsnova: writing rejection response failed")
		}
		return
	}

	response, err := handler.Accept(request, wsupgrade.AcceptParams{
		ResponseTemplate: event.Response.ctx,
		ConfirmedID:      f.session.ID(),
		SendUserID:       f.server.options.sendUserIDToClient,
		Subprotocol:      f.server.options.subprotocol,
	})
	if err != nil {
		f.server.logger.WithError(err).Debug("wsnova: accept failed")
		return
	}

	negotiated := ""
	if protocols := response.GetAllValues("Sec-WebSocket-Protocol"); len(protocols) > 0 {
		negotiated = protocols[0]
	}

	endpoint := wsupgrade.EndpointFromStream(f.stream)
	codec := handler.CreateCodec(endpoint, true, negotiated, 0)
	if err := f.session.UseCodec(codec); err != nil {
		f.server.logger.WithError(err).Error("wsnova: session already bound to a codec")
		return
	}

	f.server.registry.ActiveStore(f.session.ID(), f.session)
	f.accepted = true
	f.server.connected.dispatch(ConnectedEvent{ClientID: f.session.ID(), Remote: f.session.RemoteEndpoint()})

	_ = runPump(ctx, codec, f.server.isShuttingDown, pumpCallbacks{
		onText: func(payload []byte) {
			f.server.messages.dispatch(MessageEvent{ClientID: f.session.ID(), Text: string(payload)})
		},
		onBinary: func(payload []byte) {
			data := append([]byte(nil), payload...)
			f.server.binaryMessages.dispatch(BinaryMessageEvent{ClientID: f.session.ID(), Data: data})
		},
		onPeerClose: func(_ wscodec.CloseCode, reason string) {
			f.disconnectReason = reason
			f.disconnectDispatched = true
			f.server.disconnected.dispatch(DisconnectedEvent{ClientID: f.session.ID(), Reason: reason})
		},
	})
}

// identify resolves a remembered user id against ACTIVE/PASSIVE state. It
// is only called when the request carries x-user-id, runs under the
// registry's single identification monitor, and returns a non-nil 409
// conflict response if (and only if) the id is already ACTIVE elsewhere.
func (f *clientFlow) identify(userID string) *wscontext.Context {
	var conflict *wscontext.Context
	f.server.registry.Identify(func() {
		if _, ok := f.server.registry.ActiveGet(userID); ok {
			conflict = wsupgrade.ConflictResponse()
			return
		}
		if passiveSession, ok := f.server.registry.PassiveGet(userID); ok {
			f.server.registry.PassiveRemove(userID)
			passiveSession.UpdateStream(f.stream)
			f.session = passiveSession
			f.wasPassive = true
			return
		}
		_ = f.session.UpdateID(userID)
	})
	return conflict
}

// cleanup performs the registry bookkeeping that must run exactly once per
// connection attempt, win or lose. It always runs, via defer, regardless of
// which point in the handshake the flow exited at.
func (f *clientFlow) cleanup() {
	if !f.accepted && !f.wasPassive {
		_ = f.stream.Close()
		return
	}
	if f.server.isShuttingDown() {
		// Server.Shutdown already removed, disposed, and dispatched for
		// every ACTIVE session; doing it again here would double-fire
		// client_disconnected and could resurrect the session into
		// PASSIVE after Shutdown deliberately dropped it.
		return
	}

	id := f.session.ID()
	f.server.registry.ActiveDelete(id)
	_ = f.session.Dispose()
	if f.server.options.rememberDisconnectedClients {
		f.server.registry.PassivePut(id, f.session)
	}

	if f.accepted && !f.disconnectDispatched {
		reason := f.disconnectReason
		if reason == "" {
			reason = "Connection closed"
		}
		f.server.disconnected.dispatch(DisconnectedEvent{ClientID: id, Reason: reason})
	}
}
