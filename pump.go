package wsnova

import (
	"context"

	"github.com/pepnova9/wsnova/internal/wscodec"
)

// pumpCallbacks are the hooks runPump invokes for each message kind and for
// a peer-initiated close. They're expected to do their own detached
// dispatch (via a handlerSet) rather than block the pump.
type pumpCallbacks struct {
	onText      func(payload []byte)
	onBinary    func(payload []byte)
	onPeerClose func(code wscodec.CloseCode, reason string)
}

// runPump is the message pump shared by the server's per-connection flow
// and the client: while the codec reports an open state, receive one
// message at a time and dispatch it. A close frame from the peer triggers
// onPeerClose and a normal-closure reply unless shuttingDown reports that
// this side already initiated the close (preventing a double-close race).
// Cancellation of ctx unwinds the loop; the caller treats that as benign.
func runPump(ctx context.Context, codec wscodec.Codec, shuttingDown func() bool, cb pumpCallbacks) error {
	for codec.State() == wscodec.StateOpen {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := codec.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if wscodec.IsClose(msg, nil) {
			if !shuttingDown() {
				reason := msg.CloseReason
				if reason == "" {
					reason = "Closing"
				}
				cb.onPeerClose(msg.CloseCode, reason)
				_ = codec.Close(wscodec.CloseNormalClosure, "Closing")
			}
			return nil
		}

		switch msg.Kind {
		case wscodec.Text:
			cb.onText(msg.Payload)
		case wscodec.Binary:
			cb.onBinary(msg.Payload)
		}
	}
	return nil
}
