package wscodec

import (
	"context"
	"sync"
)

// FakeCodec is an in-memory Codec used by the handshake and session tests
// that need a codec without opening real sockets,
// per the specification's design note that dynamic dispatch on streams
// and codecs exists only to support mocking.
type FakeCodec struct {
	mu          sync.Mutex
	state       State
	subprotocol string

	inbound  chan Message
	outbound []Message
}

// NewFakeCodec returns a codec already in StateOpen with no queued
// inbound messages.
func NewFakeCodec(subprotocol string) *FakeCodec {
	return &FakeCodec{state: StateOpen, subprotocol: subprotocol, inbound: make(chan Message, 16)}
}

// Deliver queues msg to be returned by the next Receive call, simulating
// a peer sending it.
func (f *FakeCodec) Deliver(msg Message) { f.inbound <- msg }

// Sent returns every message Send has written so far, in order.
func (f *FakeCodec) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.outbound))
	copy(out, f.outbound)
	return out
}

func (f *FakeCodec) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeCodec) Subprotocol() string { return f.subprotocol }

func (f *FakeCodec) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-f.inbound:
		if msg.CloseCode != 0 {
			f.mu.Lock()
			f.state = StateCloseReceived
			f.mu.Unlock()
		}
		return msg, nil
	}
}

func (f *FakeCodec) Send(ctx context.Context, kind MessageKind, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.outbound = append(f.outbound, Message{Kind: kind, Payload: cp})
	return nil
}

func (f *FakeCodec) Close(code CloseCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateClosed
	return nil
}
