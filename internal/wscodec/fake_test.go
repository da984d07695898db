package wscodec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCodecSendRecord(t *testing.T) {
	c := NewFakeCodec("")
	ctx := context.Background()
	require.NoError(t, c.Send(ctx, Text, []byte("hello")))
	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, Text, sent[0].Kind)
	assert.Equal(t, "hello", string(sent[0].Payload))
}

func TestFakeCodecReceiveDelivered(t *testing.T) {
	c := NewFakeCodec("")
	c.Deliver(Message{Kind: Binary, Payload: []byte{1, 2, 3}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Binary, msg.Kind)
	assert.Equal(t, []byte{1, 2, 3}, msg.Payload)
}

func TestFakeCodecReceiveCloseTransitionsState(t *testing.T) {
	c := NewFakeCodec("")
	c.Deliver(Message{CloseCode: CloseNormalClosure, CloseReason: "bye"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, IsClose(msg, err))
	assert.Equal(t, StateCloseReceived, c.State())
}

func TestFakeCodecCloseIsIdempotent(t *testing.T) {
	c := NewFakeCodec("")
	require.NoError(t, c.Close(CloseNormalClosure, "done"))
	require.NoError(t, c.Close(CloseNormalClosure, "done again"))
	assert.Equal(t, StateClosed, c.State())
}

func TestFakeCodecReceiveRespectsContextCancellation(t *testing.T) {
	c := NewFakeCodec("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
