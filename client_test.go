package wsnova

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendMessageRequiresConnection(t *testing.T) {
	c := NewClient("127.0.0.1", 0, "/")
	err := c.SendMessage(context.Background(), "hi")
	assert.Error(t, err)
	assert.True(t, IsClientError(err))
}

func TestDisconnectTwiceFailsTheSecondTime(t *testing.T) {
	c := NewClient("127.0.0.1", 0, "/")
	assert.NoError(t, c.Disconnect("bye"))

	err := c.Disconnect("bye again")
	assert.Error(t, err)
	assert.True(t, IsClientError(err))
}
