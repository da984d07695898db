package wscontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestContext(t *testing.T) {
	raw := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com:9001\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: keep-alive, Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"x-user-id: 3fa85f64-5717-4562-b3fc-2c963f66afa6\r\n" +
		"\r\n"

	ctx, err := Parse(Request, []byte(raw))
	require.NoError(t, err)

	host, err := ctx.Host()
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)

	port, err := ctx.Port()
	require.NoError(t, err)
	assert.Equal(t, 9001, port)

	path, err := ctx.RequestPath()
	require.NoError(t, err)
	assert.Equal(t, "/chat", path)

	assert.True(t, ctx.IsWebSocketRequest())

	userID, ok := ctx.UserID()
	assert.True(t, ok)
	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", userID)

	assert.True(t, ctx.ContainsHeader("sec-websocket-version", "13"))
}

func TestHostDefaultsPortTo80(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	ctx, err := Parse(Request, []byte(raw))
	require.NoError(t, err)

	port, err := ctx.Port()
	require.NoError(t, err)
	assert.Equal(t, 80, port)
}

func TestMissingHostFails(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\n"
	ctx, err := Parse(Request, []byte(raw))
	require.NoError(t, err)

	_, err = ctx.Host()
	assert.Error(t, err)
}

func TestIsWebSocketRequestRequiresBothHeaders(t *testing.T) {
	onlyUpgrade := "GET / HTTP/1.1\r\nHost: h\r\nUpgrade: websocket\r\n\r\n"
	ctx, err := Parse(Request, []byte(onlyUpgrade))
	require.NoError(t, err)
	assert.False(t, ctx.IsWebSocketRequest())

	onlyConnection := "GET / HTTP/1.1\r\nHost: h\r\nConnection: Upgrade\r\n\r\n"
	ctx, err = Parse(Request, []byte(onlyConnection))
	require.NoError(t, err)
	assert.False(t, ctx.IsWebSocketRequest())

	both := "GET / HTTP/1.1\r\nHost: h\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n"
	ctx, err = Parse(Request, []byte(both))
	require.NoError(t, err)
	assert.True(t, ctx.IsWebSocketRequest())
}

func TestStatusCodeSetOnce(t *testing.T) {
	ctx := NewResponse()
	require.NoError(t, ctx.SetStatusCode(409, "Conflict"))
	err := ctx.SetStatusCode(200, "OK")
	assert.Error(t, err)

	code, err := ctx.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, 409, code)
}

func TestBodySetOnce(t *testing.T) {
	ctx := NewResponse()
	require.NoError(t, ctx.SetBody("hello"))
	err := ctx.SetBody("again")
	assert.Error(t, err)
	assert.Equal(t, "hello", ctx.Body())
}

func TestParseResponseContext(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"
	ctx, err := Parse(Response, []byte(raw))
	require.NoError(t, err)

	code, err := ctx.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, 101, code)
	assert.True(t, ctx.ContainsHeader("Upgrade", "websocket"))
}

func TestRoundTripRequestBytes(t *testing.T) {
	req := NewRequest("GET", "/chat")
	req.AddHeader("Host", "example.com:9001")
	req.AddHeader("Upgrade", "websocket")
	req.AddHeader("Connection", "Upgrade")
	req.AddHeader("x-user-id", "abc-123")

	parsed, err := Parse(Request, req.Bytes())
	require.NoError(t, err)

	host, err := parsed.Host()
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)

	uid, ok := parsed.UserID()
	assert.True(t, ok)
	assert.Equal(t, "abc-123", uid)
}

func TestGetAllValuesExpandsCommas(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: h\r\nSec-WebSocket-Protocol: chat, superchat\r\n\r\n"
	ctx, err := Parse(Request, []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"chat", "superchat"}, ctx.GetAllValues("Sec-WebSocket-Protocol"))
}
