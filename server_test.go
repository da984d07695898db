package wsnova

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	all := append([]ServerOption{WithListenAddress("127.0.0.1", 0)}, opts...)
	srv := NewServer(all...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serverPort(t *testing.T, srv *Server) int {
	t.Helper()
	addr := srv.Addr()
	require.NotNil(t, addr)
	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	return tcpAddr.Port
}

func TestEchoRoundTripAndClientDisconnect(t *testing.T) {
	srv := startTestServer(t)
	port := serverPort(t, srv)

	connected := make(chan ConnectedEvent, 1)
	srv.OnClientConnected(func(e ConnectedEvent) { connected <- e })

	received := make(chan MessageEvent, 1)
	srv.OnMessageReceived(func(e MessageEvent) {
		received <- e
		_ = srv.SendMessage(context.Background(), e.ClientID, e.Text)
	})

	disconnected := make(chan DisconnectedEvent, 1)
	srv.OnClientDisconnected(func(e DisconnectedEvent) { disconnected <- e })

	client := NewClient("127.0.0.1", port, "/")
	require.NoError(t, client.Connect(context.Background()))

	select {
	case e := <-connected:
		assert.NotEmpty(t, e.ClientID)
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed client_connected")
	}

	echoed := make(chan ClientMessageEvent, 1)
	client.OnMessageReceived(func(e ClientMessageEvent) { echoed <- e })

	require.NoError(t, client.SendMessage(context.Background(), "Hello World"))

	select {
	case e := <-received:
		assert.Equal(t, "Hello World", e.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}

	select {
	case e := <-echoed:
		assert.Equal(t, "Hello World", e.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the echo")
	}

	require.NoError(t, client.Disconnect("closing status test description"))

	select {
	case e := <-disconnected:
		assert.Equal(t, "closing status test description", e.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed client_disconnected")
	}
}

func TestServerShutdownNotifiesClient(t *testing.T) {
	srv := NewServer(WithListenAddress("127.0.0.1", 0))
	require.NoError(t, srv.Start(context.Background()))
	port := serverPort(t, srv)

	client := NewClient("127.0.0.1", port, "/")
	require.NoError(t, client.Connect(context.Background()))

	disconnected := make(chan ClientDisconnectedEvent, 1)
	client.OnDisconnected(func(e ClientDisconnectedEvent) { disconnected <- e })

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case e := <-disconnected:
		assert.Equal(t, "Server is shutting down", e.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("client never observed the shutdown disconnect")
	}
}

func TestPassivePromotionOnReconnect(t *testing.T) {
	srv := NewServer(
		WithListenAddress("127.0.0.1", 0),
		WithRememberDisconnectedClients(true),
		WithSendUserIDToClient(true),
	)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	port := serverPort(t, srv)

	first := NewClient("127.0.0.1", port, "/")
	require.NoError(t, first.Connect(context.Background()))
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	assignedID := first.UserID()
	require.NotEmpty(t, assignedID)

	require.NoError(t, first.Disconnect(""))
	require.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	second := NewClient("127.0.0.1", port, "/", WithUserID(assignedID))
	require.NoError(t, second.Connect(context.Background()))
	assert.Equal(t, assignedID, second.UserID())

	info, err := srv.GetClientByID(assignedID)
	require.NoError(t, err)
	assert.Equal(t, assignedID, info.ID())
}

func TestIdentityConflictRejectsSecondConnect(t *testing.T) {
	const sharedID = "11111111-1111-4111-8111-111111111111"

	srv := NewServer(
		WithListenAddress("127.0.0.1", 0),
		WithRememberDisconnectedClients(true),
	)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	port := serverPort(t, srv)

	first := NewClient("127.0.0.1", port, "/", WithUserID(sharedID))
	require.NoError(t, first.Connect(context.Background()))
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	second := NewClient("127.0.0.1", port, "/", WithUserID(sharedID))
	err := second.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Equal(t, 1, srv.ClientCount())
}

func TestUpgradeCallbackRejectsConnection(t *testing.T) {
	srv := NewServer(WithListenAddress("127.0.0.1", 0))
	srv.OnUpgrade(func(ctx context.Context, e *UpgradeEvent) error {
		e.Handle = false
		_ = e.Response.SetStatus(403, "Forbidden")
		_ = e.Response.SetBody("Connection only possible via local network.")
		return nil
	})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	port := serverPort(t, srv)

	client := NewClient("127.0.0.1", port, "/")
	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Equal(t, 0, srv.ClientCount())
}

func TestManyConcurrentClients(t *testing.T) {
	if testing.Short() {
		t.Skip("skips the concurrent-client soak test in -short mode")
	}
	const clientCount = 200

	srv := startTestServer(t)
	port := serverPort(t, srv)

	connectedCh := make(chan struct{}, clientCount)
	srv.OnClientConnected(func(ConnectedEvent) { connectedCh <- struct{}{} })

	receivedCh := make(chan MessageEvent, clientCount)
	srv.OnMessageReceived(func(e MessageEvent) { receivedCh <- e })

	clients := make([]*Client, clientCount)
	var wg sync.WaitGroup
	for i := 0; i < clientCount; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("127.0.0.1", port, "/")
			if err := c.Connect(context.Background()); err != nil {
				t.Errorf("client %d failed to connect: %v", i, err)
				return
			}
			clients[i] = c
			_ = c.SendMessage(context.Background(), "Hello World")
		}()
	}
	wg.Wait()

	for i := 0; i < clientCount; i++ {
		select {
		case <-connectedCh:
		case <-time.After(10 * time.Second):
			t.Fatalf("only saw %d of %d client_connected events", i, clientCount)
		}
	}
	for i := 0; i < clientCount; i++ {
		select {
		case e := <-receivedCh:
			assert.Equal(t, "Hello World", e.Text)
		case <-time.After(10 * time.Second):
			t.Fatalf("only saw %d of %d message_received events", i, clientCount)
		}
	}

	disconnectedCh := make(chan ClientDisconnectedEvent, clientCount)
	for _, c := range clients {
		c.OnDisconnected(func(e ClientDisconnectedEvent) { disconnectedCh <- e })
	}

	require.NoError(t, srv.Shutdown(context.Background()))

	for i := 0; i < clientCount; i++ {
		select {
		case <-disconnectedCh:
		case <-time.After(10 * time.Second):
			t.Fatalf("only saw %d of %d disconnected events", i, clientCount)
		}
	}
}
