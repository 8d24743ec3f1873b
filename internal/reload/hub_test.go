package reload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagegen/internal/templates"
)

func startHub(t *testing.T, origins ...string) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, origins...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	require.Eventually(t, func() bool { return hub.Clients() == want }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	require.NoError(t, hub.Broadcast(Message{Type: MessageUpdate, Files: []string{"routes.mjs"}}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageUpdate, msg.Type)
		assert.Equal(t, []string{"routes.mjs"}, msg.Files)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestOnGeneratedAnnouncesWrittenFiles(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)
	ctx := context.Background()

	// Nothing written, nothing sent.
	require.NoError(t, hub.OnGenerated(ctx, &templates.BatchResult{Outcomes: []templates.Outcome{
		{Filename: "routes.mjs", Status: templates.StatusUnchanged},
	}}))
	require.NoError(t, hub.OnGenerated(ctx, nil))

	require.NoError(t, hub.OnGenerated(ctx, &templates.BatchResult{Outcomes: []templates.Outcome{
		{Filename: "routes.mjs", Status: templates.StatusUnchanged},
		{Filename: "layouts.mjs", Status: templates.StatusWritten},
		{Filename: "broken.mjs", Status: templates.StatusFailed},
	}}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageUpdate, msg.Type)
	assert.Equal(t, []string{"layouts.mjs"}, msg.Files)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRejectsForeignOrigin(t *testing.T) {
	hub, url := startHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Equal(t, 0, hub.Clients())
}

func TestAllowedOriginPattern(t *testing.T) {
	hub, url := startHub(t, "localhost:*")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://localhost:3000"}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		errc <- err
	}()

	hub.Shutdown()
	assert.Equal(t, 0, hub.Clients())

	err := <-errc
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// Shutdown is idempotent and later connections are refused.
	hub.Shutdown()
	late, _, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		defer late.CloseNow()
		_, _, err = late.Read(ctx)
		assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	}
	assert.Equal(t, 0, hub.Clients())
}
