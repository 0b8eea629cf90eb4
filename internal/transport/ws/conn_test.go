package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/torhovland/segmentor/internal/transport"
)

// startServer serves handle on every upgraded connection and returns the ws:// endpoint.
func startServer(t *testing.T, cfg UpgraderConfig, handle func(*Conn)) string {
	t.Helper()
	upgrader := NewUpgrader(cfg)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, endpoint string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestConnRoundTrip(t *testing.T) {
	endpoint := startServer(t, UpgraderConfig{}, func(c *Conn) {
		ctx := context.Background()
		text, err := c.ReadText(ctx)
		if err != nil {
			return
		}
		_ = c.WriteText(ctx, "echo:"+text)
	})
	client := dial(t, endpoint, nil)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo:hello", string(data))
}

func TestConnRejectsBinaryFrames(t *testing.T) {
	result := make(chan error, 1)
	endpoint := startServer(t, UpgraderConfig{}, func(c *Conn) {
		_, err := c.ReadText(context.Background())
		result <- err
	})
	client := dial(t, endpoint, nil)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0xff}))
	require.True(t, errors.Is(<-result, transport.ErrUnexpectedFrame))
}

func TestConnReportsClose(t *testing.T) {
	result := make(chan error, 1)
	endpoint := startServer(t, UpgraderConfig{}, func(c *Conn) {
		_, err := c.ReadText(context.Background())
		result <- err
	})
	client := dial(t, endpoint, nil)

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
	require.NoError(t, client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	require.True(t, errors.Is(<-result, transport.ErrClosed))
}

func TestCloseOnDoneUnblocksRead(t *testing.T) {
	result := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	endpoint := startServer(t, UpgraderConfig{}, func(c *Conn) {
		stop := c.CloseOnDone(ctx)
		defer stop()
		_, err := c.ReadText(ctx)
		result <- err
	})
	dial(t, endpoint, nil)

	cancel()
	select {
	case err := <-result:
		require.True(t, errors.Is(err, transport.ErrClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("read was not unblocked by cancellation")
	}
}

func TestUpgraderOriginCheck(t *testing.T) {
	endpoint := startServer(t, UpgraderConfig{AllowedOrigins: []string{"http://localhost:8088"}}, func(*Conn) {})

	allowed := http.Header{"Origin": []string{"http://localhost:8088"}}
	dial(t, endpoint, allowed)

	denied := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(endpoint, denied)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
