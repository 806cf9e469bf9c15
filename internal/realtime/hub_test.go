package realtime

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastsToAllClients(t *testing.T) {
	e := echo.New()
	hub := NewHub(slog.Default())
	e.GET("/ws", hub.Handler)

	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dial := func() *websocket.Conn {
		conn, _, err := websocket.Dial(ctx, srv.URL+"/ws", nil)
		require.NoError(t, err)
		return conn
	}

	a := dial()
	defer a.CloseNow()
	b := dial()
	defer b.CloseNow()

	// Registration races the first write without a sync point; give the
	// second client a beat to land in the hub.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("hello")))

	typ, data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "hello", string(data))

	// The sender hears its own broadcast too.
	_, data, err = a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
