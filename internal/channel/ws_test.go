package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/pkg/types"
)

// echoServer accepts websocket connections and echoes every frame back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvRaw(t *testing.T, ch <-chan json.RawMessage, within time.Duration) json.RawMessage {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(within):
		t.Fatalf("timed out waiting for dispatch")
		return nil // unreachable
	}
}

func TestWSChannel_EmitBeforeConnect(t *testing.T) {
	c := NewWS("ws://irrelevant", zap.NewNop())
	err := c.Emit(types.EventAnswerSelected, types.AnswerSelectedPayload{})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestWSChannel_EmitAndDispatchRoundTrip(t *testing.T) {
	srv := echoServer(t)
	c := NewWS(wsURL(srv), zap.NewNop())

	got := make(chan json.RawMessage, 1)
	c.On(types.EventAnswerSelected, func(data json.RawMessage) {
		got <- data
	})

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	require.NoError(t, c.Emit(types.EventAnswerSelected, types.AnswerSelectedPayload{
		SessionID:      "sess-1",
		UserID:         "host-1",
		QuestionIndex:  2,
		SelectedOption: "b",
	}))

	data := recvRaw(t, got, time.Second)
	var p types.AnswerSelectedPayload
	require.NoError(t, json.Unmarshal(data, &p))
	require.Equal(t, 2, p.QuestionIndex)
	require.Equal(t, "b", p.SelectedOption)
}

func TestWSChannel_UnsubscribeStopsDelivery(t *testing.T) {
	srv := echoServer(t)
	c := NewWS(wsURL(srv), zap.NewNop())

	var kept, removed atomic.Int32
	c.On("ping", func(json.RawMessage) { kept.Add(1) })
	off := c.On("ping", func(json.RawMessage) { removed.Add(1) })
	off()

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	require.NoError(t, c.Emit("ping", map[string]string{}))

	require.Eventually(t, func() bool { return kept.Load() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, int32(0), removed.Load())
}

func TestWSChannel_ReconnectAfterServerDrop(t *testing.T) {
	var drops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// First connection dies abruptly; later ones echo.
		if drops.Add(1) == 1 {
			conn.Close(websocket.StatusInternalError, "boom")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewWS(wsURL(srv), zap.NewNop())
	c.retryDelay = 10 * time.Millisecond

	sawError := make(chan json.RawMessage, 1)
	echoed := make(chan json.RawMessage, 1)
	c.On(SignalSocketError, func(data json.RawMessage) {
		select {
		case sawError <- data:
		default:
		}
	})
	c.On("ping", func(data json.RawMessage) { echoed <- data })

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	_ = recvRaw(t, sawError, 2*time.Second)

	// After the re-dial, the channel works again. Emit can race the
	// reconnect, so retry until the echo lands.
	require.Eventually(t, func() bool {
		if err := c.Emit("ping", map[string]string{}); err != nil {
			return false
		}
		select {
		case <-echoed:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWSChannel_GivesUpAfterAttemptBudget(t *testing.T) {
	var refuse atomic.Bool
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refuse.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		// Hold the connection open until the test drops it.
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	c := NewWS(wsURL(srv), zap.NewNop())
	c.attempts = 1
	c.retryDelay = 10 * time.Millisecond

	lost := make(chan json.RawMessage, 1)
	c.On(SignalConnectionLost, func(data json.RawMessage) {
		select {
		case lost <- data:
		default:
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	serverSide := <-conns

	// Start refusing upgrades, then drop the live connection from the
	// server side so the re-dial budget is exhausted.
	refuse.Store(true)
	serverSide.Close(websocket.StatusInternalError, "boom")

	_ = recvRaw(t, lost, 3*time.Second)
	require.ErrorIs(t, c.Emit("ping", nil), ErrNotConnected)
}

func TestWSChannel_ConnectedSignalFiresOnConnectAndReconnect(t *testing.T) {
	var drops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if drops.Add(1) == 1 {
			conn.Close(websocket.StatusInternalError, "boom")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	c := NewWS(wsURL(srv), zap.NewNop())
	c.retryDelay = 10 * time.Millisecond

	var connects atomic.Int32
	c.On(SignalConnected, func(json.RawMessage) { connects.Add(1) })

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	require.Equal(t, int32(1), connects.Load())

	// The server drops the first socket; the re-dialed one must be
	// announced so subscribers can re-bind their session.
	require.Eventually(t, func() bool { return connects.Load() == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestWSChannel_DisconnectIsClean(t *testing.T) {
	srv := echoServer(t)
	c := NewWS(wsURL(srv), zap.NewNop())

	lost := make(chan json.RawMessage, 1)
	c.On(SignalConnectionLost, func(data json.RawMessage) {
		select {
		case lost <- data:
		default:
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Disconnect())

	select {
	case <-lost:
		t.Fatalf("clean disconnect must not dispatch connection_lost")
	case <-time.After(100 * time.Millisecond):
	}
	require.ErrorIs(t, c.Emit("ping", nil), ErrNotConnected)
}
