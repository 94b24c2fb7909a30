package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/logging"
	"notes-sync-client/internal/websocket"
	"notes-sync-client/pkg/jwt"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWSManager(t *testing.T) *websocket.Manager {
	t.Helper()
	m := websocket.NewManager(websocket.Options{
		MaxClients: 4,
		WriteWait:  time.Second,
		PongWait:   time.Minute,
		PingPeriod: time.Minute,
	}, logging.Discard())
	go m.Run(t.Context())
	return m
}

func nextMessage(t *testing.T, c *websocket.Client) *websocket.Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg websocket.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestWebSocketMessageHandler(t *testing.T) {
	m := startWSManager(t)
	syncer := &fakeSyncer{}
	h := NewWebSocketMessageHandler(t.Context(), syncer, m, logging.Discard())

	client := websocket.NewClient("c1", "desktop-ui", nil, m)
	m.Register <- client
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	t.Run("sync request", func(t *testing.T) {
		msg, err := websocket.NewMessage(websocket.TypeSyncRequest, &websocket.SyncRequestPayload{Kind: domain.SyncKindFull})
		require.NoError(t, err)

		require.NoError(t, h.HandleWebSocketMessage(client, msg))

		reply := nextMessage(t, client)
		assert.Equal(t, websocket.TypeAck, reply.Type)
		var ack websocket.AckPayload
		require.NoError(t, reply.UnmarshalPayload(&ack))
		assert.True(t, ack.Success)
		assert.Equal(t, websocket.TypeSyncRequest, ack.Type)
		require.Eventually(t, func() bool { return len(syncer.kinds()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, domain.SyncKindFull, syncer.kinds()[0])
	})

	t.Run("unknown kind", func(t *testing.T) {
		msg, err := websocket.NewMessage(websocket.TypeSyncRequest, &websocket.SyncRequestPayload{Kind: "everything"})
		require.NoError(t, err)

		require.NoError(t, h.HandleWebSocketMessage(client, msg))

		var ack websocket.AckPayload
		require.NoError(t, nextMessage(t, client).UnmarshalPayload(&ack))
		assert.False(t, ack.Success)
		assert.Equal(t, errUnknownSyncKind.Error(), ack.Error)
	})

	t.Run("ping", func(t *testing.T) {
		msg, err := websocket.NewMessage(websocket.TypePing, nil)
		require.NoError(t, err)

		require.NoError(t, h.HandleWebSocketMessage(client, msg))

		assert.Equal(t, websocket.TypePong, nextMessage(t, client).Type)
	})
}

func TestWebSocketHandler_RejectsBadTokens(t *testing.T) {
	m := startWSManager(t)
	h := NewWebSocketHandler(m, "ws-secret", 1024, 1024, logging.Discard())
	otherKey, err := jwt.GenerateToken("desktop-ui", time.Hour, "other-secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing", target: "/ws"},
		{name: "wrong key", target: "/ws?token=" + otherKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleConnection(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.Zero(t, m.ClientCount())
}

func TestWebSocketHandler_DeliversBroadcasts(t *testing.T) {
	m := startWSManager(t)
	h := NewWebSocketHandler(m, "ws-secret", 1024, 1024, logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(srv.Close)

	token, err := jwt.GenerateToken("desktop-ui", time.Hour, "ws-secret")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	m.OnNoteDeleted("n-42")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.TypeNoteDelete, msg.Type)
	var payload websocket.NoteDeletePayload
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, "n-42", payload.NoteID)
}
