package connection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// pubsubServer answers LISTEN and PING like the real endpoint and
// publishes a MESSAGE on every topic it confirms.
func pubsubServer(t *testing.T, rejectToken string) (url string, listens func() []protocol.Request) {
	t.Helper()

	var mu sync.Mutex
	var seen []protocol.Request

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := protocol.DecodeRequest(raw)
			if err != nil {
				t.Logf("bad request: %v", err)
				continue
			}

			switch req.Type {
			case protocol.TypePing:
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PONG"}`))

			case protocol.TypeListen:
				mu.Lock()
				seen = append(seen, req)
				mu.Unlock()

				resp := map[string]string{"type": "RESPONSE", "nonce": req.Nonce, "error": ""}
				if req.Data.AuthToken == rejectToken {
					resp["error"] = "ERR_BADAUTH"
				}
				data, _ := json.Marshal(resp)
				conn.WriteMessage(websocket.TextMessage, data)

				if resp["error"] != "" {
					continue
				}
				for _, topic := range req.Data.Topics {
					msg, _ := json.Marshal(map[string]any{
						"type": "MESSAGE",
						"data": map[string]string{"topic": string(topic), "message": `{"hello":"world"}`},
					})
					conn.WriteMessage(websocket.TextMessage, msg)
				}
			}
		}
	})
	t.Cleanup(server.Close)

	return wsURL(server), func() []protocol.Request {
		mu.Lock()
		defer mu.Unlock()
		return append([]protocol.Request(nil), seen...)
	}
}

func TestManager_AgainstServer(t *testing.T) {
	url, listens := pubsubServer(t, "bad")

	cfg := DefaultManagerConfig()
	cfg.Client.URL = url
	dispatcher := &recordingDispatcher{}

	m := NewManager(cfg, nil, dispatcher)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	m.ListenToTopic("community-points-channel-v1.22", "")
	m.ListenToTopic("whispers.1", "bad")

	require.Eventually(t, func() bool {
		s := m.Stats()
		return s.ListenResponses == 2 && len(dispatcher.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msgs := dispatcher.messages()
	assert.Equal(t, protocol.Topic("community-points-channel-v1.22"), msgs[0].Topic)
	assert.Equal(t, `{"hello":"world"}`, msgs[0].Payload)

	s := m.Stats()
	assert.Equal(t, 1, s.LiveConnections)
	assert.Equal(t, int64(1), s.FailedListenResponses)
	assert.True(t, m.IsListeningToTopic("whispers.1"), "rejected topics stay owned")
	assert.Len(t, listens(), 2)

	mgr := m.(*manager)
	mgr.mu.Lock()
	conn := mgr.conns[0]
	mgr.mu.Unlock()
	assert.True(t, conn.IsConfirmed("community-points-channel-v1.22"))
	assert.False(t, conn.IsConfirmed("whispers.1"))

	require.Eventually(t, func() bool { return !conn.AwaitingPong() }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_ServerGoesAway(t *testing.T) {
	var mu sync.Mutex
	accepted := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		accepted++
		first := accepted == 1
		mu.Unlock()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := protocol.DecodeRequest(raw)
			if err != nil || req.Type != protocol.TypeListen {
				continue
			}
			if first {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"RECONNECT"}`))
				continue
			}
			data, _ := json.Marshal(map[string]string{"type": "RESPONSE", "nonce": req.Nonce, "error": ""})
			conn.WriteMessage(websocket.TextMessage, data)
		}
	})
	defer server.Close()

	cfg := DefaultManagerConfig()
	cfg.Client.URL = wsURL(server)
	cfg.ReconnectBase = 10 * time.Millisecond

	m := NewManager(cfg, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	m.ListenToTopic("whispers.1", "tok")

	require.Eventually(t, func() bool {
		s := m.Stats()
		return s.ConnectionsClosed == 1 && s.ListenResponses == 1 && s.LiveConnections == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, m.IsListeningToTopic("whispers.1"))
}
