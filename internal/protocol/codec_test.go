package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewListen_RoundTrip(t *testing.T) {
	topics := []Topic{"whispers.1", "chat_moderator_actions.1.2"}
	req := NewListen(topics, "token123")

	data, err := req.Encode()
	require.NoError(t, err)

	decoded, err := DecodeRequest(data)
	require.NoError(t, err)

	assert.Equal(t, TypeListen, decoded.Type)
	assert.Equal(t, req.Nonce, decoded.Nonce)
	assert.NotEmpty(t, decoded.Nonce)
	require.NotNil(t, decoded.Data)
	assert.Equal(t, topics, decoded.Data.Topics)
	assert.Equal(t, "token123", decoded.Data.AuthToken)
}

func TestNewListen_WireShape(t *testing.T) {
	req := NewListen([]Topic{"community-points-channel-v1.5"}, "")

	data, err := req.Encode()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "LISTEN", wire["type"])
	assert.Equal(t, req.Nonce, wire["nonce"])
	inner, ok := wire["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"community-points-channel-v1.5"}, inner["topics"])
	_, hasToken := inner["auth_token"]
	assert.False(t, hasToken, "empty auth token should be omitted")
}

func TestNewUnlisten(t *testing.T) {
	req := NewUnlisten([]Topic{"a", "b"})

	assert.Equal(t, TypeUnlisten, req.Type)
	assert.NotEmpty(t, req.Nonce)
	assert.Equal(t, []Topic{"a", "b"}, req.Data.Topics)
	assert.Empty(t, req.Data.AuthToken)
}

func TestNonceUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n := NewListen([]Topic{"t"}, "").Nonce
		_, dup := seen[n]
		require.False(t, dup, "duplicate nonce %s", n)
		seen[n] = struct{}{}
	}
}

func TestNewPing(t *testing.T) {
	data, err := NewPing().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PING"}`, string(data))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Frame
	}{
		{
			name: "pong",
			raw:  `{"type":"PONG"}`,
			want: &Pong{},
		},
		{
			name: "reconnect",
			raw:  `{"type":"RECONNECT"}`,
			want: &Reconnect{},
		},
		{
			name: "successful response",
			raw:  `{"type":"RESPONSE","nonce":"abc","error":""}`,
			want: &Response{Nonce: "abc"},
		},
		{
			name: "failed response",
			raw:  `{"type":"RESPONSE","nonce":"abc","error":"ERR_BADAUTH"}`,
			want: &Response{Nonce: "abc", Error: "ERR_BADAUTH"},
		},
		{
			name: "response without nonce",
			raw:  `{"type":"RESPONSE","error":"ERR_SERVER"}`,
			want: &Response{Error: "ERR_SERVER"},
		},
		{
			name: "message",
			raw:  `{"type":"MESSAGE","data":{"topic":"whispers.1","message":"{\"type\":\"whisper_received\"}"}}`,
			want: &Message{Topic: "whispers.1", Payload: `{"type":"whisper_received"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", ``, ErrEmptyFrame},
		{"whitespace", "  \n", ErrEmptyFrame},
		{"not json", `{"type":`, ErrInvalidJSON},
		{"array root", `["PONG"]`, ErrNotObject},
		{"string root", `"PONG"`, ErrNotObject},
		{"null root", `null`, ErrNotObject},
		{"missing type", `{"nonce":"x"}`, ErrMissingField},
		{"type not string", `{"type":5}`, ErrWrongType},
		{"unknown type", `{"type":"HELLO"}`, ErrUnknownType},
		{"nonce not string", `{"type":"RESPONSE","nonce":1}`, ErrWrongType},
		{"error not string", `{"type":"RESPONSE","error":{}}`, ErrWrongType},
		{"message without data", `{"type":"MESSAGE"}`, ErrMissingField},
		{"message data not object", `{"type":"MESSAGE","data":[]}`, ErrNotObject},
		{"message without topic", `{"type":"MESSAGE","data":{"message":"{}"}}`, ErrMissingField},
		{"message empty topic", `{"type":"MESSAGE","data":{"topic":"","message":"{}"}}`, ErrMissingField},
		{"message payload not string", `{"type":"MESSAGE","data":{"topic":"t","message":{}}}`, ErrWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, frame)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.raw, string(decErr.Raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeRequest_Rejects(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type":"PONG"}`))
	assert.ErrorIs(t, err, ErrNotARequest)

	_, err = DecodeRequest([]byte(`{"type":"LISTEN","data":{"topics":"x"}}`))
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = DecodeRequest(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestTopicBuilders(t *testing.T) {
	assert.Equal(t, Topic("whispers.11"), WhispersTopic("11"))
	assert.Equal(t, Topic("chat_moderator_actions.11.22"), ModeratorActionsTopic("11", "22"))
	assert.Equal(t, Topic("community-points-channel-v1.22"), ChannelPointsTopic("22"))
	assert.Equal(t, Topic("automod-queue.11.22"), AutomodQueueTopic("11", "22"))

	topic := ModeratorActionsTopic("11", "22")
	assert.True(t, topic.HasPrefix(PrefixModeratorActions))
	assert.False(t, topic.HasPrefix(PrefixWhispers))
	assert.Equal(t, []string{"chat_moderator_actions", "11", "22"}, topic.Segments())
}
