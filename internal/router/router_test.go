package router

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

var receivedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) Handle(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func banMessage() *protocol.Message {
	return &protocol.Message{
		Topic: protocol.ModeratorActionsTopic("11148817", "117166826"),
		Payload: `{"type":"moderation_action","data":{"moderation_action":"ban",` +
			`"args":["baduser","spamming"],"created_by":"mod","created_by_user_id":"5"}}`,
	}
}

func TestRouter_DispatchBan(t *testing.T) {
	m := metrics.New(nil)
	r := NewRouter(m, nil)

	mods := &collector{}
	whispers := &collector{}
	r.Register(CategoryModeration, mods)
	r.Register(CategoryWhisper, whispers)

	r.Dispatch(banMessage(), receivedAt)

	events := mods.all()
	require.Len(t, events, 1)
	assert.Empty(t, whispers.all())

	e := events[0]
	assert.Equal(t, CategoryModeration, e.Category)
	ban, ok := e.Action.(action.BanAction)
	require.True(t, ok, "got %T", e.Action)
	assert.Equal(t, "baduser", ban.Target.Name)
	assert.Equal(t, "spamming", ban.Reason)
	assert.Equal(t, uint32(0), ban.Duration)
	assert.Equal(t, "117166826", ban.Room())
	assert.Equal(t, receivedAt, ban.Received())

	assert.Equal(t, RouterStats{MessagesReceived: 1, ActionsRouted: 1}, r.Stats())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsDispatched.WithLabelValues("moderation", "ban")))
}

func TestRouter_FanOutInOrder(t *testing.T) {
	r := NewRouter(nil, nil)

	var order []string
	r.Register(CategoryModeration, SinkFunc(func(Event) { order = append(order, "first") }))
	r.Register(CategoryModeration, SinkFunc(func(Event) { order = append(order, "second") }))

	r.Dispatch(banMessage(), receivedAt)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRouter_Categories(t *testing.T) {
	tests := []struct {
		name     string
		msg      *protocol.Message
		category Category
		kind     string
	}{
		{
			name: "whisper",
			msg: &protocol.Message{
				Topic:   protocol.WhispersTopic("1"),
				Payload: `{"type":"whisper_received","data_object":{"body":"hi","from_id":2,"tags":{"login":"x"}}}`,
			},
			category: CategoryWhisper,
			kind:     "whisper",
		},
		{
			name: "points",
			msg: &protocol.Message{
				Topic:   protocol.ChannelPointsTopic("1"),
				Payload: `{"type":"reward-redeemed","data":{"redemption":{"id":"r","reward":{"title":"t"}}}}`,
			},
			category: CategoryPointRedemption,
			kind:     "point_redemption",
		},
		{
			name: "automod queue",
			msg: &protocol.Message{
				Topic:   protocol.AutomodQueueTopic("1", "2"),
				Payload: `{"type":"automod_caught_message","data":{"status":"PENDING"}}`,
			},
			category: CategoryAutomodQueue,
			kind:     "automod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(nil, nil)
			c := &collector{}
			r.Register(tt.category, c)

			r.Dispatch(tt.msg, receivedAt)

			events := c.all()
			require.Len(t, events, 1)
			assert.Equal(t, tt.category, events[0].Category)
			assert.Equal(t, tt.kind, events[0].Action.Kind())
			assert.Equal(t, tt.msg.Topic, events[0].Topic)
		})
	}
}

func TestRouter_Drops(t *testing.T) {
	tests := []struct {
		name  string
		msg   *protocol.Message
		stats RouterStats
	}{
		{
			name:  "unknown topic",
			msg:   &protocol.Message{Topic: "video-playback.1", Payload: `{}`},
			stats: RouterStats{MessagesReceived: 1, UnknownTopics: 1},
		},
		{
			name:  "bad payload",
			msg:   &protocol.Message{Topic: protocol.ModeratorActionsTopic("1", "2"), Payload: `not json`},
			stats: RouterStats{MessagesReceived: 1, DecodeErrors: 1},
		},
		{
			name: "ignored",
			msg: &protocol.Message{
				Topic:   protocol.ModeratorActionsTopic("1", "2"),
				Payload: `{"type":"moderation_action","data":{"moderation_action":"approved_automod_message"}}`,
			},
			stats: RouterStats{MessagesReceived: 1, Ignored: 1},
		},
		{
			name: "unknown action",
			msg: &protocol.Message{
				Topic:   protocol.ModeratorActionsTopic("1", "2"),
				Payload: `{"type":"moderation_action","data":{"moderation_action":"vip_added"}}`,
			},
			stats: RouterStats{MessagesReceived: 1, UnknownActions: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(nil, nil)
			c := &collector{}
			for _, category := range Categories {
				r.Register(category, c)
			}

			assert.NotPanics(t, func() { r.Dispatch(tt.msg, receivedAt) })
			assert.Empty(t, c.all())
			assert.Equal(t, tt.stats, r.Stats())
		})
	}
}

func TestRouter_NoSink(t *testing.T) {
	m := metrics.New(nil)
	r := NewRouter(m, nil)

	r.Dispatch(banMessage(), receivedAt)

	assert.Equal(t, int64(1), r.Stats().Unhandled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsDropped.WithLabelValues("moderation", "no_sink")))
}

func TestRouter_SinkMayRegister(t *testing.T) {
	r := NewRouter(nil, nil)
	late := &collector{}

	r.Register(CategoryModeration, SinkFunc(func(Event) {
		r.Register(CategoryWhisper, late)
	}))

	assert.NotPanics(t, func() { r.Dispatch(banMessage(), receivedAt) })
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		topic protocol.Topic
		want  Category
		ok    bool
	}{
		{protocol.WhispersTopic("1"), CategoryWhisper, true},
		{protocol.ModeratorActionsTopic("1", "2"), CategoryModeration, true},
		{protocol.ChannelPointsTopic("2"), CategoryPointRedemption, true},
		{protocol.AutomodQueueTopic("1", "2"), CategoryAutomodQueue, true},
		{"low-trust-users.1.2", "", false},
	}

	for _, tt := range tests {
		got, ok := CategoryOf(tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.want, got, tt.topic)
	}
}
