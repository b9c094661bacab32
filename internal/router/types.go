package router

import (
	"time"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Category groups topics that share a payload format.
type Category string

const (
	CategoryModeration      Category = "moderation"
	CategoryWhisper         Category = "whisper"
	CategoryPointRedemption Category = "point_redemption"
	CategoryAutomodQueue    Category = "automod_queue"
)

// Categories lists every category in routing order.
var Categories = []Category{
	CategoryModeration,
	CategoryWhisper,
	CategoryPointRedemption,
	CategoryAutomodQueue,
}

// Event is a decoded action together with where it came from.
type Event struct {
	Category Category
	Topic    protocol.Topic
	Action   action.Action
}

// Sink consumes events. Handle is called on the connection's read
// goroutine, so it must not block for long.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Handle implements Sink.
func (f SinkFunc) Handle(e Event) { f(e) }

// decoder turns one MESSAGE payload into an action.
type decoder func(topic protocol.Topic, payload string, receivedAt time.Time) (action.Action, error)

// route binds a topic namespace to its category and decoder.
type route struct {
	prefix   string
	category Category
	decode   decoder
}

var routes = []route{
	{protocol.PrefixModeratorActions, CategoryModeration, action.DecodeModeration},
	{protocol.PrefixWhispers, CategoryWhisper, action.DecodeWhisper},
	{protocol.PrefixChannelPoints, CategoryPointRedemption, action.DecodePointRedemption},
	{protocol.PrefixAutomodQueue, CategoryAutomodQueue, action.DecodeAutomodQueue},
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	ActionsRouted    int64
	DecodeErrors     int64
	Ignored          int64
	UnknownActions   int64
	UnknownTopics    int64
	Unhandled        int64 // decoded, but no sink registered
}
