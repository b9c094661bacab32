package protocol

import (
	"strings"
)

// Frame types.
const (
	TypeListen    = "LISTEN"
	TypeUnlisten  = "UNLISTEN"
	TypePing      = "PING"
	TypePong      = "PONG"
	TypeResponse  = "RESPONSE"
	TypeMessage   = "MESSAGE"
	TypeReconnect = "RECONNECT"
)

// Topic namespaces consumed by this client.
const (
	PrefixWhispers         = "whispers."
	PrefixModeratorActions = "chat_moderator_actions."
	PrefixChannelPoints    = "community-points-channel-v1."
	PrefixAutomodQueue     = "automod-queue."
)

// Topic identifies a subscription channel, e.g. "whispers.12345".
type Topic string

// HasPrefix reports whether the topic belongs to the given namespace.
func (t Topic) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(t), prefix)
}

// Segments splits the topic on dots.
func (t Topic) Segments() []string {
	return strings.Split(string(t), ".")
}

// WhispersTopic builds the whisper topic for a user.
func WhispersTopic(userID string) Topic {
	return Topic(PrefixWhispers + userID)
}

// ModeratorActionsTopic builds the moderation topic for a channel as seen by authUserID.
func ModeratorActionsTopic(authUserID, channelID string) Topic {
	return Topic(PrefixModeratorActions + authUserID + "." + channelID)
}

// ChannelPointsTopic builds the channel-point redemption topic for a channel.
func ChannelPointsTopic(channelID string) Topic {
	return Topic(PrefixChannelPoints + channelID)
}

// AutomodQueueTopic builds the automod queue topic for a channel as seen by authUserID.
func AutomodQueueTopic(authUserID, channelID string) Topic {
	return Topic(PrefixAutomodQueue + authUserID + "." + channelID)
}

// Request is a frame sent to the server.
type Request struct {
	Type  string       `json:"type"`
	Nonce string       `json:"nonce,omitempty"`
	Data  *RequestData `json:"data,omitempty"`
}

// RequestData holds the topics of a LISTEN or UNLISTEN request.
type RequestData struct {
	Topics    []Topic `json:"topics"`
	AuthToken string  `json:"auth_token,omitempty"`
}

// Frame is a decoded incoming frame: *Response, *Message, *Pong or *Reconnect.
type Frame interface {
	FrameType() string
}

// Response acknowledges a LISTEN or UNLISTEN. An empty Error means success.
type Response struct {
	Nonce string
	Error string
}

// Message carries an event published on a topic. Payload is itself a JSON
// document encoded as a string.
type Message struct {
	Topic   Topic
	Payload string
}

// Pong answers a PING.
type Pong struct{}

// Reconnect asks the client to reconnect the connection it arrived on.
type Reconnect struct{}

func (*Response) FrameType() string  { return TypeResponse }
func (*Message) FrameType() string   { return TypeMessage }
func (*Pong) FrameType() string      { return TypePong }
func (*Reconnect) FrameType() string { return TypeReconnect }

// Failed reports whether the server rejected the request.
func (r *Response) Failed() bool {
	return r.Error != ""
}
