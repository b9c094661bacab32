package action

import (
	"fmt"
	"time"

	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// DecodeWhisper decodes a payload published on a whispers.<userId> topic.
// The room of the resulting action is the owning user's id.
func DecodeWhisper(topic protocol.Topic, payload string, receivedAt time.Time) (Action, error) {
	parts := topic.Segments()
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	root, err := parseObject([]byte(payload))
	if err != nil {
		return nil, err
	}

	var kind WhisperKind
	switch typ := root.str("type"); typ {
	case "whisper_received":
		kind = WhisperReceived
	case "whisper_sent":
		kind = WhisperSent
	case "thread":
		return nil, ErrIgnored
	default:
		return nil, fmt.Errorf("%w: whisper %q", ErrUnknownType, typ)
	}

	data := root.obj("data_object")
	if data == nil {
		return nil, fmt.Errorf("%w: missing data_object", ErrMalformedPayload)
	}
	tags := data.obj("tags")

	return WhisperAction{
		Base:        Base{RoomID: parts[1], ReceivedAt: receivedAt},
		Type:        kind,
		MessageID:   data.str("message_id"),
		ID:          data.int("id"),
		ThreadID:    data.str("thread_id"),
		Body:        data.str("body"),
		From:        User{ID: data.id("from_id"), Name: tags.str("login")},
		DisplayName: tags.str("display_name"),
		Color:       tags.str("color"),
	}, nil
}

// DecodePointRedemption decodes a payload published on a
// community-points-channel-v1.<channelId> topic.
func DecodePointRedemption(topic protocol.Topic, payload string, receivedAt time.Time) (Action, error) {
	parts := topic.Segments()
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	root, err := parseObject([]byte(payload))
	if err != nil {
		return nil, err
	}

	var automatic bool
	switch typ := root.str("type"); typ {
	case "reward-redeemed":
	case "automatic-reward-redeemed":
		automatic = true
	default:
		return nil, fmt.Errorf("%w: points %q", ErrUnknownType, typ)
	}

	data := root.obj("data")
	redemption := data.obj("redemption")
	if redemption == nil {
		return nil, fmt.Errorf("%w: missing redemption", ErrMalformedPayload)
	}
	user := redemption.obj("user")
	reward := redemption.obj("reward")

	a := PointRedemptionAction{
		Base:        Base{RoomID: parts[1], ReceivedAt: receivedAt},
		ID:          redemption.str("id"),
		User:        User{ID: user.id("id"), Name: user.str("login")},
		DisplayName: user.str("display_name"),
		Reward: Reward{
			ID:     reward.str("id"),
			Title:  reward.str("title"),
			Prompt: reward.str("prompt"),
			Cost:   reward.int("cost"),
		},
		UserInput: redemption.str("user_input"),
		Status:    redemption.str("status"),
		Automatic: automatic,
		Raw:       data["redemption"],
	}
	if ts := redemption.str("redeemed_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			a.RedeemedAt = t
		}
	}
	return a, nil
}

// DecodeAutomodQueue decodes a payload published on an
// automod-queue.<authUserId>.<channelId> topic.
func DecodeAutomodQueue(topic protocol.Topic, payload string, receivedAt time.Time) (Action, error) {
	parts := topic.Segments()
	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	root, err := parseObject([]byte(payload))
	if err != nil {
		return nil, err
	}
	if typ := root.str("type"); typ != "automod_caught_message" {
		return nil, fmt.Errorf("%w: automod %q", ErrUnknownType, typ)
	}

	data := root.obj("data")
	if data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformedPayload)
	}
	classification := data.obj("content_classification")
	message := data.obj("message")
	sender := message.obj("sender")

	return AutomodAction{
		Base:        Base{RoomID: parts[2], ReceivedAt: receivedAt},
		Target:      User{ID: sender.id("user_id"), Name: sender.str("login")},
		DisplayName: sender.str("display_name"),
		Color:       sender.str("chat_color"),
		MessageID:   message.str("id"),
		Text:        message.obj("content").str("text"),
		Category:    classification.str("category"),
		Level:       classification.int("level"),
		Status:      data.str("status"),
	}, nil
}
