package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Errors
var (
	ErrBadTopic         = errors.New("malformed topic")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMissingArgs      = errors.New("missing required args")
	ErrUnknownType      = errors.New("unknown message type")
	// ErrIgnored marks payloads that are recognized but produce no action.
	ErrIgnored = errors.New("ignored message")
)

type producer func(d object, base Base) (Action, error)

var moderationActions = map[string]producer{
	"clear":                    produceClear,
	"slow":                     modeToggle(ModeSlow, true),
	"slowoff":                  modeToggle(ModeSlow, false),
	"r9kbeta":                  modeToggle(ModeR9K, true),
	"r9kbetaoff":               modeToggle(ModeR9K, false),
	"subscribers":              modeToggle(ModeSubscribersOnly, true),
	"subscribersoff":           modeToggle(ModeSubscribersOnly, false),
	"emoteonly":                modeToggle(ModeEmoteOnly, true),
	"emoteonlyoff":             modeToggle(ModeEmoteOnly, false),
	"followers":                modeToggle(ModeFollowersOnly, true),
	"followersoff":             modeToggle(ModeFollowersOnly, false),
	"mod":                      produceMod,
	"unmod":                    produceUnmod,
	"ban":                      produceBan,
	"timeout":                  produceTimeout,
	"unban":                    produceUnban(PreviouslyBanned),
	"untimeout":                produceUnban(PreviouslyTimedOut),
	"delete":                   produceDelete,
	"warn":                     produceWarn,
	"raid":                     produceRaid,
	"unraid":                   produceUnraid,
	"automod_message_rejected": produceAutomodInfo(AutomodOnHold),
	"automod_message_denied":   produceAutomodInfo(AutomodDenied),
	"automod_message_approved": produceAutomodInfo(AutomodApproved),
	"delete_permitted_term":    termFromArgs(AutomodRemovePermitted),
	"delete_blocked_term":      termFromArgs(AutomodRemoveBlocked),
	"approved_automod_message": ignore,
	"denied_automod_message":   ignore,
}

var channelTermsActions = map[string]producer{
	"add_permitted_term":    termFromText(AutomodAddPermitted),
	"add_blocked_term":      termFromText(AutomodAddBlocked),
	"delete_permitted_term": termFromText(AutomodRemovePermitted),
	"delete_blocked_term":   termFromText(AutomodRemoveBlocked),
}

// DecodeModeration decodes a payload published on a
// chat_moderator_actions.<authUserId>.<channelId> topic.
func DecodeModeration(topic protocol.Topic, payload string, receivedAt time.Time) (Action, error) {
	parts := topic.Segments()
	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	root, err := parseObject([]byte(payload))
	if err != nil {
		return nil, err
	}

	data := root.obj("data")
	if data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformedPayload)
	}

	base := Base{RoomID: parts[2], ReceivedAt: receivedAt}

	if root.str("type") == "channel_terms_action" {
		name := data.str("type")
		produce, ok := channelTermsActions[name]
		if !ok {
			return UnknownAction{Base: base, Name: name}, nil
		}
		return produce(data, base)
	}

	name := data.str("moderation_action")
	if name == "" {
		return nil, fmt.Errorf("%w: missing moderation_action", ErrMalformedPayload)
	}
	produce, ok := moderationActions[name]
	if !ok {
		return UnknownAction{Base: base, Name: name}, nil
	}
	return produce(data, base)
}

// KnownModerationAction reports whether name has a producer.
func KnownModerationAction(name string) bool {
	_, ok := moderationActions[name]
	return ok
}

func source(d object) User {
	return User{ID: d.id("created_by_user_id"), Name: d.str("created_by")}
}

func ignore(object, Base) (Action, error) {
	return nil, ErrIgnored
}

func produceClear(d object, base Base) (Action, error) {
	return ClearChatAction{Base: base, Source: source(d)}, nil
}

func modeToggle(mode Mode, on bool) producer {
	return func(d object, base Base) (Action, error) {
		a := ModeChangedAction{
			Base:   base,
			Source: source(d),
			Mode:   mode,
			On:     on,
		}
		if !on {
			return a, nil
		}

		args := d.args()
		switch mode {
		case ModeSlow:
			if len(args) == 0 {
				return nil, fmt.Errorf("%w: slow mode duration", ErrMissingArgs)
			}
			a.Duration, _ = parseUint32(args[0])
		case ModeFollowersOnly:
			if len(args) > 0 {
				a.Duration, _ = parseUint32(args[0])
			}
		}
		return a, nil
	}
}

func produceMod(d object, base Base) (Action, error) {
	// Old-style notifications duplicate the new ones.
	if d.str("type") == "chat_login_moderation" {
		return nil, ErrIgnored
	}

	a := ModerationStateAction{
		Base:   base,
		Source: source(d),
		Target: User{ID: d.id("target_user_id"), Name: d.str("target_user_login")},
		Modded: true,
	}
	if a.Target.Name == "" {
		args := d.args()
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: mod target", ErrMissingArgs)
		}
		a.Target.Name = args[0]
	}
	return a, nil
}

func produceUnmod(d object, base Base) (Action, error) {
	args := d.args()
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: unmod target", ErrMissingArgs)
	}
	return ModerationStateAction{
		Base:   base,
		Source: source(d),
		Target: User{ID: d.id("target_user_id"), Name: args[0]},
		Modded: false,
	}, nil
}

func produceBan(d object, base Base) (Action, error) {
	args := d.args()
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: ban target", ErrMissingArgs)
	}

	a := BanAction{
		Base:   base,
		Source: source(d),
		Target: User{ID: d.id("target_user_id"), Name: args[0]},
	}
	if len(args) > 1 {
		a.Reason = args[1]
	}
	return a, nil
}

func produceTimeout(d object, base Base) (Action, error) {
	args := d.args()
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: timeout target and duration", ErrMissingArgs)
	}

	duration, ok := parseUint32(args[1])
	if !ok || duration == 0 {
		return nil, fmt.Errorf("%w: timeout duration %q", ErrMalformedPayload, args[1])
	}

	a := BanAction{
		Base:     base,
		Source:   source(d),
		Target:   User{ID: d.id("target_user_id"), Name: args[0]},
		Duration: duration,
	}
	if len(args) > 2 {
		a.Reason = args[2]
	}
	return a, nil
}

func produceUnban(previous UnbanPrevious) producer {
	return func(d object, base Base) (Action, error) {
		args := d.args()
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: unban target", ErrMissingArgs)
		}
		return UnbanAction{
			Base:          base,
			Source:        source(d),
			Target:        User{ID: d.id("target_user_id"), Name: args[0]},
			PreviousState: previous,
		}, nil
	}
}

func produceDelete(d object, base Base) (Action, error) {
	args := d.args()
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: delete target, text and message id", ErrMissingArgs)
	}
	return DeleteAction{
		Base:        base,
		Source:      source(d),
		Target:      User{ID: d.id("target_user_id"), Name: args[0]},
		MessageText: args[1],
		MessageID:   args[2],
	}, nil
}

func produceWarn(d object, base Base) (Action, error) {
	a := WarnAction{
		Base:   base,
		Source: source(d),
		Target: User{ID: d.id("target_user_id"), Name: d.str("target_user_login")},
	}

	// The first arg is the target login, the rest are reasons.
	args := d.args()
	for i, reason := range args {
		if i == 0 || reason == "" {
			continue
		}
		a.Reasons = append(a.Reasons, reason)
	}
	return a, nil
}

func produceRaid(d object, base Base) (Action, error) {
	args := d.args()
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: raid target", ErrMissingArgs)
	}
	return RaidAction{Base: base, Source: source(d), Target: args[0]}, nil
}

func produceUnraid(d object, base Base) (Action, error) {
	return UnraidAction{Base: base, Source: source(d)}, nil
}

func produceAutomodInfo(typ AutomodInfoType) producer {
	return func(d object, base Base) (Action, error) {
		return AutomodInfoAction{Base: base, Source: source(d), Type: typ}, nil
	}
}

func termFromArgs(typ AutomodUserType) producer {
	return func(d object, base Base) (Action, error) {
		args := d.args()
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: term", ErrMissingArgs)
		}
		return AutomodUserAction{
			Base:    base,
			Source:  source(d),
			Type:    typ,
			Message: args[0],
		}, nil
	}
}

func termFromText(typ AutomodUserType) producer {
	return func(d object, base Base) (Action, error) {
		return AutomodUserAction{
			Base:    base,
			Source:  User{ID: d.id("requester_id"), Name: d.str("requester_login")},
			Type:    typ,
			Message: d.str("text"),
		}, nil
	}
}
