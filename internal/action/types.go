package action

import (
	"encoding/json"
	"time"
)

// Action is a decoded event. The set of implementations is closed.
type Action interface {
	// Kind is the short machine name of the action, e.g. "ban" or "whisper".
	Kind() string
	// Room is the channel id the action belongs to.
	Room() string
	// Received is the local time the frame was read from the socket.
	Received() time.Time

	sealed()
}

// Base holds the fields shared by every action.
type Base struct {
	RoomID     string
	ReceivedAt time.Time
}

func (b Base) Room() string        { return b.RoomID }
func (b Base) Received() time.Time { return b.ReceivedAt }
func (Base) sealed()               {}

// User is a user referenced as the source or target of an action.
type User struct {
	ID   string
	Name string // login name
}

// BanAction is a ban (Duration == 0) or a timeout (Duration in seconds).
type BanAction struct {
	Base
	Source   User
	Target   User
	Reason   string
	Duration uint32
}

func (BanAction) Kind() string { return "ban" }

// IsTimeout reports whether the ban is temporary.
func (a BanAction) IsTimeout() bool {
	return a.Duration != 0
}

// UnbanPrevious describes what an unban lifted.
type UnbanPrevious int

const (
	PreviouslyBanned UnbanPrevious = iota
	PreviouslyTimedOut
)

// UnbanAction lifts a ban or a timeout.
type UnbanAction struct {
	Base
	Source        User
	Target        User
	PreviousState UnbanPrevious
}

func (UnbanAction) Kind() string { return "unban" }

// Mode is a chat room mode.
type Mode int

const (
	ModeSlow Mode = iota
	ModeR9K
	ModeSubscribersOnly
	ModeEmoteOnly
	ModeFollowersOnly
)

var modeNames = map[Mode]string{
	ModeSlow:            "slow",
	ModeR9K:             "r9k",
	ModeSubscribersOnly: "subscribers",
	ModeEmoteOnly:       "emoteonly",
	ModeFollowersOnly:   "followers",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ModeChangedAction toggles a room mode.
type ModeChangedAction struct {
	Base
	Source User
	Mode   Mode
	On     bool
	// Duration is the slow mode delay in seconds or the followers-only
	// minimum follow age in minutes. Zero for other modes.
	Duration uint32
}

func (ModeChangedAction) Kind() string { return "mode" }

// ModerationStateAction grants or revokes moderator status.
type ModerationStateAction struct {
	Base
	Source User
	Target User
	Modded bool
}

func (ModerationStateAction) Kind() string { return "moderation_state" }

// ClearChatAction clears the room.
type ClearChatAction struct {
	Base
	Source User
}

func (ClearChatAction) Kind() string { return "clear" }

// DeleteAction removes a single message.
type DeleteAction struct {
	Base
	Source      User
	Target      User
	MessageText string
	MessageID   string
}

func (DeleteAction) Kind() string { return "delete" }

// WarnAction warns a user.
type WarnAction struct {
	Base
	Source  User
	Target  User
	Reasons []string
}

func (WarnAction) Kind() string { return "warn" }

// RaidAction starts a raid to another channel.
type RaidAction struct {
	Base
	Source User
	Target string // login of the raided channel
}

func (RaidAction) Kind() string { return "raid" }

// UnraidAction cancels a pending raid.
type UnraidAction struct {
	Base
	Source User
}

func (UnraidAction) Kind() string { return "unraid" }

// AutomodInfoType is the state of a message held by automod.
type AutomodInfoType int

const (
	AutomodOnHold AutomodInfoType = iota
	AutomodDenied
	AutomodApproved
)

// AutomodInfoAction reports what happened to the author's own held message.
type AutomodInfoAction struct {
	Base
	Source User
	Type   AutomodInfoType
}

func (AutomodInfoAction) Kind() string { return "automod_info" }

// AutomodUserType is a change to the channel's automod term lists.
type AutomodUserType int

const (
	AutomodAddPermitted AutomodUserType = iota
	AutomodAddBlocked
	AutomodRemovePermitted
	AutomodRemoveBlocked
)

// AutomodUserAction adds or removes a permitted or blocked term.
type AutomodUserAction struct {
	Base
	Source  User
	Type    AutomodUserType
	Message string // the term
}

func (AutomodUserAction) Kind() string { return "automod_user" }

// AutomodAction is a message caught by automod and waiting for review.
type AutomodAction struct {
	Base
	Target      User // message sender
	DisplayName string
	Color       string
	MessageID   string
	Text        string
	Category    string
	Level       int
	Status      string
}

func (AutomodAction) Kind() string { return "automod" }

// WhisperKind distinguishes received and sent whispers.
type WhisperKind int

const (
	WhisperReceived WhisperKind = iota
	WhisperSent
)

// WhisperAction is a private message. RoomID is the owning user's id.
type WhisperAction struct {
	Base
	Type        WhisperKind
	MessageID   string
	ID          int
	ThreadID    string
	Body        string
	From        User
	DisplayName string
	Color       string
}

func (WhisperAction) Kind() string { return "whisper" }

// Reward is a channel-point reward definition.
type Reward struct {
	ID     string
	Title  string
	Prompt string
	Cost   int
}

// PointRedemptionAction is a channel-point reward redemption.
type PointRedemptionAction struct {
	Base
	ID          string
	User        User
	DisplayName string
	Reward      Reward
	UserInput   string
	Status      string
	RedeemedAt  time.Time
	Automatic   bool
	// Raw is the undecoded redemption object, kept for consumers that need
	// fields not mapped above.
	Raw json.RawMessage
}

func (PointRedemptionAction) Kind() string { return "point_redemption" }

// UnknownAction is an action name this client has no producer for.
type UnknownAction struct {
	Base
	Name string
}

func (UnknownAction) Kind() string { return "unknown" }
