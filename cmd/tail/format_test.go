package main

import (
	"strings"
	"testing"
	"time"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/router"
)

func TestFormat(t *testing.T) {
	base := action.Base{RoomID: "117166826", ReceivedAt: time.Unix(0, 0)}
	mod := action.User{ID: "5", Name: "mod"}
	user := action.User{ID: "9", Name: "baduser"}

	tests := []struct {
		name   string
		action action.Action
		want   string
	}{
		{
			name:   "ban",
			action: action.BanAction{Base: base, Source: mod, Target: user, Reason: "spamming"},
			want:   `[BAN] room=117166826 by=mod user=baduser reason="spamming"`,
		},
		{
			name:   "timeout",
			action: action.BanAction{Base: base, Source: mod, Target: user, Duration: 600},
			want:   `[TIMEOUT] room=117166826 by=mod user=baduser duration=600s reason=""`,
		},
		{
			name:   "slow mode",
			action: action.ModeChangedAction{Base: base, Source: mod, Mode: action.ModeSlow, On: true, Duration: 30},
			want:   `[MODE] room=117166826 by=mod mode=slow on=true duration=30`,
		},
		{
			name:   "whisper",
			action: action.WhisperAction{Base: base, From: user, Body: "hi"},
			want:   `[WHISPER] from=baduser body="hi"`,
		},
		{
			name:   "redemption",
			action: action.PointRedemptionAction{Base: base, User: user, Reward: action.Reward{Title: "Hydrate", Cost: 100}},
			want:   `[POINT_REDEMPTION] room=117166826 user=baduser reward="Hydrate" cost=100 input=""`,
		},
		{
			name:   "fallback",
			action: action.UnraidAction{Base: base, Source: mod},
			want:   `[UNRAID] room=117166826`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := format(router.Event{Action: tt.action}, false)
			if got != tt.want {
				t.Errorf("format() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestFormat_Verbose(t *testing.T) {
	e := router.Event{Action: action.ClearChatAction{
		Base:   action.Base{RoomID: "1"},
		Source: action.User{Name: "mod"},
	}}

	got := format(e, true)
	if !strings.HasPrefix(got, "[CLEAR] {") || !strings.Contains(got, `"Name": "mod"`) {
		t.Errorf("verbose format = %s", got)
	}
}
