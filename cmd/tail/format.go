package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/router"
)

// format renders an event as a single console line, or as indented JSON
// when verbose is set.
func format(e router.Event, verbose bool) string {
	tag := "[" + strings.ToUpper(e.Action.Kind()) + "]"
	if verbose {
		data, err := json.MarshalIndent(e.Action, "", "  ")
		if err != nil {
			return fmt.Sprintf("%s room=%s marshal error: %v", tag, e.Action.Room(), err)
		}
		return fmt.Sprintf("%s %s", tag, data)
	}

	room := e.Action.Room()
	switch a := e.Action.(type) {
	case action.BanAction:
		if a.IsTimeout() {
			return fmt.Sprintf("[TIMEOUT] room=%s by=%s user=%s duration=%ds reason=%q",
				room, a.Source.Name, a.Target.Name, a.Duration, a.Reason)
		}
		return fmt.Sprintf("%s room=%s by=%s user=%s reason=%q", tag, room, a.Source.Name, a.Target.Name, a.Reason)
	case action.UnbanAction:
		return fmt.Sprintf("%s room=%s by=%s user=%s", tag, room, a.Source.Name, a.Target.Name)
	case action.ModeChangedAction:
		return fmt.Sprintf("%s room=%s by=%s mode=%s on=%t duration=%d", tag, room, a.Source.Name, a.Mode, a.On, a.Duration)
	case action.ModerationStateAction:
		return fmt.Sprintf("%s room=%s by=%s user=%s modded=%t", tag, room, a.Source.Name, a.Target.Name, a.Modded)
	case action.ClearChatAction:
		return fmt.Sprintf("%s room=%s by=%s", tag, room, a.Source.Name)
	case action.DeleteAction:
		return fmt.Sprintf("%s room=%s by=%s user=%s message=%q", tag, room, a.Source.Name, a.Target.Name, a.MessageText)
	case action.WarnAction:
		return fmt.Sprintf("%s room=%s by=%s user=%s reasons=%s", tag, room, a.Source.Name, a.Target.Name, strings.Join(a.Reasons, "; "))
	case action.RaidAction:
		return fmt.Sprintf("%s room=%s by=%s target=%s", tag, room, a.Source.Name, a.Target)
	case action.AutomodAction:
		return fmt.Sprintf("%s room=%s user=%s category=%s level=%d status=%s text=%q",
			tag, room, a.Target.Name, a.Category, a.Level, a.Status, a.Text)
	case action.WhisperAction:
		return fmt.Sprintf("%s from=%s body=%q", tag, a.From.Name, a.Body)
	case action.PointRedemptionAction:
		return fmt.Sprintf("%s room=%s user=%s reward=%q cost=%d input=%q",
			tag, room, a.User.Name, a.Reward.Title, a.Reward.Cost, a.UserInput)
	}
	return fmt.Sprintf("%s room=%s", tag, room)
}
