// Package action decodes the nested payloads carried by MESSAGE frames into
// typed action records.
//
// Every record implements Action and embeds Base, which carries the room
// (channel) id the event belongs to and the local receipt time. Moderation
// actions are produced through lookup tables keyed by the action name, so
// adding a new server action is a one-line table entry. Names missing from
// the tables decode to UnknownAction instead of failing.
package action
