// Package event defines the structured events extracted from a game
// console log.
package event

import "time"

// Type identifies the kind of log event.
type Type string

// Event types produced by the built-in parser.
const (
	// Chat is a player chat message (the only type the command pipeline
	// consumes).
	Chat Type = "chat"
	// Kill is a player kill announcement.
	Kill Type = "kill"
	// Connect is a player joining the server.
	Connect Type = "connect"
	// Suicide is a player suicide announcement.
	Suicide Type = "suicide"
)

// ChatTag is the state marker prefixed to some chat lines (*DEAD*, *TEAM*,
// *SPEC* and their bracket variants). Empty for plain chat.
type ChatTag string

// Known chat tags, normalized to the bare word.
const (
	TagNone ChatTag = ""
	TagDead ChatTag = "DEAD"
	TagTeam ChatTag = "TEAM"
	TagSpec ChatTag = "SPEC"
)

// Event is a parsed log line. Fields are populated per type: Username and
// Message for Chat; Username for Connect and Suicide; Killer, Victim,
// Weapon and Crit for Kill.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Username string  `json:"username,omitempty"`
	Message  string  `json:"message,omitempty"`
	Tag      ChatTag `json:"tag,omitempty"`

	Killer string `json:"killer,omitempty"`
	Victim string `json:"victim,omitempty"`
	Weapon string `json:"weapon,omitempty"`
	Crit   bool   `json:"crit,omitempty"`

	// RawLine is the original log line, included only when requested.
	RawLine string `json:"raw_line,omitempty"`
}
