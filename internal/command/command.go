// Package command extracts playback commands from chat messages. The
// keyword table is static and validated once at startup; chat that does not
// start with the command prefix is simply not a command.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

// Kind is the canonical command type, independent of which alias was typed.
type Kind int

const (
	KindPlay Kind = iota
	KindTts
	KindStop
	KindSkip
	KindQueue
)

// String returns the canonical keyword for the kind.
func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindTts:
		return "tts"
	case KindStop:
		return "stop"
	case KindSkip:
		return "skip"
	case KindQueue:
		return "queue"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsAdminOnly reports whether the kind is a control command restricted to
// admins.
func (k Kind) IsAdminOnly() bool {
	switch k {
	case KindStop, KindSkip, KindQueue:
		return true
	default:
		return false
	}
}

// Command is a parsed, attributed chat command. Immutable once constructed.
type Command struct {
	Kind     Kind
	Argument string
	Username string
	IssuedAt time.Time
}

// Signature identifies a command for duplicate suppression: same kind and
// same argument count as the same command.
func (c Command) Signature() string {
	return c.Kind.String() + "\x00" + c.Argument
}

// DefaultPrefix is the sigil that introduces a command in chat.
const DefaultPrefix = "!"

// defaultKeywords maps every accepted keyword (canonical name and aliases)
// to its kind. Keyword matching is case-sensitive.
var defaultKeywords = map[string]Kind{
	"play":  KindPlay,
	"p":     KindPlay,
	"tts":   KindTts,
	"stop":  KindStop,
	"s":     KindStop,
	"skip":  KindSkip,
	"next":  KindSkip,
	"queue": KindQueue,
	"q":     KindQueue,
	"list":  KindQueue,
}

// Registry resolves chat messages to commands.
type Registry struct {
	prefix   string
	keywords map[string]Kind
}

// NewRegistry builds the command registry with the default keyword table.
// The prefix must be a single non-space character.
func NewRegistry(prefix string) (*Registry, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(prefix) != 1 || prefix == " " {
		return nil, fmt.Errorf("command prefix must be a single character, got %q", prefix)
	}

	keywords := make(map[string]Kind, len(defaultKeywords))
	for kw, kind := range defaultKeywords {
		if kw == "" || strings.ContainsAny(kw, " \t") {
			return nil, fmt.Errorf("invalid keyword %q", kw)
		}
		keywords[kw] = kind
	}
	return &Registry{prefix: prefix, keywords: keywords}, nil
}

// Parse extracts a command from a chat event. Returns ok=false when the
// message is not a command; that is the normal case, not an error.
//
// The argument is everything after the keyword and one separating space,
// trimmed of leading and trailing whitespace but otherwise verbatim.
func (r *Registry) Parse(ev event.Event) (Command, bool) {
	if ev.Type != event.Chat {
		return Command{}, false
	}
	msg := ev.Message
	if !strings.HasPrefix(msg, r.prefix) || len(msg) <= len(r.prefix) {
		return Command{}, false
	}

	body := msg[len(r.prefix):]
	keyword, rest, _ := strings.Cut(body, " ")
	kind, ok := r.keywords[keyword]
	if !ok {
		return Command{}, false
	}

	return Command{
		Kind:     kind,
		Argument: strings.TrimSpace(rest),
		Username: ev.Username,
		IssuedAt: ev.Timestamp,
	}, true
}
