// Package authgate decides whether a parsed command is admitted for
// execution. It combines admin authorization for control commands, a
// per-user cooldown for request commands, and short-window duplicate
// suppression.
package authgate

import (
	"fmt"
	"strings"
	"time"

	"github.com/requestify/requestify-go/internal/command"
)

// Tier is a user's privilege level.
type Tier int

const (
	TierStandard Tier = iota
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Verdict is the gate's ruling on a command.
type Verdict int

const (
	// Allow admits the command for execution.
	Allow Verdict = iota
	// Deny rejects the command outright.
	Deny
	// Throttle rejects the command because the user is in cooldown.
	Throttle
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Throttle:
		return "throttle"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// DenyReason qualifies a Deny verdict.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	// ReasonNotAuthorized: an admin-only command from a standard user.
	ReasonNotAuthorized
	// ReasonDuplicate: same command repeated within the duplicate window.
	ReasonDuplicate
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotAuthorized:
		return "not authorized"
	case ReasonDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("DenyReason(%d)", int(r))
	}
}

// Decision is the outcome of gating one command.
type Decision struct {
	Verdict Verdict
	Reason  DenyReason
	// RetryAfter is how long until the user's cooldown expires. Set only
	// on Throttle.
	RetryAfter time.Duration
}

// Defaults match the usual soundboard configuration.
const (
	DefaultCooldown        = 30 * time.Second
	DefaultDuplicateWindow = 3 * time.Second
)

type userState struct {
	lastAcceptedAt time.Time
	lastSignature  string
}

// pruneEvery bounds how often idle user entries are swept.
const pruneEvery = 256

// Gate tracks per-user state and rules on commands. It is driven by a
// single goroutine (the dispatcher's command loop) so it carries no lock.
type Gate struct {
	cooldown        time.Duration
	duplicateWindow time.Duration
	admins          map[string]struct{}
	states          map[string]*userState
	now             func() time.Time
	decideCount     int
}

// Option configures a Gate.
type Option func(*Gate)

// WithCooldown overrides the per-user cooldown between accepted request
// commands. Zero disables the cooldown.
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) { g.cooldown = d }
}

// WithDuplicateWindow overrides the window within which an identical
// repeated command is suppressed. Zero disables duplicate suppression.
func WithDuplicateWindow(d time.Duration) Option {
	return func(g *Gate) { g.duplicateWindow = d }
}

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New builds a gate. Admin membership is by exact username match, with
// surrounding whitespace in the configured names ignored.
func New(admins []string, opts ...Option) *Gate {
	g := &Gate{
		cooldown:        DefaultCooldown,
		duplicateWindow: DefaultDuplicateWindow,
		admins:          make(map[string]struct{}, len(admins)),
		states:          make(map[string]*userState),
		now:             time.Now,
	}
	for _, name := range admins {
		if name = strings.TrimSpace(name); name != "" {
			g.admins[name] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TierOf returns the privilege tier of a username.
func (g *Gate) TierOf(username string) Tier {
	if _, ok := g.admins[username]; ok {
		return TierAdmin
	}
	return TierStandard
}

// Decide rules on a command. An allowed request command updates the
// user's state; Deny and Throttle leave it untouched, so a rejected
// command never extends a cooldown or arms duplicate suppression.
// Control commands never touch rate state in either direction.
func (g *Gate) Decide(cmd command.Command) Decision {
	tier := g.TierOf(cmd.Username)

	if cmd.Kind.IsAdminOnly() {
		if tier != TierAdmin {
			return Decision{Verdict: Deny, Reason: ReasonNotAuthorized}
		}
		// Control commands carry no rate state: an admin may issue !skip
		// or !stop back to back without tripping duplicate suppression.
		return Decision{Verdict: Allow}
	}

	now := g.now()
	g.decideCount++
	if g.decideCount%pruneEvery == 0 {
		g.prune(now)
	}
	st := g.states[cmd.Username]

	// Duplicate suppression is checked before the cooldown and applies to
	// admins too: a double-send of the same command is noise regardless of
	// tier.
	if st != nil && g.duplicateWindow > 0 &&
		st.lastSignature == cmd.Signature() &&
		now.Sub(st.lastAcceptedAt) < g.duplicateWindow {
		return Decision{Verdict: Deny, Reason: ReasonDuplicate}
	}

	// Admins bypass the cooldown but not duplicate suppression.
	if tier != TierAdmin && st != nil && g.cooldown > 0 {
		if remaining := g.cooldown - now.Sub(st.lastAcceptedAt); remaining > 0 {
			return Decision{Verdict: Throttle, RetryAfter: remaining}
		}
	}

	if st == nil {
		st = &userState{}
		g.states[cmd.Username] = st
	}
	st.lastAcceptedAt = now
	st.lastSignature = cmd.Signature()
	return Decision{Verdict: Allow}
}

// prune drops entries idle past every limit, keeping the state map bounded
// over a long session.
func (g *Gate) prune(now time.Time) {
	ttl := g.cooldown
	if g.duplicateWindow > ttl {
		ttl = g.duplicateWindow
	}
	if ttl <= 0 {
		return
	}
	for user, st := range g.states {
		if now.Sub(st.lastAcceptedAt) > ttl {
			delete(g.states, user)
		}
	}
}
