// Package chatparse classifies raw console log lines into structured
// events. The log mixes chat with engine noise; anything unrecognized is
// dropped silently, which is the common case.
package chatparse

import (
	"strings"
	"time"

	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

// Parse parses a single console log line.
//
// Returns:
//   - (*event.Event, nil): recognized event
//   - (nil, nil): not a recognized line (noise, dropped silently)
//
// now is used as the event timestamp unless the line carries its own
// timestamp prefix.
func Parse(line string, now time.Time) (*event.Event, error) {
	line = strings.TrimRight(line, "\r")

	ts := now
	if match := timestampPattern.FindStringSubmatch(line); match != nil {
		if parsed, err := time.ParseInLocation(timestampLayout, match[1], time.Local); err == nil {
			ts = parsed
		}
		line = line[len(match[0]):]
	}

	if line == "" {
		return nil, nil
	}

	for _, pattern := range exclusionPatterns {
		if strings.Contains(line, pattern) {
			return nil, nil
		}
	}

	if ev := parseChat(line, ts); ev != nil {
		return ev, nil
	}
	if ev := parseKill(line, ts); ev != nil {
		return ev, nil
	}
	if ev := parseConnect(line, ts); ev != nil {
		return ev, nil
	}
	if ev := parseSuicide(line, ts); ev != nil {
		return ev, nil
	}

	return nil, nil
}

func parseChat(line string, ts time.Time) *event.Event {
	match := chatPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}

	username := strings.TrimSpace(match[3])
	message := strings.TrimSpace(match[4])
	if username == "" || message == "" {
		return nil
	}

	tag := event.TagNone
	if match[1] != "" {
		tag = event.ChatTag(match[1])
	} else if match[2] != "" {
		tag = event.ChatTag(match[2])
	}

	return &event.Event{
		Type:      event.Chat,
		Timestamp: ts,
		Username:  username,
		Message:   message,
		Tag:       tag,
	}
}

func parseKill(line string, ts time.Time) *event.Event {
	match := killPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}

	return &event.Event{
		Type:      event.Kill,
		Timestamp: ts,
		Killer:    strings.TrimSpace(match[1]),
		Victim:    strings.TrimSpace(match[2]),
		Weapon:    strings.TrimSpace(match[3]),
		Crit:      match[4] != "",
	}
}

func parseConnect(line string, ts time.Time) *event.Event {
	match := connectPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}

	return &event.Event{
		Type:      event.Connect,
		Timestamp: ts,
		Username:  strings.TrimSpace(match[1]),
	}
}

func parseSuicide(line string, ts time.Time) *event.Event {
	match := suicidePattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}

	return &event.Event{
		Type:      event.Suicide,
		Timestamp: ts,
		Username:  strings.TrimSpace(match[1]),
	}
}
