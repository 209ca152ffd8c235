package chatparse

import "regexp"

// Timestamp prefix written when the game logs with timestamps enabled:
// "01/15/2024 - 23:59:59: ".
const timestampLayout = "01/02/2006 - 15:04:05"

var timestampPattern = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}):\s`)

// Compiled patterns for line classification.
var (
	// Matches: "Name : message"
	// Matches: "*DEAD* Name : message" (also *TEAM*, *SPEC*)
	// Matches: "[DEAD] Name : message" (bracket variants)
	// Captures: (1) star tag, (2) bracket tag, (3) name, (4) message
	chatPattern = regexp.MustCompile(
		`^(?:\*(DEAD|TEAM|SPEC)\* |\[(DEAD|TEAM|SPEC)\] )?(.+?) :  ?(.+)$`,
	)

	// Matches: "Killer killed Victim with weapon."
	// Matches: "Killer killed Victim with weapon. (crit)"
	// Captures: (1) killer, (2) victim, (3) weapon, (4) crit marker
	killPattern = regexp.MustCompile(
		`^(.+?) killed (.+?) with (.+?)\.( \(crit\))?$`,
	)

	// Matches: "Name connected"
	connectPattern = regexp.MustCompile(`^(.+?) connected$`)

	// Matches: "Name suicided."
	suicidePattern = regexp.MustCompile(`^(.+?) suicided\.$`)
)

// exclusionPatterns mark console noise that would otherwise false-match the
// chat shape (engine status lines also use " : " as a separator).
var exclusionPatterns = []string{
	"Connected to ",
	"Steam config directory",
	"Differences found",
	"Missing RPT",
}
