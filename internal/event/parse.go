package event

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// strictLine is the bit-exact grammar of a conforming output line.
var strictLine = regexp.MustCompile(`^\d+ \d+ (has taken a fork|is eating|is sleeping|is thinking|died)$`)

// Normalize trims surrounding whitespace (including a trailing carriage
// return) and NFC-normalises the line. Parse and MatchesGrammar both see
// normalised text.
func Normalize(line string) string {
	return norm.NFC.String(strings.TrimSpace(line))
}

// Parse converts one output line into an Event.
//
// The line must be "<timestamp> <actor_id> <message>" with both numbers
// non-negative decimal integers and fields separated by single spaces. The
// message is classified by exact phrase; unknown messages yield KindCustom.
// Parse returns false for any line that fails the shape check.
func Parse(line string) (Event, bool) {
	line = Normalize(line)

	tsField, rest, ok := strings.Cut(line, " ")
	if !ok || !isDigits(tsField) {
		return Event{}, false
	}
	idField, msg, ok := strings.Cut(rest, " ")
	if !ok || !isDigits(idField) || msg == "" {
		return Event{}, false
	}

	ts, err := strconv.ParseUint(tsField, 10, 64)
	if err != nil {
		return Event{}, false
	}
	id, err := strconv.Atoi(idField)
	if err != nil {
		return Event{}, false
	}

	kind, known := phraseKinds[msg]
	if !known {
		kind = KindCustom
	}
	return Event{TimestampMS: ts, ActorID: id, Kind: kind, Message: msg}, true
}

// MatchesGrammar reports whether line matches the strict output grammar.
// Custom messages do not match.
func MatchesGrammar(line string) bool {
	return strictLine.MatchString(Normalize(line))
}

// IsQuotaLine reports whether line is the terminal "everyone ate enough"
// summary. Matching is by substring.
func IsQuotaLine(line string) bool {
	return strings.Contains(line, QuotaLine)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
