// Package salary turns the free-form salary text shown on hh.ru vacancy
// pages into a numeric Value.
package salary

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Currency is the literal the pattern anchors on.
const Currency = "₽"

var ErrMalformedNumber = errors.New("malformed salary number")

var salaryPattern = regexp.MustCompile(`(?:от\s*)?(\d+(?:\s+\d+)*(?:,\d+)?)\s*(?:до\s*)?(\d+(?:\s+\d+)*(?:,\d+)?)?\s*` + Currency + `\s*(.*)`)

// Parse joins the fragments and extracts an optional "от X до Y ₽" salary.
// Text without digits or without the ruble sign yields Absent and no error.
func Parse(fragments []string) (Value, error) {
	if len(fragments) == 0 {
		return Absent(), nil
	}

	text := Normalize(fragments)
	match := salaryPattern.FindStringSubmatch(text)
	if match == nil {
		return Absent(), nil
	}

	low, hasLow, err := parseBound(match[1])
	if err != nil {
		return Absent(), err
	}
	high, hasHigh, err := parseBound(match[2])
	if err != nil {
		return Absent(), err
	}

	switch {
	case hasLow && hasHigh:
		return Range(low, high), nil
	case hasLow:
		return Single(low), nil
	default:
		return Absent(), nil
	}
}

// Normalize joins fragments with a space and turns every Unicode space
// (non-breaking, narrow, figure, thin) into an ASCII one; the pattern's \s
// only matches ASCII.
func Normalize(fragments []string) string {
	return strings.Map(foldSpace, strings.Join(fragments, " "))
}

func foldSpace(r rune) rune {
	if r != ' ' && unicode.IsSpace(r) {
		return ' '
	}
	return r
}

func parseBound(raw string) (float64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	cleaned := strings.Join(strings.Fields(raw), "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q: %v", ErrMalformedNumber, raw, err)
	}
	return value, true, nil
}
