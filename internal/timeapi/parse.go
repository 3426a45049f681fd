package timeapi

import "strings"

// Fallback display values for a datetime that does not have the expected shape
const (
	InvalidDate = "Invalid date"
	InvalidTime = "Invalid time"
)

// ParseDateTime splits an ISO-8601 datetime such as "2024-05-01T12:34:56Z"
// into its date part and an HH:MM time. The date is returned verbatim.
// Malformed input degrades to InvalidDate/InvalidTime rather than failing.
//
// Empty pieces are dropped before counting, so "T12:00" has a single part
// and "12" has a single time component.
func ParseDateTime(datetime string) (date, clock string) {
	parts := splitNonEmpty(datetime, 'T')
	if len(parts) != 2 {
		return InvalidDate, InvalidTime
	}
	date = parts[0]

	timeParts := splitNonEmpty(parts[1], ':')
	if len(timeParts) < 2 {
		return date, InvalidTime
	}
	return date, timeParts[0] + ":" + timeParts[1]
}

func splitNonEmpty(s string, sep rune) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == sep })
}
