package richcards

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"wikicards/app/internal/wiki"
)

// isoLayout matches ISO-8601 with a numeric offset (+00:00 rather than Z).
const isoLayout = "2006-01-02T15:04:05-07:00"

// Timestamp is an ISO-8601 date. The empty Timestamp marshals as the JSON number 0,
// not as null or an empty string.
type Timestamp string

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("0"), nil
	}
	return json.Marshal(string(t))
}

// IsZero reports whether the timestamp is unknown.
func (t Timestamp) IsZero() bool {
	return t == ""
}

// convertTimestamp turns a stored YYYYMMDDHHMMSS timestamp into a Timestamp. Out-of-range
// fields roll over into the next unit, so 20200230120000 becomes 2020-03-01T12:00:00+00:00.
// Empty or non-numeric input yields the zero Timestamp.
func convertTimestamp(raw string) Timestamp {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != len(wiki.TimestampLayout) {
		return ""
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return ""
		}
	}

	var fields [6]int
	widths := [6]int{4, 2, 2, 2, 2, 2}
	offset := 0
	for i, width := range widths {
		value, err := strconv.Atoi(trimmed[offset : offset+width])
		if err != nil {
			return ""
		}
		fields[i] = value
		offset += width
	}

	parsed := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, time.UTC)
	return Timestamp(parsed.Format(isoLayout))
}
