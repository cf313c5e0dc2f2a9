package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"transcoderctl/internal/logging"
)

// Entry is one record written by the JSON file handler.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	Component string
	JobID     string
	Attrs     map[string]any
}

// ParseEntry decodes a JSON log line. Lines that are not JSON objects report
// false.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Attrs: make(map[string]any)}
	for key, value := range raw {
		switch key {
		case slog.TimeKey:
			if s, ok := value.(string); ok {
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case slog.LevelKey:
			if s, ok := value.(string); ok {
				_ = entry.Level.UnmarshalText([]byte(s))
			}
		case slog.MessageKey:
			entry.Message, _ = value.(string)
		case slog.SourceKey:
		case logging.FieldComponent:
			entry.Component, _ = value.(string)
		case logging.FieldJobID:
			entry.JobID, _ = value.(string)
		default:
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// Format renders e on one line with attributes in key order.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", e.Level.String())
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.JobID != "" {
		fmt.Fprintf(&b, " %s=%s", logging.FieldJobID, e.JobID)
	}
	for _, key := range slices.Sorted(maps.Keys(e.Attrs)) {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}

// Filter selects entries. The zero Filter matches every line.
type Filter struct {
	MinLevel  *slog.Level
	JobID     string
	Component string
}

func (f Filter) empty() bool {
	return f.MinLevel == nil && f.JobID == "" && f.Component == ""
}

// Match reports whether line passes the filter. Unparseable lines only pass
// the zero Filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	entry, ok := ParseEntry(line)
	if !ok {
		return false
	}
	if f.MinLevel != nil && entry.Level < *f.MinLevel {
		return false
	}
	if f.JobID != "" && entry.JobID != f.JobID {
		return false
	}
	if f.Component != "" && entry.Component != f.Component {
		return false
	}
	return true
}
