package console

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// An Entry is a single recorded logging call or global event.
type Entry struct {
	Time    time.Time
	Level   Level
	Message []any
	Stack   string
}

type entryJSON struct {
	T     int64  `json:"t"`
	Lvl   Level  `json:"lvl"`
	Msg   []any  `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// MarshalJSON encodes entry in the compact wire form, timestamp is in unix milliseconds.
func (e Entry) MarshalJSON() ([]byte, error) {
	msg := e.Message
	if msg == nil {
		msg = []any{}
	}
	return json.Marshal(entryJSON{T: e.Time.UnixMilli(), Lvl: e.Level, Msg: msg, Stack: e.Stack})
}

// UnmarshalJSON decodes entry from the compact wire form.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Lvl.Valid() {
		return fmt.Errorf("unknown log level %q", raw.Lvl)
	}

	*e = Entry{Time: time.UnixMilli(raw.T), Level: raw.Lvl, Message: raw.Msg, Stack: raw.Stack}
	return nil
}

// MessageText returns message values joined with a space, strings as is and everything else in fmt form.
func (e Entry) MessageText() string {
	parts := make([]string, 0, len(e.Message))
	for _, m := range e.Message {
		if s, ok := m.(string); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, fmt.Sprint(m))
	}
	return strings.Join(parts, " ")
}

// A Snapshot is a point-in-time copy of the recorded entries, ordered from the oldest to the newest.
type Snapshot struct {
	Logs []Entry `json:"logs"`
}

// Len returns the number of entries in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Logs)
}

// Filter returns a snapshot containing only those entries for which the provided function returns true.
func (s Snapshot) Filter(keep func(Entry) bool) Snapshot {
	filtered := make([]Entry, 0, len(s.Logs))
	for _, e := range s.Logs {
		if keep(e) {
			filtered = append(filtered, e)
		}
	}
	return Snapshot{Logs: filtered}
}

// FilterLevel filters entries to those recorded at exactly the given level.
func (s Snapshot) FilterLevel(level Level) Snapshot {
	return s.Filter(func(e Entry) bool {
		return e.Level == level
	})
}

// FilterMessageSnippet filters entries to those that have a message text containing the specified snippet.
func (s Snapshot) FilterMessageSnippet(snippet string) Snapshot {
	return s.Filter(func(e Entry) bool {
		return strings.Contains(e.MessageText(), snippet)
	})
}
