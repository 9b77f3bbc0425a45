// Package feed carries row-level change notifications from PostgreSQL to
// websocket subscribers, and defines the wire types shared with the client.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the row operation that produced an event
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"

	// EventGap is delivered to every subscriber when the upstream feed
	// reconnected and notifications may have been lost.
	EventGap EventType = "GAP"
)

// Event is one change notification
type Event struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
	Partial         bool            `json:"partial,omitempty"`
}

// Row returns the record a filter is matched against: the new row for
// inserts and updates, the old row for deletes.
func (e Event) Row() json.RawMessage {
	if e.Type == EventDelete {
		return e.Old
	}
	return e.New
}

// Decode unmarshals a row payload into T
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if isNull(raw) {
		return out, errors.New("empty row payload")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode row: %w", err)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// Filter is an equality predicate written as "column=eq.value"
type Filter struct {
	Column string
	Value  string
}

// Eq builds a Filter for column = value
func Eq(column string, value fmt.Stringer) Filter {
	return Filter{Column: column, Value: value.String()}
}

// ParseFilter parses "column=eq.value". The empty string is the zero filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("unsupported filter operator in %q", s)
	}
	return Filter{Column: column, Value: value}, nil
}

func (f Filter) IsZero() bool { return f.Column == "" }

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether row satisfies the filter. The zero filter matches
// every row.
func (f Filter) Match(row json.RawMessage) bool {
	if f.IsZero() {
		return true
	}
	if isNull(row) {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok {
		return false
	}
	return scalarString(v) == f.Value
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Key identifies a logical subscription
type Key struct {
	Table  string
	Event  EventType
	Filter Filter
}

func (k Key) String() string {
	return k.Table + ":" + string(k.Event) + ":" + k.Filter.String()
}

// Validate checks the key names a table and a subscribable event type
func (k Key) Validate() error {
	if k.Table == "" {
		return errors.New("table is required")
	}
	switch k.Event {
	case EventInsert, EventUpdate, EventDelete, EventAll:
		return nil
	default:
		return fmt.Errorf("invalid event type %q", k.Event)
	}
}

// Matches reports whether ev belongs to this subscription
func (k Key) Matches(ev Event) bool {
	if ev.Table != k.Table {
		return false
	}
	if k.Event != EventAll && k.Event != ev.Type {
		return false
	}
	return k.Filter.Match(ev.Row())
}
