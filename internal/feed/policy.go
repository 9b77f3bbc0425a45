package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrForbidden is returned when a caller may not subscribe to a key
var ErrForbidden = errors.New("subscription not allowed")

// Rule decides whether userID may subscribe to key
type Rule func(ctx context.Context, userID uuid.UUID, key Key) error

// Policy holds per-table subscription rules and column redactions.
// Tables without a rule are refused.
type Policy struct {
	rules  map[string]Rule
	redact map[string][]string
}

// NewPolicy returns an empty, deny-all policy
func NewPolicy() *Policy {
	return &Policy{rules: make(map[string]Rule), redact: make(map[string][]string)}
}

// Allow lets any authenticated user subscribe to table
func (p *Policy) Allow(table string) *Policy {
	p.rules[table] = func(context.Context, uuid.UUID, Key) error { return nil }
	return p
}

// Require installs a custom rule for table
func (p *Policy) Require(table string, rule Rule) *Policy {
	p.rules[table] = rule
	return p
}

// Redact strips columns from rows of table before they leave the server
func (p *Policy) Redact(table string, columns ...string) *Policy {
	p.redact[table] = append(p.redact[table], columns...)
	return p
}

// Authorize applies the table's rule
func (p *Policy) Authorize(ctx context.Context, userID uuid.UUID, key Key) error {
	rule, ok := p.rules[key.Table]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", ErrForbidden, key.Table)
	}
	return rule(ctx, userID, key)
}

// Apply returns ev with redacted columns removed
func (p *Policy) Apply(ev Event) Event {
	columns := p.redact[ev.Table]
	if len(columns) == 0 {
		return ev
	}
	ev.New = stripColumns(ev.New, columns)
	ev.Old = stripColumns(ev.Old, columns)
	return ev
}

func stripColumns(row json.RawMessage, columns []string) json.RawMessage {
	if isNull(row) {
		return row
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return row
	}
	for _, c := range columns {
		delete(fields, c)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return row
	}
	return out
}

// RequireFilterOn builds a rule demanding an equality filter on column whose
// value passes check.
func RequireFilterOn(column string, check func(ctx context.Context, userID uuid.UUID, value uuid.UUID) error) Rule {
	return func(ctx context.Context, userID uuid.UUID, key Key) error {
		if key.Filter.Column != column {
			return fmt.Errorf("%w: %s requires a %s filter", ErrForbidden, key.Table, column)
		}
		value, err := uuid.Parse(key.Filter.Value)
		if err != nil {
			return fmt.Errorf("%w: invalid %s", ErrForbidden, column)
		}
		return check(ctx, userID, value)
	}
}

// OwnRows allows a subscription only when column equals the caller's id
func OwnRows(column string) Rule {
	return RequireFilterOn(column, func(_ context.Context, userID, value uuid.UUID) error {
		if userID != value {
			return fmt.Errorf("%w: not your rows", ErrForbidden)
		}
		return nil
	})
}
