package livestate

import (
	"errors"
	"fmt"

	"github.com/fkhayef/studysync/internal/feed"
)

// Common errors
var (
	ErrViewOpen   = errors.New("view is already open")
	ErrViewClosed = errors.New("view is closed")
	ErrFeedClosed = errors.New("change feed closed")
)

// LoadFailure means the initial snapshot could not be fetched. The view is
// in StatusFailed and Open may be retried.
type LoadFailure struct {
	View string
	Err  error
}

func (e *LoadFailure) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.View, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// SubscriptionFailure means the change feed for Key failed to open or dropped.
// The view keeps its last snapshot and stops receiving live updates.
type SubscriptionFailure struct {
	Key feed.Key
	Err error
}

func (e *SubscriptionFailure) Error() string {
	return fmt.Sprintf("live updates unavailable for %s: %v", e.Key, e.Err)
}

func (e *SubscriptionFailure) Unwrap() error { return e.Err }

// WriteFailure means a mutating call did not persist. RolledBack reports
// whether a speculative local change was undone.
type WriteFailure struct {
	Op         string
	Err        error
	RolledBack bool
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }

// PartialFailure reports the failed legs of a two-phase operation. Legs that
// succeeded are not undone.
type PartialFailure struct {
	Op   string
	Errs []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s partially failed: %v", e.Op, errors.Join(e.Errs...))
}

func (e *PartialFailure) Unwrap() []error { return e.Errs }

// ValidationFailure is a precondition rejected before any backend call
type ValidationFailure struct {
	Field  string
	Reason string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
