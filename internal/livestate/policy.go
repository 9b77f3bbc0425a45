package livestate

import (
	"context"
	"fmt"
)

// PolicyType names a mutation policy
type PolicyType string

const (
	PolicyOptimistic PolicyType = "OPTIMISTIC"
	PolicyConfirmed  PolicyType = "CONFIRMED"
)

// Transaction is one local change paired with its remote write
type Transaction interface {
	// Speculate applies the change to local state before the write
	Speculate()
	// Commit performs the remote write and merges the stored record
	Commit(ctx context.Context) error
	// Rollback undoes Speculate unless the record changed since
	Rollback() bool
}

// Policy decides when a mutation touches local state
type Policy interface {
	Execute(ctx context.Context, tx Transaction) error
	Type() PolicyType
}

// OptimisticPolicy patches local state first and rolls back on failure
type OptimisticPolicy struct{}

func (OptimisticPolicy) Type() PolicyType { return PolicyOptimistic }

func (OptimisticPolicy) Execute(ctx context.Context, tx Transaction) error {
	tx.Speculate()
	if err := tx.Commit(ctx); err != nil {
		rolledBack := tx.Rollback()
		return &WriteFailure{Op: opName(tx), Err: err, RolledBack: rolledBack}
	}
	return nil
}

// ConfirmedPolicy only touches local state once the write succeeded
type ConfirmedPolicy struct{}

func (ConfirmedPolicy) Type() PolicyType { return PolicyConfirmed }

func (ConfirmedPolicy) Execute(ctx context.Context, tx Transaction) error {
	if err := tx.Commit(ctx); err != nil {
		return &WriteFailure{Op: opName(tx), Err: err}
	}
	return nil
}

// NewPolicy returns the policy implementation for policyType
func NewPolicy(policyType PolicyType) (Policy, error) {
	switch policyType {
	case PolicyOptimistic, "":
		return OptimisticPolicy{}, nil
	case PolicyConfirmed:
		return ConfirmedPolicy{}, nil
	default:
		return nil, fmt.Errorf("unsupported mutation policy: %s", policyType)
	}
}

func opName(tx Transaction) string {
	if n, ok := tx.(interface{ Op() string }); ok {
		return n.Op()
	}
	return "write"
}
