package livestate

import "context"

// Mutation is a write to one record
type Mutation[K comparable, T any] struct {
	Op  string
	Key K
	// Patch computes the speculative record from the current one.
	Patch func(current T, present bool) T
	// Write performs the remote write and returns the stored record.
	Write func(ctx context.Context) (T, error)
}

// Mutate runs m under the view's policy
func (v *View[K, T]) Mutate(ctx context.Context, m Mutation[K, T]) error {
	if !v.isLive() {
		return &WriteFailure{Op: m.Op, Err: ErrViewClosed}
	}
	return v.cfg.Policy.Execute(ctx, &transaction[K, T]{view: v, m: m})
}

func (v *View[K, T]) isLive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.live()
}

type transaction[K comparable, T any] struct {
	view *View[K, T]
	m    Mutation[K, T]

	speculated bool
	gen        uint64
	prev       T
	hadPrev    bool
}

func (tx *transaction[K, T]) Op() string { return tx.m.Op }

func (tx *transaction[K, T]) Speculate() {
	v := tx.view
	v.mu.Lock()
	if !v.live() {
		v.mu.Unlock()
		return
	}
	tx.prev, tx.hadPrev = v.coll.Get(tx.m.Key)
	v.coll.Upsert(tx.m.Patch(tx.prev, tx.hadPrev))
	tx.gen = v.touch(tx.m.Key)
	tx.speculated = true
	v.mu.Unlock()
	v.emit()
}

func (tx *transaction[K, T]) Commit(ctx context.Context) error {
	stored, err := tx.m.Write(ctx)
	if err != nil {
		return err
	}
	tx.view.Merge(stored)
	return nil
}

// Rollback restores the record held before Speculate. A record touched
// since then by the feed or another write is left alone.
func (tx *transaction[K, T]) Rollback() bool {
	if !tx.speculated {
		return false
	}
	v := tx.view
	v.mu.Lock()
	if !v.live() || v.gen[tx.m.Key] != tx.gen {
		v.mu.Unlock()
		return false
	}
	if tx.hadPrev {
		v.coll.Upsert(tx.prev)
	} else {
		v.coll.Delete(tx.m.Key)
	}
	v.touch(tx.m.Key)
	v.mu.Unlock()
	v.emit()
	return true
}
