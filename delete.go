package rcexpires

import "errors"

// DeleteIfLive tombstones every live leaf of a record. It returns nil once
// the record is deleted, ErrNotFound if nothing was live to begin with, and
// ErrConflict if a concurrent writer raced both attempts.
//
// Deleting an already-deleted record is an idempotent no-op reported as
// ErrNotFound; it never resurrects the record.
func (e *Engine) DeleteIfLive(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	// One retry after a conflict. The second attempt re-reads the leaves;
	// if the record went away in the meantime that is ErrNotFound, and a
	// second conflict is surfaced rather than retried, since unbounded
	// retry risks livelock under sustained write pressure.
	err := e.deleteOnce(id)
	if !errors.Is(err, ErrConflict) {
		return err
	}
	err = e.deleteOnce(id)
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	return err
}

func (e *Engine) deleteOnce(id string) error {
	leaves, err := e.store.OpenLeaves(id)
	if err != nil {
		return err
	}

	live := make([]Leaf, 0, len(leaves))
	for _, leaf := range leaves {
		if !leaf.Deleted {
			live = append(live, leaf)
		}
	}
	if len(live) == 0 {
		return ErrNotFound
	}

	for i := range live {
		live[i].Deleted = true
	}
	return e.store.UpdateLeaves(id, live)
}
