package rcexpires

import "errors"

// OpenIfLive returns the record's winning revision, or ErrNotFound if the
// record is missing or expired. An expired record is deleted on the way
// out, so a reader never observes a stale payload even before the sweep
// reaches it; the deletion is best effort and its outcome is not surfaced.
func (e *Engine) OpenIfLive(id string) (*Record, error) {
	rec, err := e.store.OpenRecord(id)
	if err != nil {
		return nil, err
	}

	defaultTTL, err := e.store.DefaultTTL()
	if err != nil {
		return nil, err
	}
	if !IsExpiredAt(rec.Timestamp, rec.TTL, defaultTTL, e.now()) {
		return rec, nil
	}

	if err := e.DeleteIfLive(id); err != nil && !errors.Is(err, ErrNotFound) {
		e.opts.Logger.Warn().Err(err).Str("id", id).Msg("delete on expired read failed")
	}
	return nil, ErrNotFound
}

// IsExpiredRecord reports whether a record is expired without deleting it.
// A missing record returns ErrNotFound rather than folding into the false
// case, so callers can tell the two apart.
func (e *Engine) IsExpiredRecord(id string) (bool, error) {
	rec, err := e.store.OpenRecord(id)
	if err != nil {
		return false, err
	}
	defaultTTL, err := e.store.DefaultTTL()
	if err != nil {
		return false, err
	}
	return IsExpiredAt(rec.Timestamp, rec.TTL, defaultTTL, e.now()), nil
}
