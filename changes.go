package rcexpires

import "errors"

// EndOfChanges is the key passed to a ChangeFunc, with a nil record, after
// the last live entry has been delivered.
const EndOfChanges int64 = -1

// ChangeFunc receives each non-expired record in ascending index-key order.
// Returning a non-nil error aborts the feed.
type ChangeFunc func(key int64, rec *Record) error

// ChangesSince streams (key, record) pairs from startKey onward. Expired
// entries are skipped silently: they are the sweep's problem, and never
// reach a consumer. After the cursor is exhausted fn is invoked exactly
// once more with (EndOfChanges, nil).
//
// Expiry is judged against the default TTL and clock sampled when the call
// starts, so one feed sees one consistent instant.
func (e *Engine) ChangesSince(startKey int64, fn ChangeFunc) error {
	defaultTTL, err := e.store.DefaultTTL()
	if err != nil {
		return err
	}
	now := e.now()

	cur, err := e.store.ScanFrom(startKey)
	if err != nil {
		return err
	}
	defer cur.Close()

	for {
		entry, ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if IsExpiredAt(entry.Timestamp, entry.TTL, defaultTTL, now) {
			continue
		}

		rec, err := e.store.OpenRecord(entry.ID)
		if errors.Is(err, ErrNotFound) {
			// Deleted under the cursor; the index entry just hasn't
			// caught up.
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(entry.Key, rec); err != nil {
			return err
		}
	}
	return fn(EndOfChanges, nil)
}
