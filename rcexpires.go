// Package rcexpires implements TTL-based expiration for records held in a
// keyed document store. It keeps two expiration paths consistent: an active
// path that hides expired records at read time, and a passive sweep that
// scans an expiry-ordered index and tombstones expired records in batches.
//
// The engine owns no persistent state. Records, the expiry index and the
// store-wide default TTL all live behind the Store contract; package
// pebblestore ships a reference implementation.
package rcexpires

// Record is the winning live revision of a document, projected down to the
// fields the engine cares about. Timestamp and TTL are in whole seconds;
// zero means the field is absent.
type Record struct {
	ID        string
	Rev       string
	Timestamp int64
	TTL       int64
	Body      []byte
}

// Leaf is one revision of a record. A record can carry several concurrent
// live leaves after conflicting writes; deletion tombstones all of them.
type Leaf struct {
	Rev       string
	Deleted   bool
	Timestamp int64
	TTL       int64
	Body      []byte
}

// Entry is one expiry-index row: the index sort key plus the record's
// expiry metadata. The index yields entries in ascending Key order.
type Entry struct {
	Key       int64
	ID        string
	Timestamp int64
	TTL       int64
}

// IndexCursor streams expiry-index entries in ascending key order.
type IndexCursor interface {
	// Next returns the next entry, or ok=false once the cursor is exhausted.
	Next() (entry Entry, ok bool, err error)
	Close() error
}

// Store is the document-store contract the engine runs against. The handle
// is assumed to be administrative: deletes succeed regardless of per-record
// access control.
//
// DefaultTTL must return the current store-wide value on every call; the
// engine re-reads it per operation so configuration changes take effect
// immediately.
type Store interface {
	DefaultTTL() (int64, error)

	// ScanPage returns up to limit index entries from the start of the
	// expiry index, in ascending key order.
	ScanPage(limit int) ([]Entry, error)

	// ScanFrom opens a cursor at startKey inclusive. Calling it again with
	// a previously observed key resumes deterministically.
	ScanFrom(startKey int64) (IndexCursor, error)

	// OpenRecord returns the record's winning live revision or ErrNotFound.
	OpenRecord(id string) (*Record, error)

	// OpenLeaves returns every leaf of the record, live and deleted, or
	// ErrNotFound if the record has never existed.
	OpenLeaves(id string) ([]Leaf, error)

	// UpdateLeaves applies a set of leaf mutations atomically. It fails
	// with ErrConflict if the record's live leaves changed since the
	// caller observed them.
	UpdateLeaves(id string, leaves []Leaf) error
}

// Engine drives expiration against a single store.
type Engine struct {
	store Store
	opts  Options
}

// New returns an engine over store. Zero fields in opts fall back to
// defaults.
func New(store Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	return &Engine{store: store, opts: withDefaults(opts)}, nil
}

// now samples the engine clock once, in whole seconds. Every operation
// samples exactly once so a whole batch is judged against one instant.
func (e *Engine) now() int64 {
	return e.opts.Now().Unix()
}
