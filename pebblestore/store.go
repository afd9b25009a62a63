// Package pebblestore is a reference host store for the expiration engine,
// backed by cockroachdb/pebble. It keeps records as revisioned multi-leaf
// documents, maintains the expiry index in the same batch as every leaf
// write, and holds the store-wide default TTL.
package pebblestore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	rcexpires "github.com/refuge/rc-expires"
)

// Sharded per-record locks serialize check-then-write sequences so that
// UpdateLeaves can detect genuine external races instead of its own.
const recordLockShards = 64

// Options configures the pebble instance.
type Options struct {
	// CacheSizeMB sizes pebble's block cache. Defaults to 8.
	CacheSizeMB int64

	// DisableWAL trades durability for speed. Only for tests.
	DisableWAL bool

	Logger zerolog.Logger
}

// DefaultOptions returns a baseline store configuration.
func DefaultOptions() Options {
	return Options{CacheSizeMB: 8, Logger: zerolog.Nop()}
}

// Store implements rcexpires.Store on a pebble database. The handle is
// administrative: no per-record access control applies to anything here.
type Store struct {
	db     *pebble.DB
	path   string
	logger zerolog.Logger
	closed atomic.Bool
	locks  [recordLockShards]sync.Mutex
}

var _ rcexpires.Store = (*Store)(nil)

// pebbleLogger routes pebble's internal logging onto zerolog.
type pebbleLogger struct {
	log zerolog.Logger
}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatal().Msgf("[pebble] "+format, args...)
}

// Open opens or creates a store at path and brings the expiry index up to
// the current format, rebuilding it from the record space if the persisted
// format marker differs.
func Open(path string, opts Options) (*Store, error) {
	if opts.CacheSizeMB <= 0 {
		opts.CacheSizeMB = 8
	}

	cache := pebble.NewCache(opts.CacheSizeMB << 20)
	defer cache.Unref() // the DB keeps its own reference

	db, err := pebble.Open(path, &pebble.Options{
		Cache:      cache,
		DisableWAL: opts.DisableWAL,
		Logger:     &pebbleLogger{log: opts.Logger},
	})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", path, err)
	}

	s := &Store{db: db, path: path, logger: opts.Logger}
	if err := s.bootstrapIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	return s.closed.Load()
}

func (s *Store) lockFor(id string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(id)%recordLockShards]
}

// get reads a key and copies the value out of pebble's buffer.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}
