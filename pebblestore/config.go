package pebblestore

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"

	rcexpires "github.com/refuge/rc-expires"
)

// DefaultTTL returns the store-wide default TTL in seconds, 0 when unset.
// The value is read from the store on every call; callers relying on it
// must not cache it.
func (s *Store) DefaultTTL() (int64, error) {
	if s.isClosed() {
		return 0, rcexpires.ErrClosed
	}
	raw, ok, err := s.get([]byte(keyDefaultTTL))
	if err != nil {
		return 0, err
	}
	if !ok || len(raw) != 8 {
		return 0, nil
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

// SetDefaultTTL updates the store-wide default TTL. Zero disables default
// expiration; negative values are clamped to zero.
func (s *Store) SetDefaultTTL(seconds int64) error {
	if s.isClosed() {
		return rcexpires.ErrClosed
	}
	if seconds < 0 {
		seconds = 0
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seconds))
	return s.db.Set([]byte(keyDefaultTTL), buf[:], pebble.NoSync)
}
