package pebblestore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	rcexpires "github.com/refuge/rc-expires"
)

// indexFormatVersion is persisted at bootstrap; bumping it forces a rebuild
// of the expiry index from the record space on the next Open.
const indexFormatVersion uint64 = 1

// entryValue is the stored expiry metadata for one index row.
type entryValue struct {
	Timestamp int64 `json:"timestamp"`
	TTL       int64 `json:"ttl,omitempty"`
}

// ScanPage returns up to limit index entries from the start of the expiry
// index, in ascending key order.
func (s *Store) ScanPage(limit int) ([]rcexpires.Entry, error) {
	if s.isClosed() {
		return nil, rcexpires.ErrClosed
	}
	if limit <= 0 {
		return nil, fmt.Errorf("pebblestore: scan limit must be positive, got %d", limit)
	}

	prefix := []byte(prefixExp)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	entries := make([]rcexpires.Entry, 0, limit)
	for iter.SeekGE(prefix); iter.Valid() && len(entries) < limit; iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		entry, err := decodeEntry(iter.Key(), val)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, iter.Error()
}

// ScanFrom opens a cursor over the expiry index at startKey inclusive.
func (s *Store) ScanFrom(startKey int64) (rcexpires.IndexCursor, error) {
	if s.isClosed() {
		return nil, rcexpires.ErrClosed
	}
	if startKey < 0 {
		startKey = 0
	}

	lower := expKeyStart(startKey)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound([]byte(prefixExp)),
	})
	if err != nil {
		return nil, err
	}
	iter.SeekGE(lower)
	return &indexCursor{iter: iter}, nil
}

type indexCursor struct {
	iter *pebble.Iterator
}

func (c *indexCursor) Next() (rcexpires.Entry, bool, error) {
	if !c.iter.Valid() {
		return rcexpires.Entry{}, false, c.iter.Error()
	}
	val, err := c.iter.ValueAndErr()
	if err != nil {
		return rcexpires.Entry{}, false, err
	}
	entry, err := decodeEntry(c.iter.Key(), val)
	if err != nil {
		return rcexpires.Entry{}, false, err
	}
	c.iter.Next()
	return entry, true, nil
}

func (c *indexCursor) Close() error {
	return c.iter.Close()
}

func decodeEntry(k, v []byte) (rcexpires.Entry, error) {
	key, id, ok := splitExpKey(k)
	if !ok {
		return rcexpires.Entry{}, fmt.Errorf("pebblestore: malformed index key %q", k)
	}
	var val entryValue
	if err := json.Unmarshal(v, &val); err != nil {
		return rcexpires.Entry{}, err
	}
	return rcexpires.Entry{Key: key, ID: id, Timestamp: val.Timestamp, TTL: val.TTL}, nil
}

// reindex recomputes the record's expiry index entry from its leaves,
// staging the changes on batch so they commit together with the leaf
// writes. The index holds one entry per record, keyed by the winning
// leaf's timestamp; records with no live leaves or no timestamp have none.
func (s *Store) reindex(batch *pebble.Batch, id string, leaves []rcexpires.Leaf) error {
	ptr, hadEntry, err := s.get(expPtrKey(id))
	if err != nil {
		return err
	}
	if hadEntry && len(ptr) == 8 {
		old := int64(binary.BigEndian.Uint64(ptr))
		if err := batch.Delete(expKey(old, id), nil); err != nil {
			return err
		}
	}

	winner := winningLeaf(leaves)
	if winner == nil || winner.Timestamp == 0 {
		if hadEntry {
			return batch.Delete(expPtrKey(id), nil)
		}
		return nil
	}

	val, err := json.Marshal(entryValue{Timestamp: winner.Timestamp, TTL: winner.TTL})
	if err != nil {
		return err
	}
	if err := batch.Set(expKey(winner.Timestamp, id), val, nil); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(winner.Timestamp))
	return batch.Set(expPtrKey(id), buf[:], nil)
}

// bootstrapIndex checks the persisted index format marker and rebuilds the
// expiry index when it differs from the expected one.
func (s *Store) bootstrapIndex() error {
	raw, ok, err := s.get([]byte(keyIndexVersion))
	if err != nil {
		return err
	}
	if ok && len(raw) == 8 && binary.BigEndian.Uint64(raw) == indexFormatVersion {
		return nil
	}

	if err := s.rebuildIndex(); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], indexFormatVersion)
	return s.db.Set([]byte(keyIndexVersion), buf[:], pebble.NoSync)
}

// rebuildIndex drops the expiry index and reconstructs it by scanning the
// whole record space.
func (s *Store) rebuildIndex() error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, prefix := range [][]byte{[]byte(prefixExp), []byte(prefixExpPtr)} {
		if err := batch.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
			return err
		}
	}

	docs := []byte(prefixDoc)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: docs,
		UpperBound: prefixUpperBound(docs),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	indexed := 0
	var curID string
	var leaves []rcexpires.Leaf
	flush := func() error {
		if curID == "" {
			return nil
		}
		if winningLeaf(leaves) != nil {
			indexed++
		}
		return s.reindex(batch, curID, leaves)
	}

	// Doc keys sort by id, so all leaves of one record are adjacent.
	for iter.SeekGE(docs); iter.Valid(); iter.Next() {
		id, ok := docKeyID(iter.Key())
		if !ok {
			continue
		}
		if id != curID {
			if err := flush(); err != nil {
				return err
			}
			curID = id
			leaves = leaves[:0]
		}
		val, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		leaf, err := decodeLeaf(iter.Key(), val)
		if err != nil {
			return err
		}
		leaves = append(leaves, leaf)
	}
	if err := flush(); err != nil {
		return err
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return err
	}

	s.logger.Info().Int("records", indexed).Msg("expiry index rebuilt")
	return nil
}
