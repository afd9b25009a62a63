package pebblestore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	rcexpires "github.com/refuge/rc-expires"
)

// Document is the write-path input: a record body plus its expiry fields.
// Timestamp and TTL are whole seconds; zero means absent.
type Document struct {
	ID        string
	Timestamp int64
	TTL       int64
	Body      []byte
}

// leafValue is the stored form of one revision. The rev lives in the key.
type leafValue struct {
	Deleted   bool   `json:"deleted,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	TTL       int64  `json:"ttl,omitempty"`
	Body      []byte `json:"body,omitempty"`
}

// Put writes doc as a new live leaf of the record, generating an id when
// the document carries none, and returns the id and new revision. Earlier
// live leaves are left in place as conflict branches; the expiry index is
// updated in the same batch as the leaf.
func (s *Store) Put(doc Document) (string, string, error) {
	if s.isClosed() {
		return "", "", rcexpires.ErrClosed
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := validateID(id); err != nil {
		return "", "", err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	leaves, err := s.readLeaves(id)
	if err != nil {
		return "", "", err
	}
	gen := 0
	for _, leaf := range leaves {
		if g := revGen(leaf.Rev); g > gen {
			gen = g
		}
	}

	leaf := rcexpires.Leaf{
		Rev:       newRev(gen+1, doc),
		Timestamp: doc.Timestamp,
		TTL:       doc.TTL,
		Body:      doc.Body,
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := putLeaf(batch, id, leaf); err != nil {
		return "", "", err
	}
	if err := s.reindex(batch, id, mergeLeaves(leaves, []rcexpires.Leaf{leaf})); err != nil {
		return "", "", err
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return "", "", err
	}
	return id, leaf.Rev, nil
}

// OpenRecord returns the record's winning live revision.
func (s *Store) OpenRecord(id string) (*rcexpires.Record, error) {
	if s.isClosed() {
		return nil, rcexpires.ErrClosed
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	leaves, err := s.readLeaves(id)
	if err != nil {
		return nil, err
	}
	winner := winningLeaf(leaves)
	if winner == nil {
		return nil, rcexpires.ErrNotFound
	}
	return &rcexpires.Record{
		ID:        id,
		Rev:       winner.Rev,
		Timestamp: winner.Timestamp,
		TTL:       winner.TTL,
		Body:      winner.Body,
	}, nil
}

// OpenLeaves returns every leaf of the record, live and tombstoned.
func (s *Store) OpenLeaves(id string) ([]rcexpires.Leaf, error) {
	if s.isClosed() {
		return nil, rcexpires.ErrClosed
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	leaves, err := s.readLeaves(id)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, rcexpires.ErrNotFound
	}
	return leaves, nil
}

// UpdateLeaves applies the given leaf states atomically. The submitted
// leaves must cover exactly the record's currently live revisions; any
// mismatch means a concurrent writer got in between the caller's read and
// this update, and is reported as ErrConflict.
func (s *Store) UpdateLeaves(id string, leaves []rcexpires.Leaf) error {
	if s.isClosed() {
		return rcexpires.ErrClosed
	}
	if err := validateID(id); err != nil {
		return err
	}
	if len(leaves) == 0 {
		return fmt.Errorf("pebblestore: no leaves to update")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.readLeaves(id)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return rcexpires.ErrNotFound
	}

	live := make(map[string]bool, len(current))
	for _, leaf := range current {
		if !leaf.Deleted {
			live[leaf.Rev] = true
		}
	}
	if len(leaves) != len(live) {
		return rcexpires.ErrConflict
	}
	for _, leaf := range leaves {
		if !live[leaf.Rev] {
			return rcexpires.ErrConflict
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, leaf := range leaves {
		if err := putLeaf(batch, id, leaf); err != nil {
			return err
		}
	}
	if err := s.reindex(batch, id, mergeLeaves(current, leaves)); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

func validateID(id string) error {
	if id == "" || strings.IndexByte(id, 0) >= 0 {
		return rcexpires.ErrInvalidID
	}
	return nil
}

func putLeaf(batch *pebble.Batch, id string, leaf rcexpires.Leaf) error {
	val, err := json.Marshal(leafValue{
		Deleted:   leaf.Deleted,
		Timestamp: leaf.Timestamp,
		TTL:       leaf.TTL,
		Body:      leaf.Body,
	})
	if err != nil {
		return err
	}
	return batch.Set(docKey(id, leaf.Rev), val, nil)
}

// readLeaves returns all stored leaves of id, possibly none.
func (s *Store) readLeaves(id string) ([]rcexpires.Leaf, error) {
	prefix := docPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var leaves []rcexpires.Leaf
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		leaf, err := decodeLeaf(iter.Key(), val)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}
	return leaves, iter.Error()
}

func decodeLeaf(k, v []byte) (rcexpires.Leaf, error) {
	rest := k[len(prefixDoc):]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return rcexpires.Leaf{}, fmt.Errorf("pebblestore: malformed doc key %q", k)
	}
	var val leafValue
	if err := json.Unmarshal(v, &val); err != nil {
		return rcexpires.Leaf{}, err
	}
	return rcexpires.Leaf{
		Rev:       string(rest[i+1:]),
		Deleted:   val.Deleted,
		Timestamp: val.Timestamp,
		TTL:       val.TTL,
		Body:      val.Body,
	}, nil
}

// mergeLeaves overlays updates onto base by revision.
func mergeLeaves(base, updates []rcexpires.Leaf) []rcexpires.Leaf {
	merged := make([]rcexpires.Leaf, 0, len(base)+len(updates))
	replaced := make(map[string]bool, len(updates))
	for _, leaf := range updates {
		replaced[leaf.Rev] = true
	}
	for _, leaf := range base {
		if !replaced[leaf.Rev] {
			merged = append(merged, leaf)
		}
	}
	return append(merged, updates...)
}

// winningLeaf picks the live leaf with the highest generation, breaking
// ties on the revision string, CouchDB style. Nil when nothing is live.
func winningLeaf(leaves []rcexpires.Leaf) *rcexpires.Leaf {
	var winner *rcexpires.Leaf
	for i := range leaves {
		leaf := &leaves[i]
		if leaf.Deleted {
			continue
		}
		if winner == nil {
			winner = leaf
			continue
		}
		wg, lg := revGen(winner.Rev), revGen(leaf.Rev)
		if lg > wg || (lg == wg && leaf.Rev > winner.Rev) {
			winner = leaf
		}
	}
	return winner
}

func revGen(rev string) int {
	i := strings.IndexByte(rev, '-')
	if i <= 0 {
		return 0
	}
	gen, err := strconv.Atoi(rev[:i])
	if err != nil {
		return 0
	}
	return gen
}

func newRev(gen int, doc Document) string {
	h := xxhash.New()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(doc.Timestamp))
	binary.BigEndian.PutUint64(buf[8:], uint64(doc.TTL))
	_, _ = h.Write(buf[:])
	_, _ = h.Write(doc.Body)
	return fmt.Sprintf("%d-%016x", gen, h.Sum64())
}
