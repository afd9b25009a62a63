package rcexpires

import (
	"sort"
	"sync"
)

// memStore is an in-memory Store for engine tests. Index entries are
// derived from live leaves on every scan, the way a store-maintained index
// behaves: deleting a record makes its entry disappear.
type memStore struct {
	mu         sync.Mutex
	defaultTTL int64
	ttlErr     error
	scanErr    error
	leaves     map[string][]Leaf
	conflicts  map[string]int // forced UpdateLeaves conflicts remaining per id
	scanPages  int
}

func newMemStore() *memStore {
	return &memStore{
		leaves:    make(map[string][]Leaf),
		conflicts: make(map[string]int),
	}
}

// add seeds one live single-leaf record.
func (m *memStore) add(id string, timestamp, ttl int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[id] = []Leaf{{Rev: "1-" + id, Timestamp: timestamp, TTL: ttl}}
}

func (m *memStore) liveEntries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveEntriesLocked()
}

func (m *memStore) liveEntriesLocked() []Entry {
	entries := make([]Entry, 0, len(m.leaves))
	for id, leaves := range m.leaves {
		for _, leaf := range leaves {
			if !leaf.Deleted && leaf.Timestamp != 0 {
				entries = append(entries, Entry{
					Key:       leaf.Timestamp,
					ID:        id,
					Timestamp: leaf.Timestamp,
					TTL:       leaf.TTL,
				})
				break
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

func (m *memStore) DefaultTTL() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultTTL, m.ttlErr
}

func (m *memStore) ScanPage(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanPages++
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	entries := m.liveEntriesLocked()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) ScanFrom(startKey int64) (IndexCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var entries []Entry
	for _, entry := range m.liveEntriesLocked() {
		if entry.Key >= startKey {
			entries = append(entries, entry)
		}
	}
	return &memCursor{entries: entries}, nil
}

func (m *memStore) OpenRecord(id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, leaf := range m.leaves[id] {
		if !leaf.Deleted {
			return &Record{
				ID:        id,
				Rev:       leaf.Rev,
				Timestamp: leaf.Timestamp,
				TTL:       leaf.TTL,
				Body:      leaf.Body,
			}, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) OpenLeaves(id string) ([]Leaf, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaves, ok := m.leaves[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Leaf, len(leaves))
	copy(out, leaves)
	return out, nil
}

func (m *memStore) UpdateLeaves(id string, leaves []Leaf) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts[id] > 0 {
		m.conflicts[id]--
		return ErrConflict
	}
	current, ok := m.leaves[id]
	if !ok {
		return ErrNotFound
	}
	live := make(map[string]bool)
	for _, leaf := range current {
		if !leaf.Deleted {
			live[leaf.Rev] = true
		}
	}
	if len(leaves) != len(live) {
		return ErrConflict
	}
	for _, leaf := range leaves {
		if !live[leaf.Rev] {
			return ErrConflict
		}
	}
	for _, update := range leaves {
		for i := range current {
			if current[i].Rev == update.Rev {
				current[i] = update
			}
		}
	}
	return nil
}

type memCursor struct {
	entries []Entry
	pos     int
	closed  bool
}

func (c *memCursor) Next() (Entry, bool, error) {
	if c.closed || c.pos >= len(c.entries) {
		return Entry{}, false, nil
	}
	entry := c.entries[c.pos]
	c.pos++
	return entry, true, nil
}

func (c *memCursor) Close() error {
	c.closed = true
	return nil
}
