package rcexpires

import (
	"errors"
	"testing"
)

func TestChangesSinceSkipsExpired(t *testing.T) {
	store := newMemStore()
	store.add("t1", 100, 10) // expired at now=1000
	store.add("t2", 200, 0)
	store.add("t3", 300, 0)
	e := testEngine(t, store, 1000)

	var keys []int64
	ends := 0
	err := e.ChangesSince(99, func(key int64, rec *Record) error {
		if key == EndOfChanges {
			if rec != nil {
				t.Fatalf("end marker carried a record")
			}
			ends++
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(keys) != 2 || keys[0] != 200 || keys[1] != 300 {
		t.Fatalf("expected keys [200 300], got %v", keys)
	}
	if ends != 1 {
		t.Fatalf("expected exactly one end marker, got %d", ends)
	}
}

func TestChangesSinceStartKeyInclusive(t *testing.T) {
	store := newMemStore()
	store.add("t1", 100, 0)
	store.add("t2", 200, 0)
	e := testEngine(t, store, 1000)

	var keys []int64
	err := e.ChangesSince(200, func(key int64, rec *Record) error {
		if key != EndOfChanges {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(keys) != 1 || keys[0] != 200 {
		t.Fatalf("expected start key to be inclusive, got %v", keys)
	}
}

func TestChangesSinceEmptyIndex(t *testing.T) {
	e := testEngine(t, newMemStore(), 1000)

	calls := 0
	err := e.ChangesSince(0, func(key int64, rec *Record) error {
		calls++
		if key != EndOfChanges {
			t.Fatalf("unexpected entry key %d", key)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected only the end marker, got %d calls", calls)
	}
}

func TestChangesSinceCallbackErrorAborts(t *testing.T) {
	store := newMemStore()
	store.add("t1", 100, 0)
	store.add("t2", 200, 0)
	e := testEngine(t, store, 1000)

	boom := errors.New("downstream failed")
	calls := 0
	err := e.ChangesSince(0, func(key int64, rec *Record) error {
		calls++
		return boom
	})
	if err != boom {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected abort after first callback, got %d calls", calls)
	}
}

func TestChangesSinceDeliversRecords(t *testing.T) {
	store := newMemStore()
	store.add("t1", 100, 0)
	e := testEngine(t, store, 1000)

	err := e.ChangesSince(0, func(key int64, rec *Record) error {
		if key == EndOfChanges {
			return nil
		}
		if rec == nil || rec.ID != "t1" || rec.Timestamp != 100 {
			t.Fatalf("unexpected record %+v", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
}
