// Package corpus loads raw message and document files into an immutable,
// atomically swapped record snapshot.
package corpus

import (
	"sync/atomic"
	"time"

	"github.com/rgale/corpusqa/internal/record"
)

// Snapshot is one immutable view of the loaded corpus. A load builds the
// whole snapshot aside and swaps it in, so readers never observe a corpus
// that is half old and half new.
type Snapshot struct {
	LoadID   string
	Source   string
	LoadedAt time.Time
	Records  []record.Record

	// FilesSeen counts inputs considered, including ones the quality
	// filter rejected; Records may therefore have id gaps.
	FilesSeen int
}

// Empty reports whether the snapshot holds no records.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Records) == 0
}

// ByID returns the record with the given id, if present.
func (s *Snapshot) ByID(id int) (record.Record, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return record.Record{}, false
}

// Store holds the current corpus snapshot behind an atomic pointer.
// Single writer (the load operation), any number of readers.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{LoadedAt: time.Now()})
	return s
}

// Current returns the live snapshot. The returned value is immutable.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace swaps in a new snapshot wholesale.
func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}
