package queue

import (
	"sort"
	"sync"

	"github.com/keshon/jukebox/internal/music/sources"
)

// Store maps guild ids to queues. Every operation is total: a missing queue
// is reported through the zero value, never an error.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

func NewStore() *Store {
	return &Store{queues: make(map[string]*Queue)}
}

func (s *Store) Get(guildID string) *Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queues[guildID]
}

// Create adds a queue for guildID. An existing queue is kept and Create
// reports false.
func (s *Store) Create(guildID string, b Binding) (*Queue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[guildID]; ok {
		return q, false
	}
	q := newQueue(guildID, b)
	s.queues[guildID] = q
	return q, true
}

// GetOrCreate returns the guild's queue, creating it when absent. created
// is true only for the caller that made it.
func (s *Store) GetOrCreate(guildID string, b Binding) (q *Queue, created bool) {
	if q := s.Get(guildID); q != nil {
		return q, false
	}
	return s.Create(guildID, b)
}

// Delete removes the guild's queue and returns it, or nil.
func (s *Store) Delete(guildID string) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[guildID]
	delete(s.queues, guildID)
	return q
}

// DeleteIf removes the guild's queue only if it is still q.
func (s *Store) DeleteIf(guildID string, q *Queue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.queues[guildID]; !ok || cur != q {
		return false
	}
	delete(s.queues, guildID)
	return true
}

// Enqueue appends tracks; false if the guild has no queue.
func (s *Store) Enqueue(guildID string, tracks ...sources.Track) bool {
	q := s.Get(guildID)
	if q == nil {
		return false
	}
	q.enqueue(tracks...)
	return true
}

// ClearKeepingCurrent truncates the sequence to the current track, or to
// nothing when no track is current.
func (s *Store) ClearKeepingCurrent(guildID string) bool {
	q := s.Get(guildID)
	if q == nil {
		return false
	}
	q.clearKeepingCurrent()
	return true
}

// Advance removes and returns the head. It leaves the current track alone.
func (s *Store) Advance(guildID string) *sources.Track {
	q := s.Get(guildID)
	if q == nil {
		return nil
	}
	return q.advance()
}

func (s *Store) Len(guildID string) int {
	q := s.Get(guildID)
	if q == nil {
		return 0
	}
	return q.length()
}

// PeekCurrent returns the head of the sequence without removing it.
func (s *Store) PeekCurrent(guildID string) *sources.Track {
	q := s.Get(guildID)
	if q == nil {
		return nil
	}
	return q.head()
}

// Upcoming returns tracks at offsets 1..limit.
func (s *Store) Upcoming(guildID string, limit int) []sources.Track {
	q := s.Get(guildID)
	if q == nil {
		return nil
	}
	return q.upcoming(limit)
}

func (s *Store) Snapshot(guildID string) (Snapshot, bool) {
	q := s.Get(guildID)
	if q == nil {
		return Snapshot{}, false
	}
	return q.snapshot(), true
}

// Guilds lists guilds with a live queue, sorted.
func (s *Store) Guilds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
