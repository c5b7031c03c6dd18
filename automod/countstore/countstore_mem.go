package countstore

import (
	"context"
	"sync"
	"time"
)

// MemCountStore keeps counters in process memory. Only the current day's buckets are retained; older ones are dropped when the UTC day changes.
type MemCountStore struct {
	mu             sync.Mutex
	Counts         map[string]int
	DistinctCounts map[string]map[int64]bool
	// overridable for tests
	Now func() time.Time

	day     string
	dayKeys map[string]bool
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts:         make(map[string]int),
		DistinctCounts: make(map[string]map[int64]bool),
		Now:            time.Now,
		dayKeys:        make(map[string]bool),
	}
}

// returns the current time, first dropping day buckets of any earlier day
func (s *MemCountStore) rollLocked() time.Time {
	now := s.Now()
	day := dayOf(now)
	if day != s.day {
		for k := range s.dayKeys {
			delete(s.Counts, k)
			delete(s.DistinctCounts, k)
		}
		clear(s.dayKeys)
		s.day = day
	}
	return now
}

func (s *MemCountStore) GetCount(ctx context.Context, groupID int64, counter, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.rollLocked()
	return s.Counts[periodBucket(groupID, counter, period, now)], nil
}

func (s *MemCountStore) Increment(ctx context.Context, groupID int64, counter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.rollLocked()
	s.Counts[periodBucket(groupID, counter, PeriodTotal, now)]++
	k := periodBucket(groupID, counter, PeriodDay, now)
	s.Counts[k]++
	s.dayKeys[k] = true
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, groupID int64, counter, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.rollLocked()
	return len(s.DistinctCounts[periodBucket(groupID, counter, period, now)]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, groupID int64, counter string, senderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.rollLocked()
	for _, p := range []string{PeriodTotal, PeriodDay} {
		k := periodBucket(groupID, counter, p, now)
		m, ok := s.DistinctCounts[k]
		if !ok {
			m = make(map[int64]bool)
			s.DistinctCounts[k] = m
		}
		m[senderID] = true
		if p == PeriodDay {
			s.dayKeys[k] = true
		}
	}
	return nil
}
