package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"network-monitor/internal/usecase"
)

type slot struct {
	in      *usecase.Inspection
	created time.Time
}

// Store keeps inspections in memory, oldest first. It holds at most
// maxSessions and drops sessions older than ttl when a new one arrives.
type Store struct {
	mu    sync.RWMutex
	slots []slot
	index map[string]int

	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

func NewStore(maxSessions int, ttl time.Duration) *Store {
	maxSessions = max(maxSessions, 1)
	return &Store{
		slots:       make([]slot, 0, maxSessions),
		index:       make(map[string]int, maxSessions),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// CreateSession stores in and returns the ids it evicted to make room.
func (s *Store) CreateSession(ctx context.Context, in *usecase.Inspection) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var evicted []string
	if s.ttl > 0 {
		s.slots = slices.DeleteFunc(s.slots, func(sl slot) bool {
			if now.Sub(sl.created) <= s.ttl {
				return false
			}
			evicted = append(evicted, sl.in.ID())
			return true
		})
	}
	if over := len(s.slots) - s.maxSessions + 1; over > 0 {
		for _, sl := range s.slots[:over] {
			evicted = append(evicted, sl.in.ID())
		}
		s.slots = slices.Delete(s.slots, 0, over)
	}
	s.slots = append(s.slots, slot{in: in, created: now})
	s.reindex()
	return evicted, nil
}

func (s *Store) GetSession(_ context.Context, id string) (*usecase.Inspection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, false, nil
	}
	return s.slots[i].in, true, nil
}

// DeleteSession is a no-op for unknown ids.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.slots = slices.Delete(s.slots, i, i+1)
		s.reindex()
	}
	return nil
}

func (s *Store) ClearAllSessions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.slots)
	s.slots = s.slots[:0]
	clear(s.index)
	return nil
}

// ListSessions pages through sessions in creation order. Kind matches
// exactly; Q is a case-insensitive substring of the target.
func (s *Store) ListSessions(_ context.Context, f usecase.SessionFilter) ([]*usecase.Inspection, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(f.Q)
	matched := make([]*usecase.Inspection, 0, len(s.slots))
	for _, sl := range s.slots {
		meta := sl.in.Meta()
		if f.Kind != "" && meta.Kind != f.Kind {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(meta.Target), q) {
			continue
		}
		matched = append(matched, sl.in)
	}
	total := len(matched)
	lo := min(max(f.Offset, 0), total)
	hi := total
	if f.Limit > 0 {
		hi = min(lo+f.Limit, total)
	}
	return matched[lo:hi], total, nil
}

func (s *Store) reindex() {
	clear(s.index)
	for i, sl := range s.slots {
		s.index[sl.in.ID()] = i
	}
}
