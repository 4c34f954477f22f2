package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network-monitor/internal/domain"
)

type sink struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (s *sink) emit(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDebouncerCoalesces(t *testing.T) {
	s := &sink{}
	d := NewDebouncer(time.Hour, s.emit)
	d.Touch("s1", "a")
	d.Touch("s1", "b")
	d.Touch("s1", "a")
	d.Touch("s2", "c")
	assert.Zero(t, s.len())

	d.Flush("s1")
	require.Equal(t, 1, s.len())
	assert.Equal(t, "s1", s.got[0].Session)
	assert.Equal(t, []string{"a", "b"}, s.got[0].IDs)
	assert.Equal(t, domain.NotifyRequestsChanged, s.got[0].Type)

	d.Flush("s1")
	assert.Equal(t, 1, s.len())
	d.Stop()
}

func TestDebouncerWindowFires(t *testing.T) {
	s := &sink{}
	d := NewDebouncer(10*time.Millisecond, s.emit)
	d.Touch("s1", "a")
	require.Eventually(t, func() bool { return s.len() == 1 }, time.Second, 2*time.Millisecond)
}

func TestDebouncerCancelAndStop(t *testing.T) {
	s := &sink{}
	d := NewDebouncer(time.Hour, s.emit)
	d.Touch("s1", "a")
	d.Cancel("s1")
	d.Flush("s1")
	assert.Zero(t, s.len())

	d.Touch("s1", "a")
	d.Stop()
	d.Touch("s1", "b")
	d.Flush("s1")
	assert.Zero(t, s.len())
}

func TestDebouncerZeroWindow(t *testing.T) {
	s := &sink{}
	d := NewDebouncer(0, s.emit)
	d.Touch("s1", "a")
	d.Touch("s1", "a")
	assert.Equal(t, 2, s.len())
}
