package usecase

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrCursorNotFound means a paging cursor no longer names a record in the view.
	ErrCursorNotFound = errors.New("cursor not in view")
)

// KindProxy marks sessions created by the capture proxy.
const KindProxy = "proxy"

type SessionRepository interface {
	// CreateSession stores in and returns the ids of sessions evicted to make room.
	CreateSession(ctx context.Context, in *Inspection) ([]string, error)
	GetSession(ctx context.Context, id string) (*Inspection, bool, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, f SessionFilter) ([]*Inspection, int, error)
	ClearAllSessions(ctx context.Context) error
}

type SessionFilter struct {
	Q      string // case-insensitive substring of the target
	Kind   string
	Limit  int
	Offset int
}

// Metrics receives service-level counters. observability.Metrics implements it.
type Metrics interface {
	SessionsActive(n int)
	SessionsEvicted(n int)
	RequestsAdded(n int)
	RequestRemoved()
	FieldUpdated(field string)
	LateUpdate()
	SessionReset()
	FilteredQuery()
}

type noopMetrics struct{}

func (noopMetrics) SessionsActive(int)  {}
func (noopMetrics) SessionsEvicted(int) {}
func (noopMetrics) RequestsAdded(int)   {}
func (noopMetrics) RequestRemoved()     {}
func (noopMetrics) FieldUpdated(string) {}
func (noopMetrics) LateUpdate()         {}
func (noopMetrics) SessionReset()       {}
func (noopMetrics) FilteredQuery()      {}
