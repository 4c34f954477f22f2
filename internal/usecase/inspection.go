package usecase

import (
	"sync"
	"time"

	"network-monitor/internal/collection"
	"network-monitor/internal/domain"
)

// Inspection pairs a session with its request collection. The collection is
// single-threaded; every access goes through lock.
type Inspection struct {
	mu       sync.Mutex
	session  domain.Session
	requests *collection.Collection
	outbox   []domain.Notification
}

// NewInspection creates an inspection for session with a fresh collection.
func NewInspection(session domain.Session, opts ...collection.Option) *Inspection {
	return &Inspection{session: session, requests: collection.New(opts...)}
}

// ID returns the session id.
func (in *Inspection) ID() string { return in.session.ID }

// CreatedAt returns when the session started.
func (in *Inspection) CreatedAt() time.Time { return in.session.StartedAt }

// Meta returns the session as created, without request counts.
func (in *Inspection) Meta() domain.Session { return in.session }

// Session returns the session with current request counts.
func (in *Inspection) Session() domain.Session {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sessionLocked()
}

func (in *Inspection) sessionLocked() domain.Session {
	s := in.session
	s.Requests = in.requests.Len()
	s.Filtered = len(in.requests.Filtered())
	return s
}

func (in *Inspection) queue(n domain.Notification) {
	in.outbox = append(in.outbox, n)
}

func (in *Inspection) drain() []domain.Notification {
	out := in.outbox
	in.outbox = nil
	return out
}
