package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"network-monitor/internal/collection"
	"network-monitor/internal/domain"
)

// Notifier receives collection notifications for monitor subscribers.
type Notifier interface {
	Broadcast(n domain.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(domain.Notification) {}

// View is the filter and sort state of a session's collection.
type View struct {
	Filters    []string `json:"filters"`
	URL        string   `json:"url"`
	Sort       string   `json:"sort"`
	Descending bool     `json:"descending"`
}

// ViewUpdate changes the parts of a View that are set.
type ViewUpdate struct {
	Filters    []string `json:"filters,omitempty"`
	URL        *string  `json:"url,omitempty"`
	Sort       string   `json:"sort,omitempty"`
	Descending *bool    `json:"descending,omitempty"`
}

// MonitorService owns the inspection sessions and routes transport input to
// their collections.
type MonitorService struct {
	repo     SessionRepository
	notifier Notifier
	metrics  Metrics
	logger   zerolog.Logger
	changes  *Debouncer

	proxyMu sync.Mutex

	defaultSort    string
	defaultFilters []string
}

type ServiceOption func(*MonitorService)

func WithNotifier(n Notifier) ServiceOption {
	return func(s *MonitorService) { s.notifier = n }
}

func WithMetrics(m Metrics) ServiceOption {
	return func(s *MonitorService) { s.metrics = m }
}

func WithLogger(l *zerolog.Logger) ServiceOption {
	return func(s *MonitorService) { s.logger = *l }
}

// WithDebounce sets the window used to coalesce field change notifications.
func WithDebounce(window time.Duration) ServiceOption {
	return func(s *MonitorService) { s.changes.window = window }
}

// WithDefaultView sets the sort key and filters new sessions start with.
func WithDefaultView(sort string, filters []string) ServiceOption {
	return func(s *MonitorService) {
		s.defaultSort = sort
		s.defaultFilters = filters
	}
}

func NewMonitorService(repo SessionRepository, opts ...ServiceOption) *MonitorService {
	s := &MonitorService{
		repo:        repo,
		notifier:    nopNotifier{},
		metrics:     noopMetrics{},
		logger:      zerolog.Nop(),
		defaultSort: collection.SortWaterfall,
	}
	s.changes = NewDebouncer(75*time.Millisecond, func(n domain.Notification) { s.notifier.Broadcast(n) })
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close stops pending change notifications.
func (s *MonitorService) Close() { s.changes.Stop() }

func (s *MonitorService) CreateSession(ctx context.Context, target, kind string) (domain.Session, error) {
	sess := domain.Session{ID: uuid.NewString(), Target: target, Kind: kind, StartedAt: time.Now().UTC()}
	in := NewInspection(sess)
	in.requests.SortBy(s.defaultSort, false)
	if len(s.defaultFilters) > 0 {
		in.requests.SetFilters(s.defaultFilters)
	}
	s.wire(in)
	evicted, err := s.repo.CreateSession(ctx, in)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	for _, id := range evicted {
		s.changes.Cancel(id)
		s.notifier.Broadcast(domain.Notification{Type: domain.NotifySessionDeleted, Session: id})
	}
	s.metrics.SessionsEvicted(len(evicted))
	s.refreshActive(ctx)
	s.logger.Info().Str("session", sess.ID).Str("target", target).Str("kind", kind).Msg("session started")
	s.notifier.Broadcast(domain.Notification{Type: domain.NotifySessionStarted, Session: sess.ID})
	return sess, nil
}

// ProxySession returns the capture session for target, creating it on the
// first request. Requests proxied to the same target share one session.
func (s *MonitorService) ProxySession(ctx context.Context, target string) (domain.Session, error) {
	s.proxyMu.Lock()
	defer s.proxyMu.Unlock()
	items, _, err := s.repo.ListSessions(ctx, SessionFilter{Kind: KindProxy, Q: target})
	if err != nil {
		return domain.Session{}, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Meta().Target == target {
			return items[i].Session(), nil
		}
	}
	return s.CreateSession(ctx, target, KindProxy)
}

// wire forwards collection events. Structural events are queued on the
// inspection and broadcast once its lock is released; field changes go
// through the debouncer.
func (s *MonitorService) wire(in *Inspection) {
	sid := in.ID()
	c := in.requests
	c.Subscribe(collection.EventAdd, func(ev collection.Event) {
		in.queue(domain.Notification{Type: domain.NotifyRequestAdded, Session: sid, ID: ev.Request.ID})
	})
	c.Subscribe(collection.EventRemove, func(ev collection.Event) {
		in.queue(domain.Notification{Type: domain.NotifyRequestRemoved, Session: sid, ID: ev.Request.ID})
	})
	c.Subscribe(collection.EventReset, func(collection.Event) {
		s.changes.Cancel(sid)
		in.queue(domain.Notification{Type: domain.NotifySessionReset, Session: sid})
	})
	c.Subscribe(collection.EventSort, func(collection.Event) {
		in.queue(domain.Notification{Type: domain.NotifySorted, Session: sid})
	})
	c.Subscribe(collection.EventFiltered, func(collection.Event) {
		in.queue(domain.Notification{Type: domain.NotifyFiltered, Session: sid})
	})
	c.Subscribe(collection.EventChange, func(ev collection.Event) {
		s.metrics.FieldUpdated(ev.Field)
		s.changes.Touch(sid, ev.Request.ID)
	})
}

// with runs fn on the session's collection under its lock, then broadcasts
// whatever the collection emitted.
func (s *MonitorService) with(ctx context.Context, id string, fn func(c *collection.Collection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, ok, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	in.mu.Lock()
	err = fn(in.requests)
	out := in.drain()
	in.mu.Unlock()
	for _, n := range out {
		s.notifier.Broadcast(n)
	}
	return err
}

func (s *MonitorService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	in, ok, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return in.Session(), nil
}

func (s *MonitorService) ListSessions(ctx context.Context, f SessionFilter) ([]domain.Session, int, error) {
	items, total, err := s.repo.ListSessions(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Session, 0, len(items))
	for _, in := range items {
		out = append(out, in.Session())
	}
	return out, total, nil
}

func (s *MonitorService) DeleteSession(ctx context.Context, id string) error {
	if _, ok, err := s.repo.GetSession(ctx, id); err != nil {
		return err
	} else if !ok {
		return ErrSessionNotFound
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.changes.Cancel(id)
	s.refreshActive(ctx)
	s.notifier.Broadcast(domain.Notification{Type: domain.NotifySessionDeleted, Session: id})
	return nil
}

func (s *MonitorService) ClearAll(ctx context.Context) error {
	if err := s.repo.ClearAllSessions(ctx); err != nil {
		return err
	}
	s.refreshActive(ctx)
	s.notifier.Broadcast(domain.Notification{Type: domain.NotifySessionsCleared, Session: "*"})
	return nil
}

// AddRequests adds each data item to the session in one batch and returns
// copies of the resulting records.
func (s *MonitorService) AddRequests(ctx context.Context, sessionID string, items []domain.Data) ([]*domain.Request, error) {
	out := make([]*domain.Request, 0, len(items))
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		c.WithBatch(func() {
			for _, d := range items {
				out = append(out, c.Add(d))
			}
		})
		for i, r := range out {
			out[i] = r.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RequestsAdded(len(out))
	return out, nil
}

// UpdateRequest applies data to a request. It reports false, without error,
// when the request is unknown: late detail messages are expected.
func (s *MonitorService) UpdateRequest(ctx context.Context, sessionID, requestID string, data domain.Data) (bool, error) {
	var found bool
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		found = c.Update(requestID, data)
		return nil
	})
	if err == nil && !found {
		s.metrics.LateUpdate()
		s.logger.Debug().Str("session", sessionID).Str("request", requestID).Msg("update for unknown request ignored")
	}
	return found, err
}

func (s *MonitorService) RemoveRequest(ctx context.Context, sessionID, requestID string) (bool, error) {
	var removed bool
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		removed = c.RemoveByID(requestID)
		return nil
	})
	if removed {
		s.metrics.RequestRemoved()
	}
	return removed, err
}

func (s *MonitorService) GetRequest(ctx context.Context, sessionID, requestID string) (*domain.Request, bool, error) {
	var out *domain.Request
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		if r, ok := c.Get(requestID); ok {
			out = r.Clone()
		}
		return nil
	})
	return out, out != nil, err
}

// ResetSession clears a session's requests, as on page navigation.
func (s *MonitorService) ResetSession(ctx context.Context, sessionID string) error {
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		c.Reset()
		return nil
	})
	if err == nil {
		s.metrics.SessionReset()
		s.logger.Debug().Str("session", sessionID).Msg("session reset")
	}
	return err
}

func (s *MonitorService) View(ctx context.Context, sessionID string) (View, error) {
	var v View
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		v = viewOf(c)
		return nil
	})
	return v, err
}

// UpdateView applies u. Unknown filter names are dropped and unknown sort
// keys leave the sort order unchanged, mirroring the collection.
func (s *MonitorService) UpdateView(ctx context.Context, sessionID string, u ViewUpdate) (View, error) {
	var v View
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		if u.Filters != nil {
			c.SetFilters(u.Filters)
		}
		if u.URL != nil {
			c.SetURLFilter(*u.URL)
		}
		if u.Sort != "" || u.Descending != nil {
			key, desc := c.SortOrder()
			if u.Sort != "" {
				key = u.Sort
			}
			if u.Descending != nil {
				desc = *u.Descending
			}
			c.SortBy(key, desc)
		}
		v = viewOf(c)
		return nil
	})
	return v, err
}

func (s *MonitorService) AddFilter(ctx context.Context, sessionID, name string) (View, error) {
	var v View
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		c.AddFilter(name)
		v = viewOf(c)
		return nil
	})
	return v, err
}

func (s *MonitorService) RemoveFilter(ctx context.Context, sessionID, name string) (View, error) {
	var v View
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		c.RemoveFilter(name)
		v = viewOf(c)
		return nil
	})
	return v, err
}

func viewOf(c *collection.Collection) View {
	key, desc := c.SortOrder()
	return View{Filters: c.Filters(), URL: c.URLFilter(), Sort: key, Descending: desc}
}

// ListRequests pages through the filtered view. from is the id of the last
// request of the previous page; next is empty on the last page.
func (s *MonitorService) ListRequests(ctx context.Context, sessionID, from string, limit int) ([]*domain.Request, string, int, error) {
	var (
		out   []*domain.Request
		next  string
		total int
	)
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		view := c.Filtered()
		total = len(view)
		start := 0
		if from != "" {
			i := slices.IndexFunc(view, func(r *domain.Request) bool { return r.ID == from })
			if i < 0 {
				return fmt.Errorf("%w: %s", ErrCursorNotFound, from)
			}
			start = i + 1
		}
		end := start + limit
		if limit <= 0 || end > len(view) {
			end = len(view)
		}
		if end < len(view) {
			next = view[end-1].ID
		}
		out = make([]*domain.Request, 0, end-start)
		for _, r := range view[start:end] {
			out = append(out, r.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, "", 0, err
	}
	s.metrics.FilteredQuery()
	return out, next, total, nil
}

func (s *MonitorService) Summary(ctx context.Context, sessionID string) (collection.Summary, error) {
	var sum collection.Summary
	err := s.with(ctx, sessionID, func(c *collection.Collection) error {
		sum = c.Summarize()
		return nil
	})
	return sum, err
}

// Snapshot returns the session and copies of its filtered view.
func (s *MonitorService) Snapshot(ctx context.Context, sessionID string) (domain.Session, []*domain.Request, error) {
	in, ok, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	if !ok {
		return domain.Session{}, nil, ErrSessionNotFound
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	view := in.requests.Filtered()
	out := make([]*domain.Request, 0, len(view))
	for _, r := range view {
		out = append(out, r.Clone())
	}
	return in.sessionLocked(), out, nil
}

func (s *MonitorService) refreshActive(ctx context.Context) {
	_, total, err := s.repo.ListSessions(ctx, SessionFilter{Limit: 1})
	if err != nil {
		return
	}
	s.metrics.SessionsActive(total)
}
