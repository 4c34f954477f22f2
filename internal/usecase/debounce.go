package usecase

import (
	"sync"
	"time"

	"network-monitor/internal/domain"
)

// Debouncer coalesces per-field change notifications. Touches for a session
// within one window are delivered as a single requests_changed notification
// listing each changed request once, in first-touch order.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	emit    func(domain.Notification)
	pending map[string]*pendingChanges
	stopped bool
}

type pendingChanges struct {
	ids   []string
	seen  map[string]struct{}
	timer *time.Timer
}

// NewDebouncer returns a Debouncer delivering to emit. A zero window emits on
// every touch.
func NewDebouncer(window time.Duration, emit func(domain.Notification)) *Debouncer {
	return &Debouncer{window: window, emit: emit, pending: make(map[string]*pendingChanges)}
}

// Touch records that request id of session changed.
func (d *Debouncer) Touch(session, id string) {
	if d.window <= 0 {
		d.emit(domain.Notification{Type: domain.NotifyRequestsChanged, Session: session, IDs: []string{id}})
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	p, ok := d.pending[session]
	if !ok {
		p = &pendingChanges{seen: make(map[string]struct{})}
		d.pending[session] = p
		p.timer = time.AfterFunc(d.window, func() { d.Flush(session) })
	}
	if _, dup := p.seen[id]; dup {
		return
	}
	p.seen[id] = struct{}{}
	p.ids = append(p.ids, id)
}

// Flush delivers pending changes for session now.
func (d *Debouncer) Flush(session string) {
	d.mu.Lock()
	p, ok := d.pending[session]
	if ok {
		delete(d.pending, session)
		p.timer.Stop()
	}
	d.mu.Unlock()
	if !ok || len(p.ids) == 0 {
		return
	}
	d.emit(domain.Notification{Type: domain.NotifyRequestsChanged, Session: session, IDs: p.ids})
}

// Cancel drops pending changes for session, e.g. after a reset.
func (d *Debouncer) Cancel(session string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[session]; ok {
		p.timer.Stop()
		delete(d.pending, session)
	}
}

// Stop cancels every pending window. Later touches are dropped.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for s, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, s)
	}
}
