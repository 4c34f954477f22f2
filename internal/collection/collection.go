// Package collection holds the request collection behind a network monitor:
// an ordered set of request records with filtered and sorted views and
// change events for renderers.
//
// A Collection is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves.
package collection

import (
	"slices"

	"github.com/google/uuid"

	"network-monitor/internal/domain"
)

// Collection is the authoritative list of requests for one inspection session.
type Collection struct {
	bus Bus

	records []*domain.Request
	byID    map[string]*domain.Request

	firstStarted int64
	lastEnded    int64

	filters   domain.CategorySet
	allFilter bool
	urlFilter string

	sortKey  string
	sortDesc bool
	compare  Comparator

	// generation is bumped on every mutation that can change Filtered().
	generation uint64
	cacheGen   uint64
	cacheValid bool
	filtered   []*domain.Request
	recomputes uint64

	batchDepth int
	pending    []Event

	newID func() string
}

// Option configures a Collection.
type Option func(*Collection)

// WithBus makes the collection publish on b instead of a private LocalBus.
func WithBus(b Bus) Option {
	return func(c *Collection) { c.bus = b }
}

// WithIDGenerator sets how ids are chosen for records added without one.
func WithIDGenerator(fn func() string) Option {
	return func(c *Collection) { c.newID = fn }
}

// New returns an empty collection sorted by waterfall, with the "all" filter.
func New(opts ...Option) *Collection {
	c := &Collection{
		byID:         make(map[string]*domain.Request),
		firstStarted: -1,
		lastEnded:    -1,
		allFilter:    true,
		sortKey:      SortWaterfall,
		compare:      comparators[SortWaterfall],
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	if c.bus == nil {
		c.bus = NewBus()
	}
	return c
}

// Bus returns the bus events are published on.
func (c *Collection) Bus() Bus { return c.bus }

// Subscribe is shorthand for c.Bus().Subscribe.
func (c *Collection) Subscribe(name EventName, h Handler) Token {
	return c.bus.Subscribe(name, h)
}

// Unsubscribe is shorthand for c.Bus().Unsubscribe.
func (c *Collection) Unsubscribe(t Token) { c.bus.Unsubscribe(t) }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// All returns the records in canonical order.
func (c *Collection) All() []*domain.Request { return slices.Clone(c.records) }

// Get looks a record up by id.
func (c *Collection) Get(id string) (*domain.Request, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Add creates a record from data, appends it and re-sorts. A record whose id
// is already present receives data as an update instead.
func (c *Collection) Add(data domain.Data) *domain.Request {
	id := data.StringID()
	if existing, ok := c.byID[id]; ok && id != "" {
		c.Update(id, data)
		return existing
	}
	if id == "" {
		id = c.newID()
	}
	r := domain.NewRequest(id)
	for _, f := range data.Fields() {
		r.Set(f, data[f])
	}
	c.records = append(c.records, r)
	c.byID[id] = r
	c.trackTiming(r)
	c.sort()
	c.bump()
	c.emit(Event{Name: EventAdd, Request: r})
	return r
}

// Update applies data to the record with the given id, one change event per
// applied field. Unknown ids are ignored: detail messages can outlive their
// record. It reports whether the record was found.
func (c *Collection) Update(id string, data domain.Data) bool {
	r, ok := c.byID[id]
	if !ok {
		return false
	}
	for _, f := range data.Fields() {
		v := data[f]
		if !r.Set(f, v) {
			continue
		}
		if f == domain.FieldStartedMillis || f == domain.FieldTotalTime {
			c.trackTiming(r)
		}
		if domain.AffectsFilter(f) {
			c.bump()
		}
		c.emit(Event{Name: EventChange, Request: r, Field: f, Value: v})
	}
	return true
}

// Remove drops r if it belongs to the collection. Timing bounds are kept.
func (c *Collection) Remove(r *domain.Request) bool {
	i := slices.Index(c.records, r)
	if i < 0 {
		return false
	}
	c.records = slices.Delete(c.records, i, i+1)
	delete(c.byID, r.ID)
	c.bump()
	c.emit(Event{Name: EventRemove, Request: r})
	return true
}

// RemoveByID removes the record with the given id.
func (c *Collection) RemoveByID(id string) bool {
	r, ok := c.byID[id]
	if !ok {
		return false
	}
	return c.Remove(r)
}

// Reset clears all records and the timing bounds. Filters and sort order stay.
func (c *Collection) Reset() {
	c.records = nil
	c.byID = make(map[string]*domain.Request)
	c.firstStarted = -1
	c.lastEnded = -1
	c.bump()
	c.emit(Event{Name: EventReset})
}

// Bounds returns the earliest start and latest end seen, -1 when unknown.
func (c *Collection) Bounds() (first, last int64) { return c.firstStarted, c.lastEnded }

// Duration is lastRequestEndedMillis - firstRequestStartedMillis. Callers must
// check Len or Bounds first; an empty collection yields a meaningless value.
func (c *Collection) Duration() int64 { return c.lastEnded - c.firstStarted }

// Generation returns the current structural generation.
func (c *Collection) Generation() uint64 { return c.generation }

// Recomputes returns how many times the filtered view has been rebuilt.
func (c *Collection) Recomputes() uint64 { return c.recomputes }

// WithBatch runs fn and publishes the events it caused only after fn returns.
// Batches nest; events flush when the outermost batch ends.
func (c *Collection) WithBatch(fn func()) {
	c.batchDepth++
	defer func() {
		c.batchDepth--
		if c.batchDepth == 0 {
			c.flush()
		}
	}()
	fn()
}

func (c *Collection) flush() {
	for len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		c.bus.Publish(ev)
	}
	c.pending = nil
}

func (c *Collection) emit(ev Event) {
	if c.batchDepth > 0 {
		c.pending = append(c.pending, ev)
		return
	}
	c.bus.Publish(ev)
}

func (c *Collection) bump() { c.generation++ }

func (c *Collection) trackTiming(r *domain.Request) {
	if r.Has(domain.FieldStartedMillis) {
		if c.firstStarted == -1 || r.StartedMillis < c.firstStarted {
			c.firstStarted = r.StartedMillis
			for _, o := range c.records {
				if o.Has(domain.FieldStartedMillis) {
					o.StartedDeltaMillis = o.StartedMillis - c.firstStarted
				}
			}
		}
		r.StartedDeltaMillis = r.StartedMillis - c.firstStarted
	}
	if r.Has("endedMillis") && r.EndedMillis > c.lastEnded {
		c.lastEnded = r.EndedMillis
	}
}
