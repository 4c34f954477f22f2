package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network-monitor/internal/adapters/storage/memory"
	"network-monitor/internal/domain"
	"network-monitor/internal/usecase"
)

type recorder struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (r *recorder) Broadcast(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Type)
	}
	return out
}

func (r *recorder) find(typ string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.got {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func newService(t *testing.T, opts ...usecase.ServiceOption) (*usecase.MonitorService, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]usecase.ServiceOption{usecase.WithNotifier(rec), usecase.WithDebounce(0)}, opts...)
	svc := usecase.NewMonitorService(memory.NewStore(4, 0), opts...)
	t.Cleanup(svc.Close)
	return svc, rec
}

func TestServiceAddAndList(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	sess, err := svc.CreateSession(ctx, "https://example.com", "api")
	require.NoError(t, err)

	added, err := svc.AddRequests(ctx, sess.ID, []domain.Data{
		{"id": "b", "startedMillis": 200, "url": "https://example.com/b.css", "mimeType": "text/css"},
		{"id": "a", "startedMillis": 100, "url": "https://example.com/a.js", "mimeType": "application/javascript"},
		{"id": "c", "startedMillis": 300, "url": "https://example.com/c.png", "mimeType": "image/png"},
	})
	require.NoError(t, err)
	require.Len(t, added, 3)

	page, next, total, err := svc.ListRequests(ctx, sess.ID, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "b", next)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, next, _, err = svc.ListRequests(ctx, sess.ID, next, 2)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	assert.Len(t, rec.find(domain.NotifyRequestAdded), 3)
	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Requests)
}

func TestServiceReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	added, err := svc.AddRequests(ctx, sess.ID, []domain.Data{{"id": "x", "status": 200}})
	require.NoError(t, err)
	added[0].Status = 500

	r, ok, err := svc.GetRequest(ctx, sess.ID, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, r.Status)
}

func TestServiceUpdateUnknownRequest(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")

	ok, err := svc.UpdateRequest(ctx, sess.ID, "ghost", domain.Data{"status": 404})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.find(domain.NotifyRequestsChanged))
}

func TestServiceUpdateNotifies(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{{"id": "x"}})

	ok, err := svc.UpdateRequest(ctx, sess.ID, "x", domain.Data{"status": 200, "statusText": "OK"})
	require.NoError(t, err)
	assert.True(t, ok)
	changed := rec.find(domain.NotifyRequestsChanged)
	require.Len(t, changed, 2)
	assert.Equal(t, []string{"x"}, changed[0].IDs)
}

func TestServiceDebouncedChanges(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, usecase.WithDebounce(200*time.Millisecond))
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{{"id": "x"}, {"id": "y"}})

	_, _ = svc.UpdateRequest(ctx, sess.ID, "x", domain.Data{"status": 200})
	_, _ = svc.UpdateRequest(ctx, sess.ID, "y", domain.Data{"status": 200})
	_, _ = svc.UpdateRequest(ctx, sess.ID, "x", domain.Data{"totalTime": 12})

	require.Eventually(t, func() bool {
		return len(rec.find(domain.NotifyRequestsChanged)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"x", "y"}, rec.find(domain.NotifyRequestsChanged)[0].IDs)
}

func TestServiceResetAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{{"id": "x"}, {"id": "y"}})

	removed, err := svc.RemoveRequest(ctx, sess.ID, "x")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, _ = svc.RemoveRequest(ctx, sess.ID, "x")
	assert.False(t, removed)

	require.NoError(t, svc.ResetSession(ctx, sess.ID))
	_, _, total, _ := svc.ListRequests(ctx, sess.ID, "", 0)
	assert.Zero(t, total)
	assert.Contains(t, rec.types(), domain.NotifyRequestRemoved)
	assert.Contains(t, rec.types(), domain.NotifySessionReset)
}

func TestServiceView(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{
		{"id": "1", "startedMillis": 1, "url": "https://a/x.css", "mimeType": "text/css", "status": 404},
		{"id": "2", "startedMillis": 2, "url": "https://a/y.png", "mimeType": "image/png", "status": 200},
		{"id": "3", "startedMillis": 3, "url": "https://a/z.css", "mimeType": "text/css", "status": 200},
	})

	v, err := svc.View(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, v.Filters)
	assert.Equal(t, "waterfall", v.Sort)

	v, err = svc.AddFilter(ctx, sess.ID, "css")
	require.NoError(t, err)
	assert.Equal(t, []string{"css"}, v.Filters)

	desc := true
	v, err = svc.UpdateView(ctx, sess.ID, usecase.ViewUpdate{Sort: "status", Descending: &desc})
	require.NoError(t, err)
	assert.Equal(t, "status", v.Sort)
	assert.True(t, v.Descending)

	page, _, total, _ := svc.ListRequests(ctx, sess.ID, "", 0)
	assert.Equal(t, 2, total)
	assert.Equal(t, "1", page[0].ID)
	assert.Equal(t, "3", page[1].ID)

	v, err = svc.RemoveFilter(ctx, sess.ID, "css")
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, v.Filters)
	assert.Contains(t, rec.types(), domain.NotifyFiltered)
	assert.Contains(t, rec.types(), domain.NotifySorted)
}

func TestServiceDefaultView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, usecase.WithDefaultView("size", []string{"xhr", "bogus"}))
	sess, _ := svc.CreateSession(ctx, "", "api")
	v, err := svc.View(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "size", v.Sort)
	assert.Equal(t, []string{"xhr"}, v.Filters)
}

func TestServiceSessionNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.AddRequests(ctx, "nope", []domain.Data{{"id": "x"}})
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	_, err = svc.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, "nope"), usecase.ErrSessionNotFound)
	_, _, err = svc.Snapshot(ctx, "nope")
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
}

func TestServiceEviction(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	first, _ := svc.CreateSession(ctx, "", "api")
	for i := 0; i < 4; i++ {
		_, err := svc.CreateSession(ctx, "", "api")
		require.NoError(t, err)
	}
	_, err := svc.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	deleted := rec.find(domain.NotifySessionDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, first.ID, deleted[0].Session)
}

func TestServiceSummaryAndSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{
		{"id": "1", "startedMillis": 1000, "totalTime": 50, "contentSize": 10, "transferredSize": 5},
		{"id": "2", "startedMillis": 1020, "totalTime": 100, "contentSize": 20, "transferredSize": 7},
	})
	sum, err := svc.Summary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.EqualValues(t, 30, sum.Size)
	assert.EqualValues(t, 120, sum.Duration)

	s, reqs, err := svc.Snapshot(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Requests)
	assert.Len(t, reqs, 2)
}

func TestServiceCanceledContext(t *testing.T) {
	svc, _ := newService(t)
	sess, _ := svc.CreateSession(context.Background(), "", "api")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.AddRequests(ctx, sess.ID, []domain.Data{{"id": "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceListUnknownCursor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	sess, _ := svc.CreateSession(ctx, "", "api")
	_, _ = svc.AddRequests(ctx, sess.ID, []domain.Data{
		{"id": "r0", "startedMillis": 0},
		{"id": "r1", "startedMillis": 1},
		{"id": "r2", "startedMillis": 2},
		{"id": "r3", "startedMillis": 3},
	})
	_, next, _, err := svc.ListRequests(ctx, sess.ID, "", 2)
	require.NoError(t, err)
	require.Equal(t, "r1", next)

	_, _ = svc.RemoveRequest(ctx, sess.ID, next)
	page, _, _, err := svc.ListRequests(ctx, sess.ID, next, 2)
	assert.ErrorIs(t, err, usecase.ErrCursorNotFound)
	assert.Empty(t, page)
}

func TestServiceProxySessionPerTarget(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	a, err := svc.ProxySession(ctx, "http://a.test")
	require.NoError(t, err)
	again, err := svc.ProxySession(ctx, "http://a.test")
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, usecase.KindProxy, a.Kind)

	// a substring match on the target is not the same target
	b, err := svc.ProxySession(ctx, "http://a.test/v2")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, rec.find(domain.NotifySessionStarted), 2)

	require.NoError(t, svc.DeleteSession(ctx, a.ID))
	fresh, err := svc.ProxySession(ctx, "http://a.test")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, fresh.ID)
}
