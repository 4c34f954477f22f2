package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"network-monitor/internal/infrastructure/config"
	obs "network-monitor/internal/infrastructure/observability"
	"network-monitor/internal/usecase"
)

type Deps struct {
	Cfg     config.Config
	Logger  *zerolog.Logger
	Metrics *obs.Metrics
	Svc     *usecase.MonitorService
	Monitor *MonitorHub

	limiter   *rate.Limiter
	transport http.RoundTripper
}

func NewRouter(d *Deps) http.Handler {
	d.transport = newTransport(d.Cfg)
	if d.Cfg.RateLimitRPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(d.Cfg.RateLimitRPS), max(d.Cfg.RateLimitBurst, 1))
	}
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path, nil)
	})

	r.Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Path("/readyz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Path("/metrics").Handler(promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	// Capture proxy
	//  - GET /httpproxy?target=https://api.example.com&session=ID          -> https://api.example.com/
	//  - GET /httpproxy/v1/users?target=https://api.example.com&session=ID -> https://api.example.com/v1/users
	//  Query params except `target` and `session` are forwarded upstream.
	r.PathPrefix("/httpproxy").HandlerFunc(d.handleCaptureProxy)

	api := r.PathPrefix("/_api/v1").Subrouter()
	api.Path("/version").Methods(http.MethodGet).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, obs.BuildInfo())
	})
	api.Path("/monitor/ws").HandlerFunc(d.Monitor.HandleWS)

	api.Path("/sessions").Methods(http.MethodGet).HandlerFunc(d.handleListSessions)
	api.Path("/sessions").Methods(http.MethodPost).HandlerFunc(d.handleCreateSession)
	api.Path("/sessions").Methods(http.MethodDelete).HandlerFunc(d.handleClearSessions)
	api.Path("/sessions/{id}").Methods(http.MethodGet).HandlerFunc(d.handleGetSession)
	api.Path("/sessions/{id}").Methods(http.MethodDelete).HandlerFunc(d.handleDeleteSession)

	api.Path("/sessions/{id}/requests").Methods(http.MethodGet).HandlerFunc(d.handleListRequests)
	api.Path("/sessions/{id}/requests").Methods(http.MethodPost).Handler(d.limited(d.handleAddRequests))
	api.Path("/sessions/{id}/requests/{rid}").Methods(http.MethodGet).HandlerFunc(d.handleGetRequest)
	api.Path("/sessions/{id}/requests/{rid}").Methods(http.MethodPatch).Handler(d.limited(d.handleUpdateRequest))
	api.Path("/sessions/{id}/requests/{rid}").Methods(http.MethodDelete).Handler(d.limited(d.handleRemoveRequest))
	api.Path("/sessions/{id}/reset").Methods(http.MethodPost).Handler(d.limited(d.handleReset))

	api.Path("/sessions/{id}/filters").Methods(http.MethodGet).HandlerFunc(d.handleGetView)
	api.Path("/sessions/{id}/filters").Methods(http.MethodPut).HandlerFunc(d.handlePutFilters)
	api.Path("/sessions/{id}/filters/{name}").Methods(http.MethodPost).HandlerFunc(d.handleAddFilter)
	api.Path("/sessions/{id}/filters/{name}").Methods(http.MethodDelete).HandlerFunc(d.handleRemoveFilter)
	api.Path("/sessions/{id}/sort").Methods(http.MethodGet).HandlerFunc(d.handleGetView)
	api.Path("/sessions/{id}/sort").Methods(http.MethodPut).HandlerFunc(d.handlePutSort)
	api.Path("/sessions/{id}/summary").Methods(http.MethodGet).HandlerFunc(d.handleSummary)

	api.Path("/sessions/{id}/har").Methods(http.MethodGet).HandlerFunc(d.handleExportHAR)
	api.Path("/sessions/{id}/har").Methods(http.MethodPost).Handler(d.limited(d.handleImportHAR))

	return withCORS(d.Cfg, r)
}

// limited guards ingest routes with the global rate limiter.
func (d *Deps) limited(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.limiter != nil && !d.limiter.Allow() {
			d.Metrics.RateLimitedTotal.Inc()
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		h(w, r)
	})
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Encoding")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "X-Monitor-Session, X-Monitor-Request")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
