package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"network-monitor/internal/collection"
	"network-monitor/internal/usecase"
)

func (d *Deps) handleGetView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := d.Svc.View(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handlePutFilters replaces the active filters and, when present, the URL filter.
func (d *Deps) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Filters []string `json:"filters"`
		URL     *string  `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	for _, f := range body.Filters {
		if !collection.ValidFilter(f) {
			writeError(w, http.StatusBadRequest, "INVALID_FILTER", "unknown filter "+f, map[string]any{"valid": collection.FilterNames})
			return
		}
	}
	u := usecase.ViewUpdate{URL: body.URL}
	if body.Filters != nil {
		u.Filters = body.Filters
		if len(u.Filters) == 0 {
			u.Filters = []string{collection.FilterAll}
		}
	}
	v, err := d.Svc.UpdateView(r.Context(), id, u)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (d *Deps) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	d.toggleFilter(w, r, d.Svc.AddFilter)
}

func (d *Deps) handleRemoveFilter(w http.ResponseWriter, r *http.Request) {
	d.toggleFilter(w, r, d.Svc.RemoveFilter)
}

type filterOp func(ctx context.Context, sessionID, name string) (usecase.View, error)

func (d *Deps) toggleFilter(w http.ResponseWriter, r *http.Request, op filterOp) {
	vars := mux.Vars(r)
	if !collection.ValidFilter(vars["name"]) {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "unknown filter "+vars["name"], map[string]any{"valid": collection.FilterNames})
		return
	}
	v, err := op(r.Context(), vars["id"], vars["name"])
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": vars["id"]})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (d *Deps) handlePutSort(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Sort       string `json:"sort"`
		Descending *bool  `json:"descending"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Sort != "" && !collection.ValidSortKey(body.Sort) {
		writeError(w, http.StatusBadRequest, "INVALID_SORT", "unknown sort key "+body.Sort, map[string]any{"valid": collection.SortKeys})
		return
	}
	v, err := d.Svc.UpdateView(r.Context(), id, usecase.ViewUpdate{Sort: body.Sort, Descending: body.Descending})
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (d *Deps) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := d.Svc.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, s)
}
