package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"network-monitor/internal/domain"
	"network-monitor/internal/usecase"
)

const maxIngestBytes = 8 << 20

func (d *Deps) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := usecase.SessionFilter{
		Q:      q.Get("q"),
		Kind:   q.Get("kind"),
		Limit:  atoiDefault(q.Get("limit"), 50),
		Offset: atoiDefault(q.Get("offset"), 0),
	}
	items, total, err := d.Svc.ListSessions(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (d *Deps) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target string `json:"target"`
		Kind   string `json:"kind"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}
	if body.Kind == "" {
		body.Kind = "api"
	}
	sess, err := d.Svc.CreateSession(r.Context(), body.Target, body.Kind)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (d *Deps) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	if err := d.Svc.ClearAll(r.Context()); err != nil {
		writeServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Deps) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := d.Svc.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (d *Deps) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := d.Svc.DeleteSession(r.Context(), id); err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddRequests accepts one request object or an array of them. Arrays
// are added in a single batch.
func (d *Deps) handleAddRequests(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	items, err := decodeData(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	added, err := d.Svc.AddRequests(r.Context(), id, items)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": added})
}

// handleUpdateRequest answers 202 with applied=false for unknown requests:
// details for a request may arrive after it was removed.
func (d *Deps) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	items, err := decodeData(r.Body)
	if err != nil || len(items) != 1 {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected one JSON object", nil)
		return
	}
	applied, err := d.Svc.UpdateRequest(r.Context(), vars["id"], vars["rid"], items[0])
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": vars["id"]})
		return
	}
	status := http.StatusOK
	if !applied {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"applied": applied})
}

func (d *Deps) handleRemoveRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := d.Svc.RemoveRequest(r.Context(), vars["id"], vars["rid"])
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": vars["id"]})
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "REQUEST_NOT_FOUND", "request not found", map[string]any{"id": vars["rid"]})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Deps) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req, ok, err := d.Svc.GetRequest(r.Context(), vars["id"], vars["rid"])
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": vars["id"]})
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "REQUEST_NOT_FOUND", "request not found", map[string]any{"id": vars["rid"]})
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleListRequests pages through the filtered view in display order.
func (d *Deps) handleListRequests(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	limit := atoiDefault(q.Get("limit"), 100)
	if limit > 1000 {
		limit = 1000
	}
	items, next, total, err := d.Svc.ListRequests(r.Context(), id, q.Get("from"), limit)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next": next, "total": total})
}

func (d *Deps) handleReset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := d.Svc.ResetSession(r.Context(), id); err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeData reads a JSON object or array of objects. Numbers are kept as
// json.Number so large millisecond timestamps survive intact.
func decodeData(body io.Reader) ([]domain.Data, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxIngestBytes))
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	switch trimmed[0] {
	case '[':
		var items []map[string]any
		if err := dec.Decode(&items); err != nil {
			return nil, err
		}
		out := make([]domain.Data, 0, len(items))
		for i, it := range items {
			if it == nil {
				return nil, fmt.Errorf("item %d is not an object", i)
			}
			out = append(out, domain.Data(it))
		}
		return out, nil
	case '{':
		var one map[string]any
		if err := dec.Decode(&one); err != nil {
			return nil, err
		}
		return []domain.Data{one}, nil
	}
	return nil, errors.New("expected a JSON object or array")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
