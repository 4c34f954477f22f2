package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"

	"network-monitor/internal/adapters/har"
	obs "network-monitor/internal/infrastructure/observability"
)

// handleExportHAR writes the session's filtered view as HAR 1.2, gzipped when
// the client accepts it.
func (d *Deps) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, records, err := d.Svc.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	log := har.Export(sess, records, obs.Version)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=network_monitor_"+id+".har")
	w.Header().Add("Vary", "Accept-Encoding")
	var out io.Writer = w
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = gz
	}
	if err := json.NewEncoder(out).Encode(log); err != nil {
		d.Logger.Error().Err(err).Str("session", id).Msg("har export failed")
	}
}

// maxHARSize caps an uploaded HAR document, after decompression.
var maxHARSize int64 = 64 << 20

// handleImportHAR adds every entry of an uploaded HAR (optionally gzipped) to
// the session in one batch.
func (d *Deps) handleImportHAR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body io.Reader = io.LimitReader(r.Body, maxHARSize)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_HAR", err.Error(), nil)
			return
		}
		defer gz.Close()
		body = io.LimitReader(gz, maxHARSize)
	}
	items, err := har.Import(body)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	added, err := d.Svc.AddRequests(r.Context(), id, items)
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"imported": len(added)})
}
