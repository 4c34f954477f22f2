package httpapi

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"network-monitor/internal/domain"
)

const sniffLen = 3072

// handleCaptureProxy forwards the request to `target` and records it in the
// session named by `session`, or in the target's proxy session when none is given.
// The record is added when the request starts and updated when response
// headers arrive and when the body ends.
func (d *Deps) handleCaptureProxy(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	tgt := qp.Get("target")
	if tgt == "" {
		// fallback to default target from config
		if d.Cfg.DefaultTarget == "" {
			writeError(w, http.StatusBadRequest, "MISSING_TARGET", "missing target", nil)
			return
		}
		tgt = d.Cfg.DefaultTarget
	}
	u, err := url.Parse(tgt)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "INVALID_TARGET", "invalid target", map[string]any{"target": tgt})
		return
	}

	// Build upstream URL by joining path suffix after /httpproxy
	suffix := strings.TrimPrefix(r.URL.Path, "/httpproxy")
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	upstream := *u
	upstream.Path = strings.TrimRight(upstream.Path, "/") + suffix
	sessionID := qp.Get("session")
	qp.Del("target")
	qp.Del("session")
	upstream.RawQuery = qp.Encode()

	ctx := r.Context()
	if sessionID == "" {
		sess, err := d.Svc.ProxySession(ctx, u.String())
		if err != nil {
			writeServiceError(w, err, nil)
			return
		}
		sessionID = sess.ID
	}

	reqID := uuid.NewString()
	start := time.Now()
	_, err = d.Svc.AddRequests(ctx, sessionID, []domain.Data{{
		domain.FieldID:            reqID,
		domain.FieldStartedMillis: start.UnixMilli(),
		domain.FieldMethod:        r.Method,
		domain.FieldURL:           upstream.String(),
		domain.FieldIsXHR:         strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest"),
	}})
	if err != nil {
		writeServiceError(w, err, map[string]any{"id": sessionID})
		return
	}
	w.Header().Set("X-Monitor-Session", sessionID)
	w.Header().Set("X-Monitor-Request", reqID)

	// updates may land after the client has gone away
	bg := context.WithoutCancel(ctx)
	update := func(data domain.Data) {
		if _, err := d.Svc.UpdateRequest(bg, sessionID, reqID, data); err != nil {
			d.Logger.Debug().Err(err).Str("session", sessionID).Str("request", reqID).Msg("capture update dropped")
		}
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL = &upstream
			req.Host = upstream.Host
			removeHopHeaders(req.Header)
		},
		Transport: d.transport,
		ModifyResponse: func(resp *http.Response) error {
			sleepResponseDelay(d.Cfg.ResponseDelay)
			mime := resp.Header.Get("Content-Type")
			if mime == "" && bodyAllowed(resp) {
				mime = sniffMime(resp)
			}
			mime, _, _ = strings.Cut(mime, ";")
			update(domain.Data{
				domain.FieldStatus:     resp.StatusCode,
				domain.FieldStatusText: strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))),
				domain.FieldMimeType:   strings.TrimSpace(mime),
				domain.FieldFromCache:  resp.StatusCode == http.StatusNotModified,
			})
			encoded := resp.Header.Get("Content-Encoding") != ""
			resp.Body = &observedBody{ReadCloser: resp.Body, done: func(n int64) {
				data := domain.Data{
					domain.FieldTotalTime:       time.Since(start).Milliseconds(),
					domain.FieldTransferredSize: n,
				}
				if !encoded {
					data[domain.FieldContentSize] = n
				}
				update(data)
			}}
			return nil
		},
		ErrorHandler: func(rw http.ResponseWriter, req *http.Request, err error) {
			d.Metrics.ProxyErrorsTotal.WithLabelValues("upstream").Inc()
			d.Logger.Error().Err(err).Str("target", upstream.String()).Msg("reverse proxy error")
			update(domain.Data{
				domain.FieldTotalTime:  time.Since(start).Milliseconds(),
				domain.FieldStatusText: "upstream error",
			})
			writeError(rw, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), map[string]any{"target": upstream.String()})
		},
	}

	// Standard forwarding headers
	if ip := clientHost(r.RemoteAddr); ip != "" {
		r.Header.Set("X-Forwarded-For", ip)
	}
	if r.TLS != nil {
		r.Header.Set("X-Forwarded-Proto", "https")
	} else {
		r.Header.Set("X-Forwarded-Proto", "http")
	}
	r.Header.Set("Via", "network-monitor")

	proxy.ServeHTTP(w, r)
}

func removeHopHeaders(h http.Header) {
	hop := []string{"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade"}
	for _, k := range hop {
		h.Del(k)
	}
}

func bodyAllowed(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch {
	case resp.StatusCode >= 100 && resp.StatusCode < 200,
		resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		return false
	}
	return true
}

// sniffMime detects the content type from the first bytes of the body and
// leaves the body readable from the start.
func sniffMime(resp *http.Response) string {
	br := bufio.NewReaderSize(resp.Body, sniffLen)
	head, _ := br.Peek(sniffLen)
	resp.Body = struct {
		io.Reader
		io.Closer
	}{br, resp.Body}
	if len(head) == 0 {
		return ""
	}
	return mimetype.Detect(head).String()
}

// observedBody counts body bytes and calls done once, at EOF or Close.
type observedBody struct {
	io.ReadCloser
	n    int64
	once sync.Once
	done func(n int64)
}

func (b *observedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

func (b *observedBody) Close() error {
	err := b.ReadCloser.Close()
	b.finish()
	return err
}

func (b *observedBody) finish() { b.once.Do(func() { b.done(b.n) }) }

func clientHost(remote string) string {
	if i := strings.LastIndexByte(remote, ':'); i > 0 {
		return remote[:i]
	}
	return remote
}
