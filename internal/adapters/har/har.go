// Package har converts between request collections and HTTP Archive 1.2 logs.
package har

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"network-monitor/internal/domain"
	"network-monitor/pkg/shared/redact"
)

var ErrInvalidHAR = errors.New("invalid HAR")

type Log struct {
	Log LogInner `json:"log"`
}

type LogInner struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Pages   []Page  `json:"pages,omitempty"`
	Entries []Entry `json:"entries"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Page struct {
	StartedDateTime string `json:"startedDateTime"`
	ID              string `json:"id"`
	Title           string `json:"title"`
}

type Entry struct {
	Pageref         string   `json:"pageref,omitempty"`
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           struct{} `json:"cache"`
	Timings         Timings  `json:"timings"`

	ResourceType string         `json:"_resourceType,omitempty"`
	FromCache    any            `json:"_fromCache,omitempty"`
	Category     string         `json:"_category,omitempty"`
	ID           string         `json:"_id,omitempty"`
	Extra        map[string]any `json:"_extra,omitempty"`
}

type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
}

type Response struct {
	Status       int         `json:"status"`
	StatusText   string      `json:"statusText"`
	HTTPVersion  string      `json:"httpVersion"`
	Headers      []NameValue `json:"headers"`
	Content      Content     `json:"content"`
	RedirectURL  string      `json:"redirectURL"`
	HeadersSize  int64       `json:"headersSize"`
	BodySize     int64       `json:"bodySize"`
	TransferSize *int64      `json:"_transferSize,omitempty"`
}

type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Timings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// Export builds a HAR log from records, typically a session's filtered view.
// Sensitive query parameters are masked.
func Export(sess domain.Session, records []*domain.Request, creatorVersion string) Log {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, toEntry(sess, r))
	}
	return Log{Log: LogInner{
		Version: "1.2",
		Creator: Creator{Name: "network-monitor", Version: creatorVersion},
		Pages: []Page{{
			StartedDateTime: formatTime(sess.StartedAt),
			ID:              sess.ID,
			Title:           sess.Target,
		}},
		Entries: entries,
	}}
}

func toEntry(sess domain.Session, r *domain.Request) Entry {
	started := sess.StartedAt
	if r.Has(domain.FieldStartedMillis) {
		started = time.UnixMilli(r.StartedMillis).UTC()
	}
	link := redact.RedactURL(r.URL)
	var total float64
	if r.Has(domain.FieldTotalTime) {
		total = float64(r.TotalTime)
	}
	bodySize := int64(-1)
	if r.Has(domain.FieldTransferredSize) {
		bodySize = r.TransferredSize
	}
	statusText := r.StatusText
	if statusText == "" {
		statusText = http.StatusText(r.Status)
	}
	e := Entry{
		Pageref:         sess.ID,
		StartedDateTime: formatTime(started),
		Time:            total,
		Request: Request{
			Method:      r.Method,
			URL:         link,
			HTTPVersion: "HTTP/1.1",
			Headers:     []NameValue{},
			QueryString: queryString(link),
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: Response{
			Status:      r.Status,
			StatusText:  statusText,
			HTTPVersion: "HTTP/1.1",
			Headers:     []NameValue{},
			Content:     Content{Size: r.ContentSize, MimeType: r.MimeType},
			HeadersSize: -1,
			BodySize:    bodySize,
		},
		Timings:  Timings{Send: 0, Wait: total, Receive: 0},
		Category: r.Category().String(),
		ID:       r.ID,
		Extra:    r.Extra,
	}
	if r.IsXHR {
		e.ResourceType = "xhr"
		e.Request.Headers = append(e.Request.Headers, NameValue{Name: "X-Requested-With", Value: "XMLHttpRequest"})
	}
	if r.FromCache {
		e.FromCache = true
	}
	return e
}

// Decode reads a HAR log, rejecting input without a log version or entries.
func Decode(rd io.Reader) (Log, error) {
	var l struct {
		Log *struct {
			Version string           `json:"version"`
			Creator Creator          `json:"creator"`
			Entries *json.RawMessage `json:"entries"`
		} `json:"log"`
	}
	dec := json.NewDecoder(rd)
	if err := dec.Decode(&l); err != nil {
		return Log{}, fmt.Errorf("%w: %v", ErrInvalidHAR, err)
	}
	if l.Log == nil || l.Log.Version == "" || l.Log.Entries == nil {
		return Log{}, fmt.Errorf("%w: missing log.version or log.entries", ErrInvalidHAR)
	}
	var entries []Entry
	if err := json.Unmarshal(*l.Log.Entries, &entries); err != nil {
		return Log{}, fmt.Errorf("%w: entries: %v", ErrInvalidHAR, err)
	}
	return Log{Log: LogInner{Version: l.Log.Version, Creator: l.Log.Creator, Entries: entries}}, nil
}

// Import decodes a HAR log into add data, one item per entry in log order.
func Import(rd io.Reader) ([]domain.Data, error) {
	l, err := Decode(rd)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Data, 0, len(l.Log.Entries))
	for i, e := range l.Log.Entries {
		d, err := entryData(e)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidHAR, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func entryData(e Entry) (domain.Data, error) {
	d := domain.Data{
		domain.FieldMethod:     e.Request.Method,
		domain.FieldURL:        e.Request.URL,
		domain.FieldStatus:     e.Response.Status,
		domain.FieldStatusText: e.Response.StatusText,
		domain.FieldMimeType:   e.Response.Content.MimeType,
		domain.FieldIsXHR:      isXHR(e),
		domain.FieldFromCache:  fromCache(e),
	}
	if e.ID != "" {
		d[domain.FieldID] = e.ID
	}
	if e.StartedDateTime != "" {
		t, err := time.Parse(time.RFC3339Nano, e.StartedDateTime)
		if err != nil {
			return nil, err
		}
		d[domain.FieldStartedMillis] = t.UnixMilli()
	}
	if e.Time >= 0 {
		d[domain.FieldTotalTime] = int64(math.Round(e.Time))
	}
	if e.Response.Content.Size >= 0 {
		d[domain.FieldContentSize] = e.Response.Content.Size
	}
	switch {
	case e.Response.TransferSize != nil:
		d[domain.FieldTransferredSize] = *e.Response.TransferSize
	case e.Response.BodySize >= 0:
		d[domain.FieldTransferredSize] = e.Response.BodySize
	}
	if e.Request.PostData != nil && e.Request.PostData.Text != "" {
		d["postData"] = redact.RedactJSON(e.Request.PostData.Text)
	}
	for k, v := range e.Extra {
		if _, taken := d[k]; !taken && !domain.IsKnownField(k) {
			d[k] = v
		}
	}
	return d, nil
}

func isXHR(e Entry) bool {
	switch strings.ToLower(e.ResourceType) {
	case "xhr", "fetch":
		return true
	}
	for _, h := range e.Request.Headers {
		if strings.EqualFold(h.Name, "X-Requested-With") && strings.EqualFold(h.Value, "XMLHttpRequest") {
			return true
		}
	}
	return false
}

func fromCache(e Entry) bool {
	if e.Response.Status == http.StatusNotModified {
		return true
	}
	switch v := e.FromCache.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	return false
}

func queryString(raw string) []NameValue {
	out := []NameValue{}
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k, _ = url.QueryUnescape(k)
		v, _ = url.QueryUnescape(v)
		out = append(out, NameValue{Name: k, Value: v})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
