package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Field names understood by Request.Set. Anything else lands in Extra.
const (
	FieldID              = "id"
	FieldStartedMillis   = "startedMillis"
	FieldTotalTime       = "totalTime"
	FieldMethod          = "method"
	FieldURL             = "url"
	FieldMimeType        = "mimeType"
	FieldStatus          = "status"
	FieldStatusText      = "statusText"
	FieldContentSize     = "contentSize"
	FieldTransferredSize = "transferredSize"
	FieldIsXHR           = "isXHR"
	FieldFromCache       = "fromCache"
)

// fieldOrder is the order in which Add and Update set known fields. startedMillis goes
// before totalTime so endedMillis can be derived in the same pass.
var fieldOrder = []string{
	FieldStartedMillis,
	FieldMethod,
	FieldURL,
	FieldIsXHR,
	FieldMimeType,
	FieldStatus,
	FieldStatusText,
	FieldContentSize,
	FieldTransferredSize,
	FieldFromCache,
	FieldTotalTime,
}

var knownFields = func() map[string]bool {
	m := make(map[string]bool, len(fieldOrder)+1)
	for _, f := range fieldOrder {
		m[f] = true
	}
	m[FieldID] = true
	return m
}()

// IsKnownField reports whether field maps onto a Request attribute.
func IsKnownField(field string) bool { return knownFields[field] }

type undefined struct{}

// Undefined marks a value that is not known yet. Setting it is a no-op, unlike
// nil which records an explicitly empty value.
var Undefined any = undefined{}

// Data carries field values for a request as they arrive from the remote side.
type Data map[string]any

// Request is one tracked network request. Fields fill in over time; any of
// them may still be missing when a consumer looks at the record.
type Request struct {
	ID string

	StartedMillis      int64
	EndedMillis        int64
	StartedDeltaMillis int64
	TotalTime          int64

	Method          string
	URL             string
	MimeType        string
	Status          int
	StatusText      string
	ContentSize     int64
	TransferredSize int64
	IsXHR           bool
	FromCache       bool

	Extra map[string]any

	known    map[string]bool
	category Category
	cats     CategorySet
}

// NewRequest builds a record with the given id and no known fields.
func NewRequest(id string) *Request {
	r := &Request{ID: id, known: make(map[string]bool, len(fieldOrder))}
	r.classify()
	return r
}

// Has reports whether a value for field has been set.
func (r *Request) Has(field string) bool {
	if field == "endedMillis" {
		return r.known[FieldStartedMillis] && r.known[FieldTotalTime]
	}
	if field == FieldID {
		return r.ID != ""
	}
	if r.known[field] {
		return true
	}
	_, ok := r.Extra[field]
	return ok
}

// Category is the record's primary classification.
func (r *Request) Category() Category { return r.category }

// Categories is the set of category predicates the record matches.
func (r *Request) Categories() CategorySet { return r.cats }

// Set applies a single field value and reports whether anything was applied.
// Undefined is ignored; values that cannot be coerced are kept in Extra.
func (r *Request) Set(field string, value any) bool {
	if value == Undefined || field == FieldID {
		return false
	}
	if !knownFields[field] {
		r.setExtra(field, value)
		return true
	}
	if !r.setKnown(field, value) {
		r.setExtra(field, value)
		return true
	}
	r.known[field] = true
	switch field {
	case FieldStartedMillis, FieldTotalTime:
		if r.known[FieldStartedMillis] && r.known[FieldTotalTime] {
			r.EndedMillis = r.StartedMillis + r.TotalTime
		}
	case FieldURL, FieldMimeType, FieldIsXHR:
		r.classify()
	}
	return true
}

// AffectsFilter reports whether a change to field can change filter results.
func AffectsFilter(field string) bool {
	return field == FieldURL || field == FieldMimeType || field == FieldIsXHR
}

// Fields returns the names in d in application order: known fields first in a
// fixed order, then the remaining names sorted.
func (d Data) Fields() []string {
	out := make([]string, 0, len(d))
	for _, f := range fieldOrder {
		if _, ok := d[f]; ok {
			out = append(out, f)
		}
	}
	rest := make([]string, 0)
	for k := range d {
		if !knownFields[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// StringID returns d["id"] as a string, or "" when absent.
func (d Data) StringID() string {
	v, ok := d[FieldID]
	if !ok || v == nil || v == Undefined {
		return ""
	}
	s, _ := toString(v)
	return s
}

func (r *Request) setExtra(field string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[field] = value
}

func (r *Request) setKnown(field string, value any) bool {
	switch field {
	case FieldStartedMillis:
		return setInt(&r.StartedMillis, value)
	case FieldTotalTime:
		return setInt(&r.TotalTime, value)
	case FieldContentSize:
		return setInt(&r.ContentSize, value)
	case FieldTransferredSize:
		return setInt(&r.TransferredSize, value)
	case FieldStatus:
		var n int64
		if !setInt(&n, value) {
			return false
		}
		r.Status = int(n)
		return true
	case FieldMethod:
		return setString(&r.Method, value)
	case FieldURL:
		return setString(&r.URL, value)
	case FieldMimeType:
		return setString(&r.MimeType, value)
	case FieldStatusText:
		return setString(&r.StatusText, value)
	case FieldIsXHR:
		return setBool(&r.IsXHR, value)
	case FieldFromCache:
		return setBool(&r.FromCache, value)
	}
	return false
}

func (r *Request) classify() {
	r.category, r.cats = Classify(r.MimeType, r.URL, r.IsXHR)
}

// Clone returns a detached copy, safe to hand to another goroutine.
func (r *Request) Clone() *Request {
	c := *r
	c.known = make(map[string]bool, len(r.known))
	for k, v := range r.known {
		c.known[k] = v
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func setInt(dst *int64, v any) bool {
	if v == nil {
		*dst = 0
		return true
	}
	n, ok := toInt64(v)
	if ok {
		*dst = n
	}
	return ok
}

func setString(dst *string, v any) bool {
	if v == nil {
		*dst = ""
		return true
	}
	s, ok := toString(v)
	if ok {
		*dst = s
	}
	return ok
}

func setBool(dst *bool, v any) bool {
	if v == nil {
		*dst = false
		return true
	}
	switch t := v.(type) {
	case bool:
		*dst = t
		return true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false
		}
		*dst = b
		return true
	}
	if n, ok := toInt64(v); ok {
		*dst = n != 0
		return true
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return roundInt64(float64(t))
	case float64:
		return roundInt64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return roundInt64(f)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return roundInt64(f)
	}
	return 0, false
}

// roundInt64 rounds f to the nearest int64, rejecting values out of range.
func roundInt64(f float64) (int64, bool) {
	f = math.Round(f)
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case int, int32, int64, uint32, uint64:
		n, _ := toInt64(t)
		return strconv.FormatInt(n, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
