package collection

import (
	"github.com/spenczar/tdigest"

	"network-monitor/internal/domain"
)

// CategoryStats aggregates the records of one category.
type CategoryStats struct {
	Category    domain.Category `json:"category"`
	Count       int             `json:"count"`
	Size        int64           `json:"size"`
	Transferred int64           `json:"transferred"`
	Time        int64           `json:"time"`
	Cached      int             `json:"cached"`
}

// Percentiles are estimated request durations in milliseconds.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	Max float64 `json:"max"`
}

// Summary is the statistics view over a set of records.
type Summary struct {
	Count       int             `json:"count"`
	Size        int64           `json:"size"`
	Transferred int64           `json:"transferred"`
	Cached      int             `json:"cached"`
	Duration    int64           `json:"duration"`
	HasTimings  bool            `json:"hasTimings"`
	Timings     *Percentiles    `json:"timings,omitempty"`
	Categories  []CategoryStats `json:"categories"`
}

// Summarize aggregates the filtered view. Rows are grouped by each record's
// primary category; only categories with records are listed.
func (c *Collection) Summarize() Summary {
	s := Summarize(c.Filtered())
	first, last := c.Bounds()
	if first >= 0 && last >= 0 {
		s.HasTimings = true
		s.Duration = last - first
	}
	return s
}

// Summarize aggregates records without collection-level timing bounds.
func Summarize(records []*domain.Request) Summary {
	rows := make(map[domain.Category]*CategoryStats, len(domain.Categories))
	var s Summary
	td := tdigest.New()
	timed := 0
	for _, r := range records {
		row, ok := rows[r.Category()]
		if !ok {
			row = &CategoryStats{Category: r.Category()}
			rows[r.Category()] = row
		}
		row.Count++
		row.Size += r.ContentSize
		row.Transferred += r.TransferredSize
		s.Count++
		s.Size += r.ContentSize
		s.Transferred += r.TransferredSize
		if r.FromCache {
			row.Cached++
			s.Cached++
		}
		if r.Has(domain.FieldTotalTime) {
			row.Time += r.TotalTime
			td.Add(float64(r.TotalTime), 1)
			timed++
		}
	}
	if timed > 0 {
		s.Timings = &Percentiles{
			P50: td.Quantile(0.50),
			P90: td.Quantile(0.90),
			P95: td.Quantile(0.95),
			Max: td.Quantile(1.0),
		}
	}
	s.Categories = make([]CategoryStats, 0, len(rows))
	for _, cat := range domain.Categories {
		if row, ok := rows[cat]; ok {
			s.Categories = append(s.Categories, *row)
		}
	}
	return s
}
