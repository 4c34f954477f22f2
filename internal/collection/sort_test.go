package collection

import (
	"slices"
	"testing"

	"network-monitor/internal/domain"
)

func TestSortByKeys(t *testing.T) {
	c := New()
	c.Add(domain.Data{"id": "a", "startedMillis": 30, "method": "POST", "status": 404, "url": "https://B.example.com:8080/Zeta.js",
		"mimeType": "application/javascript", "contentSize": 10, "transferredSize": 300})
	c.Add(domain.Data{"id": "b", "startedMillis": 10, "method": "GET", "status": 200, "url": "https://a.example.com/alpha.css",
		"mimeType": "text/css", "contentSize": 30, "transferredSize": 100})
	c.Add(domain.Data{"id": "c", "startedMillis": 20, "method": "GET", "status": 301, "url": "https://c.example.com/beta.png",
		"mimeType": "image/png", "contentSize": 20, "transferredSize": 200})

	cases := []struct {
		key  string
		asc  []string
		desc []string
	}{
		{SortWaterfall, []string{"b", "c", "a"}, []string{"a", "c", "b"}},
		{SortStatus, []string{"b", "c", "a"}, []string{"a", "c", "b"}},
		{SortMethod, []string{"b", "c", "a"}, []string{"a", "c", "b"}},
		{SortFile, []string{"b", "c", "a"}, []string{"a", "c", "b"}},
		{SortDomain, []string{"b", "a", "c"}, []string{"c", "a", "b"}},
		{SortType, []string{"b", "a", "c"}, []string{"c", "a", "b"}},
		{SortTransferred, []string{"b", "c", "a"}, []string{"a", "c", "b"}},
		{SortSize, []string{"a", "c", "b"}, []string{"b", "c", "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			if !c.SortBy(tc.key, false) {
				t.Fatalf("SortBy(%q) rejected", tc.key)
			}
			if got := ids(c.Filtered()); !slices.Equal(got, tc.asc) {
				t.Fatalf("ascending: got %v want %v", got, tc.asc)
			}
			c.SortBy(tc.key, true)
			if got := ids(c.Filtered()); !slices.Equal(got, tc.desc) {
				t.Fatalf("descending: got %v want %v", got, tc.desc)
			}
		})
	}
}

func TestSortTieBreaksOnStart(t *testing.T) {
	c := New()
	c.Add(domain.Data{"id": "late", "startedMillis": 200, "method": "GET"})
	c.Add(domain.Data{"id": "early", "startedMillis": 100, "method": "GET"})
	c.Add(domain.Data{"id": "post", "startedMillis": 50, "method": "POST"})

	c.SortBy(SortMethod, false)
	want := []string{"early", "late", "post"}
	if got := ids(c.Filtered()); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSortUnknownKeyIsIgnored(t *testing.T) {
	c := New()
	rec := record(c, EventSort)
	if c.SortBy("latency", false) {
		t.Fatalf("unknown key accepted")
	}
	if key, desc := c.SortOrder(); key != SortWaterfall || desc {
		t.Fatalf("sort order changed to %s desc=%v", key, desc)
	}
	if len(rec.events) != 0 {
		t.Fatalf("unexpected events: %v", rec.names())
	}
}

func TestAddKeepsActiveSort(t *testing.T) {
	c := New()
	c.SortBy(SortSize, true)
	c.Add(domain.Data{"id": "small", "startedMillis": 1, "contentSize": 1})
	c.Add(domain.Data{"id": "big", "startedMillis": 2, "contentSize": 100})
	c.Add(domain.Data{"id": "mid", "startedMillis": 3, "contentSize": 50})
	want := []string{"big", "mid", "small"}
	if got := ids(c.All()); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSortInvalidatesFilteredView(t *testing.T) {
	c := New()
	c.Add(domain.Data{"id": "a", "startedMillis": 1, "status": 500})
	c.Add(domain.Data{"id": "b", "startedMillis": 2, "status": 200})
	if got := ids(c.Filtered()); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("waterfall: got %v", got)
	}
	c.SortBy(SortStatus, false)
	if got := ids(c.Filtered()); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("after status sort: got %v", got)
	}
}
