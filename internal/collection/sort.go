package collection

import (
	"cmp"
	"slices"
	"strings"

	"network-monitor/internal/domain"
)

// Sort keys accepted by SortBy.
const (
	SortWaterfall   = "waterfall"
	SortStatus      = "status"
	SortMethod      = "method"
	SortFile        = "file"
	SortDomain      = "domain"
	SortType        = "type"
	SortTransferred = "transferred"
	SortSize        = "size"
)

// SortKeys lists the valid sort keys.
var SortKeys = []string{SortWaterfall, SortStatus, SortMethod, SortFile, SortDomain, SortType, SortTransferred, SortSize}

// Comparator orders two records, returning a negative number when a sorts first.
type Comparator func(a, b *domain.Request) int

var comparators = map[string]Comparator{
	SortWaterfall: byStart,
	SortStatus: thenByStart(func(a, b *domain.Request) int {
		return cmp.Compare(a.Status, b.Status)
	}),
	SortMethod: thenByStart(func(a, b *domain.Request) int {
		return strings.Compare(a.Method, b.Method)
	}),
	SortFile: thenByStart(func(a, b *domain.Request) int {
		return strings.Compare(
			strings.ToLower(domain.FileNameWithQuery(a.URL)),
			strings.ToLower(domain.FileNameWithQuery(b.URL)))
	}),
	SortDomain: thenByStart(func(a, b *domain.Request) int {
		return strings.Compare(
			strings.ToLower(domain.HostPort(a.URL)),
			strings.ToLower(domain.HostPort(b.URL)))
	}),
	SortType: thenByStart(func(a, b *domain.Request) int {
		return strings.Compare(domain.AbbreviatedMimeType(a.MimeType), domain.AbbreviatedMimeType(b.MimeType))
	}),
	SortTransferred: thenByStart(func(a, b *domain.Request) int {
		return cmp.Compare(a.TransferredSize, b.TransferredSize)
	}),
	SortSize: thenByStart(func(a, b *domain.Request) int {
		return cmp.Compare(a.ContentSize, b.ContentSize)
	}),
}

func byStart(a, b *domain.Request) int {
	return cmp.Compare(a.StartedMillis, b.StartedMillis)
}

func thenByStart(primary Comparator) Comparator {
	return func(a, b *domain.Request) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		return byStart(a, b)
	}
}

// ValidSortKey reports whether name is one of SortKeys.
func ValidSortKey(name string) bool {
	_, ok := comparators[name]
	return ok
}

// SortBy re-sorts the canonical list by the named key. Descending order
// inverts the whole comparator, tie-break included. It returns false and
// changes nothing when name is unknown.
func (c *Collection) SortBy(name string, descending bool) bool {
	base, ok := comparators[name]
	if !ok {
		return false
	}
	c.sortKey = name
	c.sortDesc = descending
	c.compare = base
	if descending {
		c.compare = func(a, b *domain.Request) int { return base(b, a) }
	}
	c.sort()
	c.bump()
	c.emit(Event{Name: EventSort})
	return true
}

// SortOrder returns the active sort key and direction.
func (c *Collection) SortOrder() (name string, descending bool) {
	return c.sortKey, c.sortDesc
}

func (c *Collection) sort() {
	slices.SortStableFunc(c.records, c.compare)
}
