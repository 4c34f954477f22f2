package collection

import (
	"slices"
	"strings"

	"network-monitor/internal/domain"
)

// FilterAll is the filter that matches every record. It is active exactly
// when no category filter is.
const FilterAll = "all"

// FilterNames lists the valid filter names in display order.
var FilterNames = []string{"all", "html", "css", "js", "xhr", "fonts", "images", "media", "flash", "other"}

// ValidFilter reports whether name is one of FilterNames.
func ValidFilter(name string) bool {
	return slices.Contains(FilterNames, name)
}

// AddFilter enables a category filter. Enabling "all" disables every other
// filter; enabling anything else disables "all". Unknown names are ignored.
func (c *Collection) AddFilter(name string) {
	if !c.addFilter(name) {
		return
	}
	c.filterChanged()
}

func (c *Collection) addFilter(name string) bool {
	if name == FilterAll {
		if c.allFilter && c.filters == 0 {
			return false
		}
		c.allFilter = true
		c.filters = 0
		return true
	}
	cat, ok := domain.ParseCategory(name)
	if !ok {
		return false
	}
	if c.filters.Has(cat) && !c.allFilter {
		return false
	}
	c.filters = c.filters.With(cat)
	c.allFilter = false
	return true
}

// RemoveFilter disables a filter. Removing the last active filter turns "all"
// back on, so the active set is never empty.
func (c *Collection) RemoveFilter(name string) {
	if name == FilterAll {
		// "all" is only ever active alone, so removing it would re-enable it.
		return
	}
	cat, ok := domain.ParseCategory(name)
	if !ok || !c.filters.Has(cat) {
		return
	}
	c.filters &^= 1 << cat
	if c.filters == 0 {
		c.allFilter = true
	}
	c.filterChanged()
}

// SetFilter makes name the only active filter. Unknown names are ignored.
func (c *Collection) SetFilter(name string) {
	if !ValidFilter(name) {
		return
	}
	c.SetFilters([]string{name})
}

// SetFilters replaces the active filters with names. Unknown names are
// dropped; an empty result means "all".
func (c *Collection) SetFilters(names []string) {
	var set domain.CategorySet
	all := false
	for _, n := range names {
		if n == FilterAll {
			all = true
			continue
		}
		if cat, ok := domain.ParseCategory(n); ok {
			set = set.With(cat)
		}
	}
	if all || set == 0 {
		set = 0
		all = true
	}
	if all == c.allFilter && set == c.filters {
		return
	}
	c.allFilter = all
	c.filters = set
	c.filterChanged()
}

// HasFilter reports whether name is active.
func (c *Collection) HasFilter(name string) bool {
	if name == FilterAll {
		return c.allFilter
	}
	cat, ok := domain.ParseCategory(name)
	return ok && c.filters.Has(cat)
}

// Filters returns the active filter names in display order.
func (c *Collection) Filters() []string {
	if c.allFilter {
		return []string{FilterAll}
	}
	out := make([]string, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		if c.filters.Has(cat) {
			out = append(out, cat.String())
		}
	}
	return out
}

// SetURLFilter restricts the view to records whose URL contains text
// (case-sensitive). The empty string matches every record.
func (c *Collection) SetURLFilter(text string) {
	if text == c.urlFilter {
		return
	}
	c.urlFilter = text
	c.filterChanged()
}

// URLFilter returns the active URL substring.
func (c *Collection) URLFilter() string { return c.urlFilter }

// Matches reports whether r passes the URL filter and at least one active
// category filter.
func (c *Collection) Matches(r *domain.Request) bool {
	if c.urlFilter != "" && !strings.Contains(r.URL, c.urlFilter) {
		return false
	}
	if c.allFilter {
		return true
	}
	return r.Categories().Intersects(c.filters)
}

// Filtered returns the records passing the active filters, in canonical order.
// The view is cached until the next structural change.
func (c *Collection) Filtered() []*domain.Request {
	if !c.cacheValid || c.cacheGen != c.generation {
		out := make([]*domain.Request, 0, len(c.records))
		for _, r := range c.records {
			if c.Matches(r) {
				out = append(out, r)
			}
		}
		c.filtered = out
		c.cacheGen = c.generation
		c.cacheValid = true
		c.recomputes++
	}
	return slices.Clone(c.filtered)
}

func (c *Collection) filterChanged() {
	c.bump()
	c.emit(Event{Name: EventFiltered})
}
