package domain

import (
	"net/url"
	"path"
	"strings"
)

// Category is the content class a request is charted and filtered under.
type Category uint8

const (
	CategoryHTML Category = iota
	CategoryCSS
	CategoryJS
	CategoryXHR
	CategoryFonts
	CategoryImages
	CategoryMedia
	CategoryFlash
	CategoryOther
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryHTML, CategoryCSS, CategoryJS, CategoryXHR, CategoryFonts,
	CategoryImages, CategoryMedia, CategoryFlash, CategoryOther,
}

var categoryNames = [...]string{"html", "css", "js", "xhr", "fonts", "images", "media", "flash", "other"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "other"
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseCategory maps a name such as "css" to its Category.
func ParseCategory(name string) (Category, bool) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), true
		}
	}
	return 0, false
}

// CategorySet is a bit set of categories.
type CategorySet uint16

func (s CategorySet) Has(c Category) bool { return s&(1<<c) != 0 }

func (s CategorySet) With(c Category) CategorySet { return s | 1<<c }

// Intersects reports whether s and o share a category.
func (s CategorySet) Intersects(o CategorySet) bool { return s&o != 0 }

// Classify returns the primary category and the full set of matching
// category predicates for a request. Content-type derived categories take
// precedence over XHR; other is set only when nothing else matched.
func Classify(mimeType, rawURL string, isXHR bool) (Category, CategorySet) {
	var set CategorySet
	checks := []struct {
		c  Category
		ok bool
	}{
		{CategoryHTML, isHTML(mimeType)},
		{CategoryCSS, isCSS(mimeType)},
		{CategoryJS, isJS(mimeType)},
		{CategoryFonts, isFont(mimeType, rawURL)},
		{CategoryImages, isImage(mimeType)},
		{CategoryMedia, isMedia(mimeType)},
		{CategoryFlash, isFlash(mimeType, rawURL)},
		{CategoryXHR, isXHR},
	}
	primary := CategoryOther
	for _, ch := range checks {
		if !ch.ok {
			continue
		}
		if set == 0 {
			primary = ch.c
		}
		set = set.With(ch.c)
	}
	if set == 0 {
		set = set.With(CategoryOther)
	}
	return primary, set
}

func isHTML(mime string) bool { return strings.Contains(mime, "/html") }

func isCSS(mime string) bool { return strings.Contains(mime, "/css") }

func isJS(mime string) bool {
	return strings.Contains(mime, "/ecmascript") ||
		strings.Contains(mime, "/javascript") ||
		strings.Contains(mime, "/x-javascript")
}

func isFont(mime, rawURL string) bool {
	if strings.Contains(mime, "font/") || strings.Contains(mime, "/font") {
		return true
	}
	return strings.Contains(rawURL, ".eot") ||
		strings.Contains(rawURL, ".ttf") ||
		strings.Contains(rawURL, ".otf") ||
		strings.Contains(rawURL, ".woff")
}

func isImage(mime string) bool { return strings.Contains(mime, "image/") }

func isMedia(mime string) bool {
	return strings.Contains(mime, "audio/") ||
		strings.Contains(mime, "video/") ||
		strings.Contains(mime, "model/")
}

func isFlash(mime, rawURL string) bool {
	if strings.Contains(mime, "/x-flv") || strings.Contains(mime, "/x-shockwave-flash") {
		return true
	}
	return strings.Contains(rawURL, ".swf") || strings.Contains(rawURL, ".flv")
}

var mimeAbbreviations = map[string]string{
	"ecmascript":   "js",
	"javascript":   "js",
	"x-javascript": "js",
}

// AbbreviatedMimeType shortens "application/javascript; charset=utf-8" to "js"
// and "image/svg+xml" to "svg".
func AbbreviatedMimeType(mime string) string {
	if mime == "" {
		return ""
	}
	t := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	if i := strings.IndexByte(t, '/'); i >= 0 {
		t = t[i+1:]
	}
	t = strings.SplitN(t, "+", 2)[0]
	if abbr, ok := mimeAbbreviations[t]; ok {
		return abbr
	}
	return t
}

// FileNameWithQuery returns the last path segment of rawURL plus its query,
// "/" for an empty path.
func FileNameWithQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(u.EscapedPath())
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		name = "/"
	}
	if u.RawQuery != "" {
		name += "?" + u.RawQuery
	}
	return name
}

// HostPort returns the host of rawURL including an explicit port.
func HostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
