package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		mime, url string
		xhr       bool
		want      Category
	}{
		{"text/html", "https://a/", false, CategoryHTML},
		{"text/css", "https://a/s.css", false, CategoryCSS},
		{"application/x-javascript", "https://a/s", false, CategoryJS},
		{"text/ecmascript", "https://a/s", false, CategoryJS},
		{"", "https://a/f.woff2", false, CategoryFonts},
		{"application/font-woff", "https://a/f", false, CategoryFonts},
		{"image/svg+xml", "https://a/i.svg", false, CategoryImages},
		{"video/webm", "https://a/v", false, CategoryMedia},
		{"application/x-shockwave-flash", "https://a/x", false, CategoryFlash},
		{"", "https://a/movie.flv", false, CategoryFlash},
		{"application/json", "https://a/api", true, CategoryXHR},
		{"", "https://a/api", true, CategoryXHR},
		{"text/html", "https://a/frag", true, CategoryHTML},
		{"application/json", "https://a/api", false, CategoryOther},
		{"", "", false, CategoryOther},
	}
	for _, tc := range cases {
		got, set := Classify(tc.mime, tc.url, tc.xhr)
		assert.Equal(t, tc.want, got, "%q %q xhr=%v", tc.mime, tc.url, tc.xhr)
		assert.True(t, set.Has(got))
		assert.Equal(t, got == CategoryOther, set.Has(CategoryOther))
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, ok := ParseCategory(c.String())
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseCategory("all")
	assert.False(t, ok)
}

func TestAbbreviatedMimeType(t *testing.T) {
	assert.Equal(t, "js", AbbreviatedMimeType("application/javascript; charset=utf-8"))
	assert.Equal(t, "js", AbbreviatedMimeType("application/x-javascript"))
	assert.Equal(t, "svg", AbbreviatedMimeType("image/svg+xml"))
	assert.Equal(t, "html", AbbreviatedMimeType("text/html"))
	assert.Equal(t, "", AbbreviatedMimeType(""))
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "app.js?v=2", FileNameWithQuery("https://cdn.example.com/static/app.js?v=2"))
	assert.Equal(t, "/", FileNameWithQuery("https://example.com"))
	assert.Equal(t, "/", FileNameWithQuery("https://example.com/dir/"))
	assert.Equal(t, "example.com:8443", HostPort("https://example.com:8443/x"))
	assert.Equal(t, "example.com", HostPort("http://example.com/x"))
}
