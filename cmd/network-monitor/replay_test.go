package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHAR = `{"log":{"version":"1.2","creator":{"name":"test","version":"1"},"entries":[
 {"startedDateTime":"2024-01-01T00:00:00.000Z","time":120,
  "request":{"method":"GET","url":"https://example.com/site.css","headers":[]},
  "response":{"status":200,"statusText":"OK","headers":[],"content":{"size":2048,"mimeType":"text/css"},"bodySize":900},
  "timings":{"send":0,"wait":100,"receive":20}},
 {"startedDateTime":"2024-01-01T00:00:00.050Z","time":30,"_resourceType":"xhr",
  "request":{"method":"POST","url":"https://api.example.com/v1/items?page=2","headers":[]},
  "response":{"status":201,"statusText":"Created","headers":[],"content":{"size":10,"mimeType":"application/json"},"bodySize":10},
  "timings":{"send":0,"wait":30,"receive":0}}
]}}`

func writeHAR(t *testing.T, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := []byte(sampleHAR)
	if gz {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = buf.Bytes()
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReplayPrintsTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, replay(&out, writeHAR(t, "s.har", false), replayOptions{Sort: "waterfall"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "site.css")
	assert.Contains(t, lines[1], "2.0 KB")
	assert.Contains(t, lines[2], "items?page=2")
	assert.Contains(t, lines[2], "+50ms")
	assert.Equal(t, "2 of 2 requests, 910 B transferred, finished in 120ms", lines[3])
}

func TestReplayFilterAndSort(t *testing.T) {
	var out bytes.Buffer
	err := replay(&out, writeHAR(t, "s.har.gz", true), replayOptions{Filters: []string{"xhr"}, Sort: "status", Desc: true})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "site.css")
	assert.Contains(t, out.String(), "1 of 2 requests")
}

func TestReplayRejectsBadInput(t *testing.T) {
	path := writeHAR(t, "s.har", false)
	assert.Error(t, replay(&bytes.Buffer{}, path, replayOptions{Filters: []string{"nope"}}))
	assert.Error(t, replay(&bytes.Buffer{}, path, replayOptions{Sort: "nope"}))
	assert.Error(t, replay(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.har"), replayOptions{}))
}
