package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>Attention Is  All
 You Need: A Survey</title>
    <link href="http://arxiv.org/abs/2301.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="PDF_BASE/2301.00001v1.pdf" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>ABS_BASE/2301.00002v1</id>
    <title>Vector Databases</title>
  </entry>
</feed>`

func newArxivServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	downloads := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/query"):
			assert.Contains(t, r.URL.RawQuery, "search_query=all%3A")
			feed := strings.ReplaceAll(sampleFeed, "PDF_BASE", srv.URL+"/pdf")
			feed = strings.ReplaceAll(feed, "ABS_BASE", srv.URL+"/abs")
			_, _ = w.Write([]byte(feed))
		case strings.HasPrefix(r.URL.Path, "/pdf/"):
			downloads++
			_, _ = w.Write([]byte("%PDF-1.4 fake"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func newTestFetcher(t *testing.T, srv *httptest.Server, outDir string) *Fetcher {
	t.Helper()
	return NewFetcher(Config{
		Endpoint:          srv.URL + "/query",
		OutputDir:         outDir,
		RequestsPerSecond: 1000,
	})
}

func TestSearchParsesFeed(t *testing.T) {
	srv, _ := newArxivServer(t)
	f := newTestFetcher(t, srv, t.TempDir())

	papers, err := f.Search(context.Background(), "attention", 10)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Equal(t, "Attention Is All You Need: A Survey", papers[0].Title)
	assert.Contains(t, papers[0].PDFLink, "/pdf/2301.00001v1.pdf")

	// No explicit pdf link: rewritten from the abstract URL.
	assert.True(t, strings.HasSuffix(papers[1].PDFLink, "/pdf/2301.00002v1"))
}

func TestFetchDownloadsAndSkipsExisting(t *testing.T) {
	srv, downloads := newArxivServer(t)
	dir := t.TempDir()
	f := newTestFetcher(t, srv, dir)

	results, err := f.Fetch(context.Background(), "attention", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.False(t, res.Skipped)
		assert.Empty(t, res.ErrorMsg)
		assert.FileExists(t, res.Path)
	}
	assert.Equal(t, "Attention_Is_All_You_Need_A_Survey.pdf", filepath.Base(results[0].Path))
	assert.Equal(t, 2, *downloads)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	again, err := f.Fetch(context.Background(), "attention", 10)
	require.NoError(t, err)
	assert.True(t, again[0].Skipped)
	assert.True(t, again[1].Skipped)
	assert.Equal(t, 2, *downloads, "existing files must not be re-downloaded")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Attention Is All You Need", "Attention_Is_All_You_Need"},
		{"graphs: a (brief) survey!", "graphs_a_brief_survey"},
		{"already_safe-name", "already_safe-name"},
		{"///", "untitled"},
		{strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(Config{Endpoint: srv.URL, OutputDir: t.TempDir(), RequestsPerSecond: 1000})
	_, err := f.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
