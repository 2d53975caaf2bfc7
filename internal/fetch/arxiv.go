// Package fetch downloads papers from the arXiv Atom API into a local
// corpus directory.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the arXiv query API.
	DefaultEndpoint = "http://export.arxiv.org/api/query"

	// maxFilenameLen bounds sanitized titles used as filenames.
	maxFilenameLen = 100
)

// unsafeChars collapses every run of filename-hostile characters.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

// Config configures the fetcher.
type Config struct {
	// Endpoint overrides the arXiv API URL (tests).
	Endpoint string

	// OutputDir receives the downloaded PDFs.
	OutputDir string

	// RequestsPerSecond throttles API and download traffic. arXiv asks
	// for no more than one request every three seconds; the default of
	// 1 rps stays on the polite side for small batches.
	RequestsPerSecond float64

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Paper is one arXiv search result.
type Paper struct {
	ID      string
	Title   string
	PDFLink string
}

// Result reports one fetch attempt.
type Result struct {
	Paper    Paper
	Path     string
	Skipped  bool
	ErrorMsg string
}

// Fetcher queries arXiv and downloads result PDFs.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
	outDir   string
}

// Atom wire types, trimmed to the fields we read.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID    string     `xml:"id"`
	Title string     `xml:"title"`
	Links []atomLink `xml:"link"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// NewFetcher creates a Fetcher writing into cfg.OutputDir.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		endpoint: cfg.Endpoint,
		outDir:   cfg.OutputDir,
	}
}

// Search queries arXiv for up to maxResults papers matching query.
func (f *Fetcher) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv query returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, Paper{
			ID:      entry.ID,
			Title:   strings.Join(strings.Fields(entry.Title), " "),
			PDFLink: pdfLink(entry),
		})
	}
	return papers, nil
}

// pdfLink finds the PDF link, falling back to rewriting the abstract
// URL the way the arXiv site structures them.
func pdfLink(entry atomEntry) string {
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	if strings.Contains(entry.ID, "/abs/") {
		return strings.Replace(entry.ID, "/abs/", "/pdf/", 1)
	}
	return ""
}

// Fetch searches and downloads up to maxResults papers. Papers whose
// target file already exists are skipped; download failures are
// recorded per paper and do not stop the batch.
func (f *Fetcher) Fetch(ctx context.Context, query string, maxResults int) ([]Result, error) {
	papers, err := f.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]Result, 0, len(papers))
	for _, paper := range papers {
		results = append(results, f.fetchOne(ctx, paper))
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, paper Paper) Result {
	res := Result{Paper: paper}
	log := slog.With(slog.String("title", paper.Title))

	if paper.PDFLink == "" {
		res.ErrorMsg = "entry has no pdf link"
		log.Warn("skipping paper without pdf link")
		return res
	}

	path := filepath.Join(f.outDir, SanitizeFilename(paper.Title)+".pdf")
	res.Path = path

	if _, err := os.Stat(path); err == nil {
		res.Skipped = true
		log.Debug("pdf already present", slog.String("path", path))
		return res
	}

	if err := f.limiter.Wait(ctx); err != nil {
		res.ErrorMsg = err.Error()
		return res
	}

	if err := f.download(ctx, paper.PDFLink, path); err != nil {
		res.ErrorMsg = err.Error()
		log.Error("download failed", slog.Any("error", err))
		return res
	}

	log.Info("downloaded paper", slog.String("path", path))
	return res
}

func (f *Fetcher) download(ctx context.Context, href, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.outDir, ".download-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// SanitizeFilename turns a paper title into a safe filename stem:
// hostile characters collapse to underscores and the result is capped
// at 100 characters.
func SanitizeFilename(title string) string {
	name := unsafeChars.ReplaceAllString(title, "_")
	name = strings.Trim(name, "_")
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if name == "" {
		name = "untitled"
	}
	return name
}
