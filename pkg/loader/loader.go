package loader

import (
	"context"
)

// SourceType distinguishes where ingested content came from.
type SourceType string

const (
	SourceTypeFile SourceType = "file"
	SourceTypeURL  SourceType = "url"
)

// FetchResult is a fetched web page. Body holds the raw response bytes,
// which count against the data budget; Text is the extracted readable text.
type FetchResult struct {
	URL         string
	ContentType string
	Title       string
	Body        []byte
	Text        string
}

// Fetcher retrieves a URL for ingestion. Implementations reject unsupported
// schemes with common.ErrUnsupportedSource and every other failure (timeout,
// non-2xx status, oversize body, robots exclusion) with common.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// FileLoader reads a local text file for ingestion.
type FileLoader interface {
	Load(ctx context.Context, path string) (name string, content []byte, err error)
}
