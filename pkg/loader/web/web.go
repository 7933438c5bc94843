package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/loader"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultRobotsTimeout = 5 * time.Second
	DefaultMaxBytes      = 5 * 1024 * 1024
	maxRobotsBytes       = 512 * 1024
)

// WebFetcher downloads pages for ingestion and extracts their readable text.
// Requests to one host are rate limited, and concurrent fetches of the same
// URL share one request.
type WebFetcher struct {
	client        *http.Client
	robotsTimeout time.Duration
	maxBytes      int64
	userAgent     string
	rps           float64

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	group      singleflight.Group
}

var _ loader.Fetcher = (*WebFetcher)(nil)

// NewWebFetcherParams configures a WebFetcher. Zero values select defaults;
// RequestsPerSecond <= 0 disables rate limiting.
type NewWebFetcherParams struct {
	Timeout           time.Duration
	RobotsTimeout     time.Duration
	MaxBytes          int64
	RequestsPerSecond float64
	UserAgent         string
	Client            *http.Client
}

func NewWebFetcher(params NewWebFetcherParams) *WebFetcher {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	robotsTimeout := params.RobotsTimeout
	if robotsTimeout <= 0 {
		robotsTimeout = DefaultRobotsTimeout
	}
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	// Copy so the caller's client keeps its own timeout.
	client := &http.Client{}
	if params.Client != nil {
		c := *params.Client
		client = &c
	}
	client.Timeout = timeout
	ua := params.UserAgent
	if ua == "" {
		ua = "kgraph/1.0"
	}

	return &WebFetcher{
		client:        client,
		robotsTimeout: robotsTimeout,
		maxBytes:      maxBytes,
		userAgent:     ua,
		rps:           params.RequestsPerSecond,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Fetch validates the URL, honors the robots.txt exclusion heuristic, and
// downloads at most MaxBytes.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (loader.FetchResult, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return loader.FetchResult{}, fmt.Errorf("%w: invalid url %q", common.ErrUnsupportedSource, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return loader.FetchResult{}, fmt.Errorf("%w: only HTTP/HTTPS URLs are supported", common.ErrUnsupportedSource)
	}
	if u.Host == "" {
		return loader.FetchResult{}, fmt.Errorf("%w: url %q has no host", common.ErrUnsupportedSource, rawURL)
	}

	res, err, _ := f.group.Do(u.String(), func() (any, error) {
		return f.fetch(ctx, u)
	})
	if err != nil {
		return loader.FetchResult{}, err
	}
	return res.(loader.FetchResult), nil
}

func (f *WebFetcher) fetch(ctx context.Context, u *url.URL) (loader.FetchResult, error) {
	if f.disallowedByRobots(ctx, u) {
		return loader.FetchResult{}, fmt.Errorf("%w: url disallowed by robots.txt", common.ErrFetch)
	}
	if err := f.wait(ctx, u.Host); err != nil {
		return loader.FetchResult{}, fmt.Errorf("%w: %w", common.ErrFetch, err)
	}

	body, contentType, err := f.get(ctx, u.String(), f.maxBytes)
	if err != nil {
		return loader.FetchResult{}, err
	}

	text, err := extractText(body, contentType, u)
	if err != nil {
		return loader.FetchResult{}, err
	}

	return loader.FetchResult{
		URL:         u.String(),
		ContentType: contentType,
		Body:        body,
		Text:        text,
	}, nil
}

var errTooLarge = errors.New("response too large")

func (f *WebFetcher) get(ctx context.Context, target string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to create request: %w", common.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to fetch url: %w", common.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned status %d", common.ErrFetch, target, resp.StatusCode)
	}
	if resp.ContentLength > limit {
		return nil, "", fmt.Errorf("%w: %w: %d bytes exceeds limit of %d", common.ErrFetch, errTooLarge, resp.ContentLength, limit)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read body: %w", common.ErrFetch, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("%w: %w: body exceeds limit of %d bytes", common.ErrFetch, errTooLarge, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// disallowedByRobots applies a deliberately narrow rule: a site is skipped
// when its robots.txt mentions both "user-agent: *" and "disallow: /".
// Failing to read robots.txt never blocks a fetch.
func (f *WebFetcher) disallowedByRobots(ctx context.Context, u *url.URL) bool {
	rctx, cancel := context.WithTimeout(ctx, f.robotsTimeout)
	defer cancel()

	robots := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	body, _, err := f.get(rctx, robots.String(), maxRobotsBytes)
	if err != nil {
		logger.Debug("[Fetch] robots.txt unavailable", "host", u.Host, "err", err)
		return false
	}
	content := strings.ToLower(string(body))
	return strings.Contains(content, "user-agent: *") && strings.Contains(content, "disallow: /")
}

func (f *WebFetcher) wait(ctx context.Context, host string) error {
	if f.rps <= 0 {
		return nil
	}
	f.limitersMu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.rps), 1)
		f.limiters[host] = lim
	}
	f.limitersMu.Unlock()
	return lim.Wait(ctx)
}

func extractText(body []byte, contentType string, u *url.URL) (string, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		article, err := readability.FromReader(bytes.NewReader(body), u)
		if err != nil {
			return "", fmt.Errorf("%w: failed to parse html: %w", common.ErrExtractionEmpty, err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return "", fmt.Errorf("%w: failed to render article text: %w", common.ErrExtractionEmpty, err)
		}
		return builder.String(), nil
	case ct == "",
		strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "xml"):
		return string(body), nil
	default:
		return "", fmt.Errorf("%w: content type %q", common.ErrUnsupportedSource, contentType)
	}
}
