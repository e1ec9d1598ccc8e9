// Package retriever drives a headless-browser session against one theater
// target and returns the rendered page content. It distinguishes transient
// failures (navigation timeout, retried with backoff) from deterministic ones
// (layout changed, theater gone from the source) and treats a rendered page
// with no showings as a success, not an error. A Retriever holds no mutable
// per-job state, so one instance is shared safely across concurrent jobs.
package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrNavigationTimeout marks a transient retrieval failure; the retriever
// retries these with backoff before giving up.
var ErrNavigationTimeout = errors.New("navigation timeout")

// ErrLayoutChanged marks a deterministic failure: the page loaded but the
// expected content element was missing, which usually means the source
// changed its markup. Not retried.
var ErrLayoutChanged = errors.New("page layout changed")

// ErrTheaterNotFound marks a deterministic failure: the source no longer
// knows the theater (HTTP 404 or equivalent). Not retried.
var ErrTheaterNotFound = errors.New("theater not found in source")

// NavConfig is the decoded form of a target's nav_config JSON.
type NavConfig struct {
	ShowtimesPath    string `json:"showtimes_path"`     // path under the target's base URL
	DateParam        string `json:"date_param"`         // query parameter carrying the play date
	ContentSelector  string `json:"content_selector"`   // element that must exist on a well-formed page
	LoadMoreSelector string `json:"load_more_selector"` // optional "load more" control
	MaxLoadMore      int    `json:"max_load_more"`      // click budget for the control (default 3)
}

// PageContent is the rendered result for one theater/date. Fragments holds
// one HTML snapshot per interaction step; sources without "load more"
// produce exactly one. An empty Fragments slice means the theater had no
// showings that day.
type PageContent struct {
	Fragments   []string
	RetrievedAt time.Time
}

// Retriever fetches rendered pages either through a shared rod browser or,
// when an HTTP client is injected, through plain GETs (static sources and
// tests).
type Retriever struct {
	browser      *rod.Browser
	client       *http.Client
	navTimeout   time.Duration
	retryMax     int
	retryBackoff time.Duration
}

// Option applies configuration to a Retriever.
type Option func(*Retriever)

// WithClient makes the retriever use direct HTTP instead of a headless
// browser (e.g. httptest.Server.Client() in tests).
func WithClient(c *http.Client) Option {
	return func(r *Retriever) {
		if c != nil {
			r.client = c
			r.browser = nil
		}
	}
}

// WithBrowser injects a connected rod browser shared across jobs.
func WithBrowser(b *rod.Browser) Option {
	return func(r *Retriever) {
		if b != nil {
			r.browser = b
			r.client = nil
		}
	}
}

// New constructs a Retriever from the scrape config. In browser mode the
// caller is expected to pass WithBrowser with an already-connected browser;
// otherwise the retriever falls back to plain HTTP.
func New(cfg config.ScrapeConfig, opts ...Option) *Retriever {
	r := &Retriever{
		navTimeout:   cfg.NavTimeout,
		retryMax:     cfg.RetryMax,
		retryBackoff: cfg.RetryBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.browser == nil && r.client == nil {
		r.client = &http.Client{Timeout: cfg.NavTimeout}
	}
	return r
}

// Connect launches (or attaches to) a browser for browser-mode retrieval.
// With a BrowserURL it attaches to a remote devtools endpoint; without one
// rod launches a local headless Chromium.
func Connect(cfg config.ScrapeConfig) (*rod.Browser, error) {
	b := rod.New()
	if cfg.BrowserURL != "" {
		b = b.ControlURL(cfg.BrowserURL)
	}
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser connect: %w", err)
	}
	return b, nil
}

// Retrieve fetches the rendered showtime listing for one theater and play
// date. Transient failures are retried up to the configured budget with
// doubling backoff; deterministic failures and context cancellation return
// immediately.
func (r *Retriever) Retrieve(ctx context.Context, target model.TheaterTarget, playDate string) (*PageContent, error) {
	nav, err := decodeNav(target.NavConfig)
	if err != nil {
		return nil, fmt.Errorf("nav config for %q: %w", target.Name, err)
	}
	pageURL, err := buildURL(target.BaseURL, nav, playDate)
	if err != nil {
		return nil, fmt.Errorf("nav url for %q: %w", target.Name, err)
	}

	backoff := r.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= r.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var content *PageContent
		if r.client != nil {
			content, err = r.fetchHTTP(ctx, pageURL)
		} else {
			content, err = r.fetchBrowser(ctx, pageURL, nav)
		}
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, ErrNavigationTimeout) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeNav(raw string) (NavConfig, error) {
	var nav NavConfig
	if strings.TrimSpace(raw) == "" {
		return nav, nil
	}
	if err := json.Unmarshal([]byte(raw), &nav); err != nil {
		return nav, err
	}
	return nav, nil
}

func buildURL(base string, nav NavConfig, playDate string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	if nav.ShowtimesPath != "" {
		u = u.JoinPath(nav.ShowtimesPath)
	}
	if nav.DateParam != "" && playDate != "" {
		q := u.Query()
		q.Set(nav.DateParam, playDate)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// fetchHTTP retrieves the page with a plain GET. Used for static sources and
// injected test servers; no JavaScript is executed.
func (r *Retriever) fetchHTTP(ctx context.Context, pageURL string) (*PageContent, error) {
	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(navCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if navCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrTheaterNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http status %d", ErrNavigationTimeout, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	html := string(body)
	content := &PageContent{RetrievedAt: time.Now().UTC()}
	if strings.TrimSpace(html) != "" {
		content.Fragments = []string{html}
	}
	return content, nil
}

// fetchBrowser drives the headless browser: navigate, wait for the content
// element, work the "load more" control, snapshot the HTML after each step.
func (r *Retriever) fetchBrowser(ctx context.Context, pageURL string, nav NavConfig) (*PageContent, error) {
	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()
	page = page.Context(navCtx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, classifyNavErr(navCtx, ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, classifyNavErr(navCtx, ctx, err)
	}

	if nav.ContentSelector != "" {
		if _, err := page.Element(nav.ContentSelector); err != nil {
			if navCtx.Err() != nil && ctx.Err() == nil {
				// Page loaded but the expected element never appeared within
				// the navigation budget: treat as a layout change, not a
				// transient timeout, so we do not hammer a broken source.
				return nil, ErrLayoutChanged
			}
			return nil, fmt.Errorf("%w: %v", ErrLayoutChanged, err)
		}
	}

	content := &PageContent{RetrievedAt: time.Now().UTC()}
	html, err := page.HTML()
	if err != nil {
		return nil, classifyNavErr(navCtx, ctx, err)
	}
	if strings.TrimSpace(html) != "" {
		content.Fragments = append(content.Fragments, html)
	}

	if nav.LoadMoreSelector != "" {
		clicks := nav.MaxLoadMore
		if clicks <= 0 {
			clicks = 3
		}
		for i := 0; i < clicks; i++ {
			el, err := page.Timeout(2 * time.Second).Element(nav.LoadMoreSelector)
			if err != nil {
				break // control gone: everything is loaded
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				break
			}
			if err := page.WaitStable(time.Second); err != nil {
				break
			}
			html, err := page.HTML()
			if err != nil {
				return nil, classifyNavErr(navCtx, ctx, err)
			}
			content.Fragments = append(content.Fragments, html)
		}
	}
	return content, nil
}

// classifyNavErr maps browser errors: deadline on the navigation context (but
// not the job context) is a transient timeout; anything else passes through.
func classifyNavErr(navCtx, jobCtx context.Context, err error) error {
	if navCtx.Err() != nil && jobCtx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}
	if jobCtx.Err() != nil {
		return jobCtx.Err()
	}
	return err
}
