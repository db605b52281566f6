package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Loader retrieves the raw bytes behind a background URL.
type Loader interface {
	Load(ctx context.Context, rawURL string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, rawURL string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBytes     = 20 << 20
	DefaultUserAgent    = "emojiart/1.0"
)

// LoaderConfig configures the HTTP loader. Zero fields take the Default*
// values above.
type LoaderConfig struct {
	Timeout   time.Duration // per request
	MaxBytes  int64         // response cap
	UserAgent string
}

func (c *LoaderConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// HTTPLoader fetches http(s) URLs and reads file:// URLs from disk.
type HTTPLoader struct {
	client *http.Client
	config LoaderConfig
}

func NewHTTPLoader(cfg LoaderConfig) *HTTPLoader {
	cfg.defaults()
	return &HTTPLoader{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		config: cfg,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return l.get(ctx, u.String())
	case "file":
		return l.readFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

func (l *HTTPLoader) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, l.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (l *HTTPLoader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, l.config.MaxBytes))
}
