package extract

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/logger"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	acceptHTML      = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON      = "application/json"
	acceptLanguage  = "en-US,en;q=0.9"
	contentEncoding = "gzip"

	defaultHTTPTimeout = 15 * time.Second
	maxBodyBytes       = 5 << 20
)

// Fetcher issues GET requests with browser-like headers.
type Fetcher struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewFetcher(timeout time.Duration, userAgent string, log *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Fetcher{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		logger:     logger.OrNop(log),
	}
}

// GetHTML returns the page body.
func (f *Fetcher) GetHTML(ctx context.Context, rawURL string) ([]byte, error) {
	return f.get(ctx, rawURL, acceptHTML)
}

// GetJSON decodes a JSON response into target.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, target any) error {
	data, err := f.get(ctx, rawURL, acceptJSON)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode json from %s: %w", rawURL, err)
	}

	return nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	f.setHeaders(req, accept)

	f.logger.Debug("make request", zap.String("url", rawURL))
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept-Encoding", contentEncoding)
}
