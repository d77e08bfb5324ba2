package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
)

const (
	DefaultHeadlessMinChars = 200

	defaultRenderTimeout = 45 * time.Second
	defaultSettle        = 5 * time.Second
	readyStateTimeout    = 10 * time.Second
	recheckDelay         = 2 * time.Second
	// Body text growth above this ratio during the recheck means the page is still loading.
	growthRatio = 1.1

	bodyTextLength = `document.body ? document.body.innerText.length : 0`
)

// Renderer returns the HTML of a page after client side rendering.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// HeadlessStrategy renders the page in a browser and parses the resulting DOM.
type HeadlessStrategy struct {
	renderer Renderer
	parser   *Parser
	minChars int
}

func NewHeadlessStrategy(renderer Renderer, parser *Parser, minChars int) *HeadlessStrategy {
	if minChars <= 0 {
		minChars = DefaultHeadlessMinChars
	}
	return &HeadlessStrategy{renderer: renderer, parser: parser, minChars: minChars}
}

func (s *HeadlessStrategy) Method() domain.ExtractionMethod { return domain.MethodHeadless }

func (s *HeadlessStrategy) Attempt(ctx context.Context, ref domain.JobReference) (*Attempt, error) {
	html, err := s.renderer.Render(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	parsed, err := s.parser.Parse(ref.URL, strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	return &Attempt{
		Content:    contentFromParsed(parsed),
		Sufficient: utf8.RuneCountInString(parsed.Description) > s.minChars,
	}, nil
}

// ChromeRenderer drives a fresh headless Chrome per call. Nothing is pooled, so
// cookies and storage never leak between postings.
type ChromeRenderer struct {
	Timeout   time.Duration
	Settle    time.Duration
	ExecPath  string
	UserAgent string
	logger    *zap.Logger
}

func NewChromeRenderer(timeout, settle time.Duration, execPath, userAgent string, log *zap.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ChromeRenderer{
		Timeout:   timeout,
		Settle:    settle,
		ExecPath:  execPath,
		UserAgent: userAgent,
		logger:    logger.OrNop(log),
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(r.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var (
		ready         bool
		before, after int
	)

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.Poll(`document.readyState === "complete"`, &ready, chromedp.WithPollingTimeout(readyStateTimeout)),
		chromedp.Sleep(r.Settle),
		chromedp.Evaluate(bodyTextLength, &before),
		chromedp.Sleep(recheckDelay),
		chromedp.Evaluate(bodyTextLength, &after),
	)
	if err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}

	if float64(after) > float64(before)*growthRatio {
		r.logger.Debug("page still loading, waiting once more",
			zap.String(logger.FieldURL, rawURL),
			zap.Int("before", before),
			zap.Int("after", after),
		)
		if err := chromedp.Run(browserCtx, chromedp.Sleep(r.Settle)); err != nil {
			return "", fmt.Errorf("settle page: %w", err)
		}
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}

	return html, nil
}
