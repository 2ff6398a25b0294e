package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"pawn-estimator/utils"
)

// BrowserConfig controls the headless browser used by rendered request shapes.
type BrowserConfig struct {
	ExecPath string
	// Settle is how long a page may run scripts before the DOM is read.
	Settle time.Duration
}

// BrowserFetcher renders pages in a shared headless Chrome. The browser is
// started lazily on the first rendered fetch; each fetch gets its own tab.
type BrowserFetcher struct {
	cfg    BrowserConfig
	logger *utils.Logger

	once        sync.Once
	startErr    error
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

// NewBrowserFetcher creates a fetcher; no process is launched until Fetch.
func NewBrowserFetcher(cfg BrowserConfig, logger *utils.Logger) *BrowserFetcher {
	if cfg.Settle <= 0 {
		cfg.Settle = 3 * time.Second
	}
	return &BrowserFetcher{cfg: cfg, logger: logger}
}

func (b *BrowserFetcher) start() error {
	b.once.Do(func() {
		chromeBin := b.cfg.ExecPath
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		if chromeBin == "" {
			b.startErr = errors.New("no chrome binary found")
			return
		}
		b.logger.Info("[browser] Using browser binary: %s", chromeBin)

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("blink-settings", "imagesEnabled=false"),
			chromedp.ExecPath(chromeBin),
		)

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		// Suppress chromedp log noise
		browserCtx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		if err := chromedp.Run(browserCtx); err != nil {
			cancelCtx()
			cancelAlloc()
			b.startErr = fmt.Errorf("start browser: %w", err)
			return
		}
		b.browserCtx, b.cancelAlloc, b.cancelCtx = browserCtx, cancelAlloc, cancelCtx
	})
	return b.startErr
}

// Fetch navigates a fresh tab to req.URL and returns the rendered DOM.
func (b *BrowserFetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	// The tab lives under the browser context, so the caller's deadline is
	// carried over explicitly.
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	headers := network.Headers{}
	for k, v := range browserHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	setup := []chromedp.Action{network.Enable(), network.SetExtraHTTPHeaders(headers)}
	if req.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(req.UserAgent))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		return nil, fmt.Errorf("prepare tab: %w", err)
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(req.URL))
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(b.cfg.Settle),
		// Scroll to load lazy result tiles
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}

	status := 200
	if resp != nil {
		status = int(resp.Status)
	}
	return &Page{URL: req.URL, StatusCode: status, Body: []byte(html)}, nil
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() {
	if b.cancelCtx != nil {
		b.cancelCtx()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
