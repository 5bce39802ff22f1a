package verifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

// PageResult is what a fetch returns: the final HTTP status and the page
// body text, lowercased for phrase matching.
type PageResult struct {
	Status int
	Text   string
}

// Fetcher loads a listing page. Implementations decide how: a real browser
// for platforms that render client-side, a plain HTTP client for the rest.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*PageResult, error)
}

// PlaywrightFetcher drives a headless browser. The browser is launched
// lazily on first fetch and reused across checks.
type PlaywrightFetcher struct {
	headless bool
	timeout  time.Duration

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewPlaywrightFetcher(headless bool, timeout time.Duration) *PlaywrightFetcher {
	return &PlaywrightFetcher{headless: headless, timeout: timeout}
}

func (f *PlaywrightFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, url string) (*PageResult, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	status := 0
	if resp != nil {
		status = resp.Status()
	}

	text, err := page.Locator("body").InnerText()
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	return &PageResult{Status: status, Text: strings.ToLower(text)}, nil
}

func (f *PlaywrightFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
		f.browser = nil
	}
	if f.pw != nil {
		f.pw.Stop()
		f.pw = nil
	}
	f.initialized = false
}

// HTTPFetcher is the browserless fallback: plain GET through the scraping
// client, body text extracted with goquery.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Delist redirects count as page state, not transport failure.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return &PageResult{Status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	return &PageResult{
		Status: resp.StatusCode,
		Text:   strings.ToLower(doc.Find("body").Text()),
	}, nil
}
