package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"dealtrack/models"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxBodySize = 4 << 20 // 4MB page cap

// Fetcher retrieves raw page content, over plain HTTP or a headless browser
// depending on the scraper's fetch mode. The browser launches lazily on first
// use and is shared for the process lifetime.
type Fetcher struct {
	client *http.Client

	browserOnce sync.Once
	browser     *rod.Browser
	launchErr   error
}

// NewFetcher creates a fetcher with a sane HTTP timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns the page content for a URL in the given fetch mode.
func (f *Fetcher) Fetch(ctx context.Context, url, mode string) (string, error) {
	if mode == models.FetchModeBrowser {
		return f.fetchBrowser(url)
	}
	return f.fetchHTTP(ctx, url)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ValidationError{Msg: fmt.Sprintf("bad URL %q: %v", url, err)}
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("fetch failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("read failed: %v", err), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &TransientError{Msg: "unexpected status " + resp.Status, StatusCode: resp.StatusCode}
	}
	return string(body), nil
}

func (f *Fetcher) fetchBrowser(url string) (string, error) {
	f.browserOnce.Do(f.launchBrowser)
	if f.launchErr != nil {
		return "", &ConfigurationError{Msg: fmt.Sprintf("browser unavailable: %v", f.launchErr)}
	}

	page, err := f.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("failed to open page: %v", err), Err: err}
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("page load failed: %v", err), Err: err}
	}
	// Let client-side price widgets settle
	page.WaitRequestIdle(2*time.Second, nil, nil, nil)()

	html, err := page.HTML()
	if err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("failed to read page HTML: %v", err), Err: err}
	}
	return html, nil
}

// launchBrowser configures the launcher: system Chromium in Docker,
// auto-detect locally. Mirrors the deployment layout of the scrape workers.
func (f *Fetcher) launchBrowser() {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)

	if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
		log.Printf("Using system Chromium in Docker environment")
	} else {
		log.Printf("Using auto-detected Chromium (local environment)")
	}

	url, err := l.Launch()
	if err != nil {
		f.launchErr = err
		return
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		f.launchErr = err
		return
	}
	f.browser = browser
	log.Printf("Using browser at: %s", url)
}

// Close shuts the shared browser down if one was launched.
func (f *Fetcher) Close() {
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			log.Printf("Failed to close browser: %v", err)
		}
	}
}
