package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the minimum extracted text length to consider an HTTP fetch sufficient.
// Shorter pages are likely rendered by JavaScript.
const MinContentLength = 500

// ShouldUseBrowser reports whether the extracted text is too short to be the real page.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// RenderOptions configures headless rendering.
type RenderOptions struct {
	Timeout time.Duration
	// Settle is how long scripts get to render after the body is ready.
	Settle  time.Duration
	Verbose bool
}

// DefaultRenderOptions returns the options used by Render when none are given.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Timeout: 30 * time.Second, Settle: 3 * time.Second}
}

// Render loads a page in headless Chrome and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderOptions().Timeout
	}
	if opts.Verbose {
		log.Printf("[BROWSER] Rendering %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(opts.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// cookie walls hide marketplace listings; a missing button is fine
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"], button[class*="consent"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	if opts.Verbose {
		log.Printf("[BROWSER] Rendered HTML: %d bytes", len(html))
	}
	return html, nil
}
