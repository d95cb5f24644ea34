package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jonathan/venture-planner/internal/fetch"
	"github.com/jonathan/venture-planner/internal/llm"
)

var (
	// ErrHTTPRequestFailed is returned when the page cannot be fetched
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when no text can be pulled from the page
	ErrContentExtractionFailed = errors.New("content extraction failed")
	// ErrNoContent is returned when a source yields nothing after cleaning
	ErrNoContent = errors.New("source has no usable text")
)

// Ingester turns discovery source URLs into clean context text.
type Ingester struct {
	// Client summarizes page text into market signals when set.
	Client llm.Client
	// UseBrowser re-renders thin pages with headless Chrome.
	UseBrowser bool
	Verbose    bool
	Options    *fetch.Options
	Render     fetch.RenderOptions
}

// NewIngester returns an Ingester with default render options.
func NewIngester(client llm.Client) *Ingester {
	return &Ingester{Client: client, Render: fetch.DefaultRenderOptions()}
}

func (in *Ingester) logf(format string, args ...any) {
	if in.Verbose {
		log.Printf("[VERBOSE] "+format, args...)
	}
}

// FromURL fetches urlStr and returns cleaned text with metadata. When a
// client is configured the text is replaced by a market-signal summary;
// extraction failures fall back to the cleaned page text.
func (in *Ingester) FromURL(ctx context.Context, urlStr string) (string, *Metadata, error) {
	in.logf("URL: %s", urlStr)

	result, err := fetch.URL(ctx, urlStr, in.Options)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}
	in.logf("Fetched HTML: %d bytes", len(result.HTML))

	content := fetch.MarketPageSelectors()
	noise := fetch.NoiseSelectors()

	text, err := fetch.ExtractMainText(result.HTML, content, noise...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	in.logf("Extracted text: %d chars", len(text))

	rendered := false
	if in.UseBrowser && fetch.ShouldUseBrowser(text) {
		in.logf("Content too short (%d chars < %d), rendering with browser", len(text), fetch.MinContentLength)
		opts := in.Render
		opts.Verbose = in.Verbose
		html, renderErr := fetch.Render(ctx, urlStr, opts)
		if renderErr != nil {
			in.logf("Browser rendering failed: %v, using HTTP content", renderErr)
		} else if browserText, extractErr := fetch.ExtractMainText(html, content, noise...); extractErr != nil {
			in.logf("Browser content extraction failed: %v", extractErr)
		} else {
			text = browserText
			rendered = true
		}
	}

	cleaned := Normalize(text)
	if cleaned == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrNoContent, urlStr)
	}
	cleaned, clipped := Clip(cleaned, MaxSourceChars)

	metadata := newMetadata(KindURL, urlStr, cleaned)
	metadata.Title = result.Title
	metadata.Truncated = result.Truncated || clipped
	metadata.Rendered = rendered
	in.logf("Source %s: %d chars, digest %.12s", metadata.Label(), metadata.Chars, metadata.Digest)

	if in.Client != nil {
		signals, err := ExtractSignals(ctx, in.Client, cleaned)
		switch {
		case err != nil:
			in.logf("Signal extraction failed: %v, using cleaned text", err)
		case signals.Empty():
			in.logf("Signal extraction found nothing, using cleaned text")
		default:
			metadata.Signals = signals
			cleaned = signals.Format()
		}
	}

	return cleaned, metadata, nil
}

// Text is FromURL without metadata. The page title, when known, leads the text
// so several sources stay distinguishable once joined into one context.
func (in *Ingester) Text(ctx context.Context, urlStr string) (string, error) {
	text, meta, err := in.FromURL(ctx, urlStr)
	if err != nil {
		return "", err
	}
	if meta.Title != "" {
		return "Title: " + meta.Title + "\n" + text, nil
	}
	return text, nil
}
