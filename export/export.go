// Package export writes finished documents out as HTML or PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"auto_dialogue_document/formatter"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"

	defaultTimeout = 30 * time.Second
)

var (
	ErrPDFDependencyMissing = errors.New("pdf export requires chrome or chromium")
	ErrUnsupportedFormat    = errors.New("unsupported export format")
)

// browsers are tried in order when no executable is configured.
var browsers = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "headless-shell"}

// Result is an exported file.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

type Exporter struct {
	execPath string
	timeout  time.Duration
	lookPath func(string) (string, error)
}

type Option func(*Exporter)

// WithExecPath pins the browser binary instead of searching PATH.
func WithExecPath(path string) Option {
	return func(e *Exporter) { e.execPath = path }
}

func WithTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(opts ...Option) *Exporter {
	e := &Exporter{timeout: defaultTimeout, lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export renders doc in the requested format.
func (e *Exporter) Export(ctx context.Context, doc formatter.Document, format Format) (*Result, error) {
	switch format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(doc.HTML),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := e.PDF(ctx, doc.HTML)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: sanitizeFilename(doc.Title) + ".pdf",
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (e *Exporter) browser() (string, error) {
	if e.execPath != "" {
		if _, err := e.lookPath(e.execPath); err != nil {
			return "", fmt.Errorf("%w: %s not found", ErrPDFDependencyMissing, e.execPath)
		}
		return e.execPath, nil
	}
	for _, name := range browsers {
		if path, err := e.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s on PATH", ErrPDFDependencyMissing, strings.Join(browsers, ", "))
}

// PDF prints an HTML page with headless Chrome. Charts are data URIs, so
// the page loads without network access.
func (e *Exporter) PDF(ctx context.Context, html string) ([]byte, error) {
	path, err := e.browser()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	// url.QueryEscape would turn spaces into '+', which data URLs keep literally.
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.6).
				WithMarginLeft(0.6).
				WithMarginRight(0.6).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}
	return pdf, nil
}

func percentEncodeForDataURL(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
		if b.Len() >= 50 {
			break
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
