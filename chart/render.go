// Package chart rasterizes chart specs into PNG images for inline embedding.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWidth  = 1000
	DefaultHeight = 600

	minWidth    = 320
	minHeight   = 240
	titleHeight = 72.0
)

// DefaultPalette is cycled in order when a chart has more categories than colors.
var DefaultPalette = []string{
	"#2E86AB", "#A23B72", "#F18F01", "#C73E1D",
	"#6A994E", "#7B2CBF", "#3B1F2B", "#FFB703",
}

var (
	fontOnce    sync.Once
	regularFont *truetype.Font
	boldFont    *truetype.Font
	fontErr     error
)

func loadFonts() error {
	fontOnce.Do(func() {
		regularFont, fontErr = truetype.Parse(goregular.TTF)
		if fontErr != nil {
			return
		}
		boldFont, fontErr = truetype.Parse(gobold.TTF)
	})
	return fontErr
}

// Renderer draws specs at a fixed figure size.
type Renderer struct {
	width   int
	height  int
	palette []string
	workers int
}

type Option func(*Renderer)

// WithSize overrides the figure dimensions in pixels.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

func WithPalette(palette []string) Option {
	return func(r *Renderer) {
		if len(palette) > 0 {
			r.palette = palette
		}
	}
}

// WithWorkers bounds how many charts RenderAll draws at once.
func WithWorkers(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		width:   DefaultWidth,
		height:  DefaultHeight,
		palette: DefaultPalette,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the figure dimensions every rendered chart has.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Render draws one spec. It blocks for the duration of the rasterization.
func (r *Renderer) Render(spec Spec) (Rendered, error) {
	if r.width < minWidth || r.height < minHeight {
		return Rendered{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, r.width, r.height)
	}
	if err := spec.Validate(); err != nil {
		return Rendered{}, err
	}
	if err := loadFonts(); err != nil {
		return Rendered{}, fmt.Errorf("chart: load fonts: %w", err)
	}

	dc := gg.NewContext(r.width, r.height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	c := &canvas{
		dc:      dc,
		w:       float64(r.width),
		h:       float64(r.height),
		palette: r.palette,
		title:   truetype.NewFace(boldFont, &truetype.Options{Size: 22}),
		label:   truetype.NewFace(regularFont, &truetype.Options{Size: 14}),
		small:   truetype.NewFace(regularFont, &truetype.Options{Size: 12}),
		strong:  truetype.NewFace(boldFont, &truetype.Options{Size: 14}),
	}
	c.drawTitle(spec.Title)

	switch spec.Kind {
	case KindPie:
		c.pie(spec)
	case KindBar:
		c.bar(spec)
	case KindTimeline:
		c.timeline(spec)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return Rendered{}, fmt.Errorf("chart: encode png: %w", err)
	}
	return Rendered{Spec: spec, PNG: buf.Bytes(), Width: r.width, Height: r.height}, nil
}

// RenderAll draws specs on a bounded worker pool, keeping input order.
// The first failure cancels the remaining work and is returned.
func (r *Renderer) RenderAll(ctx context.Context, specs []Spec) ([]Rendered, error) {
	out := make([]Rendered, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rendered, err := r.Render(spec)
			if err != nil {
				return fmt.Errorf("render %q: %w", spec.Title, err)
			}
			out[i] = rendered
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Outcome is the result of rendering one spec with RenderEach.
type Outcome struct {
	Rendered Rendered
	Err      error
}

// RenderEach draws every spec regardless of individual failures.
func (r *Renderer) RenderEach(ctx context.Context, specs []Spec) []Outcome {
	out := make([]Outcome, len(specs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = Outcome{Err: err}
				return nil
			}
			rendered, err := r.Render(spec)
			out[i] = Outcome{Rendered: rendered, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// canvas carries per-render drawing state. Font faces keep glyph caches
// and are not shared between renders.
type canvas struct {
	dc      *gg.Context
	w, h    float64
	palette []string
	title   font.Face
	label   font.Face
	small   font.Face
	strong  font.Face
}

func (c *canvas) color(i int) string {
	return c.palette[i%len(c.palette)]
}

func (c *canvas) drawTitle(title string) {
	c.dc.SetFontFace(c.title)
	c.dc.SetRGB(0.13, 0.13, 0.13)
	c.dc.DrawStringAnchored(truncate(title, 70), c.w/2, titleHeight/2, 0.5, 0.5)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
