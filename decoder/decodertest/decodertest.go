// Package decodertest provides an in-memory decoder backend with scriptable
// latency and failure injection. Viewer tests use it to drive render
// lifecycles deterministically without a real document format.
package decodertest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/yinliguo/pdf-viewer/decoder"
)

// PageSpec scripts the behavior of one fake page.
type PageSpec struct {
	Width, Height float64
	Fill          color.Color
	Text          []decoder.TextItem

	RenderErr error // returned by Render after any gate wait
	TextErr   error // returned by StreamText

	// Gate, when non-nil, blocks Render until the channel is closed or
	// receives. Lets tests hold a render in flight.
	Gate chan struct{}
}

// Doc is a fake decoder.Document.
type Doc struct {
	mu     sync.Mutex
	specs  []*PageSpec
	closed bool

	renderCalls []int
	inFlight    []int
	maxInFlight []int
	released    []int
}

// New builds a fake document from page specs. Pages default to 600x800.
func New(specs ...*PageSpec) *Doc {
	for _, s := range specs {
		if s.Width == 0 {
			s.Width = 600
		}
		if s.Height == 0 {
			s.Height = 800
		}
		if s.Fill == nil {
			s.Fill = color.White
		}
	}
	n := len(specs)
	return &Doc{
		specs:       specs,
		renderCalls: make([]int, n),
		inFlight:    make([]int, n),
		maxInFlight: make([]int, n),
		released:    make([]int, n),
	}
}

// NewUniform builds a fake document with count identical pages.
func NewUniform(count int, w, h float64) *Doc {
	specs := make([]*PageSpec, count)
	for i := range specs {
		specs[i] = &PageSpec{Width: w, Height: h}
	}
	return New(specs...)
}

// Opener returns a decoder open function bound to this document, for wiring
// into viewer configuration.
func (d *Doc) Opener() func(context.Context, decoder.Source) (decoder.Document, error) {
	return func(context.Context, decoder.Source) (decoder.Document, error) {
		return d, nil
	}
}

func (d *Doc) PageCount() int { return len(d.specs) }

func (d *Doc) Page(_ context.Context, n int) (decoder.Page, error) {
	if n < 1 || n > len(d.specs) {
		return nil, fmt.Errorf("%w: %d", decoder.ErrPageOutOfRange, n)
	}
	return &fakePage{doc: d, idx: n - 1, spec: d.specs[n-1]}, nil
}

func (d *Doc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *Doc) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// RenderCalls returns how many times page n (1-based) was asked to render.
func (d *Doc) RenderCalls(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renderCalls[n-1]
}

// MaxConcurrentRenders returns the peak number of simultaneous renders seen
// for page n.
func (d *Doc) MaxConcurrentRenders(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight[n-1]
}

// Released returns how many times page n's handle was released.
func (d *Doc) Released(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released[n-1]
}

type fakePage struct {
	doc  *Doc
	idx  int
	spec *PageSpec
}

func (p *fakePage) Viewport(params decoder.ViewportParams) decoder.Viewport {
	scale := params.Scale
	if scale == 0 {
		scale = 1
	}
	w, h := decoder.RotatedSize(p.spec.Width, p.spec.Height, params.Rotation)
	return decoder.Viewport{
		Scale:    scale,
		Rotation: params.Rotation,
		Width:    w * scale,
		Height:   h * scale,
	}
}

func (p *fakePage) Render(ctx context.Context, dst draw.Image, vp decoder.Viewport) error {
	d := p.doc
	d.mu.Lock()
	d.renderCalls[p.idx]++
	d.inFlight[p.idx]++
	if d.inFlight[p.idx] > d.maxInFlight[p.idx] {
		d.maxInFlight[p.idx] = d.inFlight[p.idx]
	}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight[p.idx]--
		d.mu.Unlock()
	}()

	if p.spec.Gate != nil {
		select {
		case <-p.spec.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.spec.RenderErr != nil {
		return p.spec.RenderErr
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(p.spec.Fill), dst.Bounds().Min, draw.Src)
	return nil
}

func (p *fakePage) StreamText(ctx context.Context) (<-chan decoder.TextItem, error) {
	if p.spec.TextErr != nil {
		return nil, p.spec.TextErr
	}
	return decoder.StreamItems(ctx, p.spec.Text), nil
}

func (p *fakePage) Release() {
	p.doc.mu.Lock()
	p.doc.released[p.idx]++
	p.doc.mu.Unlock()
}
