// Package canvasdoc is a decoder backend for synthetic vector documents.
// Pages are authored in-process as canvas scenes (filled paths and text
// lines) and rasterized on demand, which makes it the reference backend for
// exercising the full render and text-layer pipeline without parsing a
// document format.
package canvasdoc

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	stddraw "image/draw"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/yinliguo/pdf-viewer/decoder"
)

var (
	// ErrNoFont is returned by Text when no font family has been loaded.
	ErrNoFont = errors.New("canvasdoc: no font loaded")
	// ErrUnsupportedRotation is returned for non-zero viewport rotations.
	ErrUnsupportedRotation = errors.New("canvasdoc: rotation not supported")
)

// mmPerPt converts font sizes given in points to canvas millimeters.
const mmPerPt = 25.4 / 72.0

// Document is a vector document under construction or in use. Pages are
// appended with AddPage before the document is handed to a viewer; the
// viewer then treats it as a regular decoder.Document.
type Document struct {
	mu     sync.Mutex
	pages  []*pageSpec
	family *canvas.FontFamily
	closed bool
}

// New creates an empty vector document.
func New() *Document {
	return &Document{}
}

// LoadFont loads the first available of the named system fonts for text
// authoring. Text cannot be used before a font is loaded.
func (d *Document) LoadFont(names ...string) error {
	family := canvas.NewFontFamily("default")
	var lastErr error
	for _, name := range names {
		if err := family.LoadSystemFont(name, canvas.FontRegular); err != nil {
			lastErr = err
			continue
		}
		d.family = family
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("canvasdoc: no font names given")
	}
	return fmt.Errorf("canvasdoc: load font: %w", lastErr)
}

// AddPage appends a page of the given origin size (in viewport units,
// y-axis pointing down) and returns its builder.
func (d *Document) AddPage(w, h float64) *PageBuilder {
	spec := &pageSpec{doc: d, w: w, h: h, background: color.White}
	d.pages = append(d.pages, spec)
	return &PageBuilder{spec: spec}
}

func (d *Document) PageCount() int {
	return len(d.pages)
}

func (d *Document) Page(ctx context.Context, n int) (decoder.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("canvasdoc: document closed")
	}
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("%w: %d", decoder.ErrPageOutOfRange, n)
	}
	return &page{spec: d.pages[n-1]}, nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type pageSpec struct {
	doc        *Document
	w, h       float64
	background color.Color
	ops        []drawOp
	text       []decoder.TextItem
}

// PageBuilder authors one page. Coordinates are origin-page units with the
// y-axis pointing down, matching the viewer; the flip into canvas space
// happens at draw time.
type PageBuilder struct {
	spec *pageSpec
}

type drawOp interface {
	draw(ctx *canvas.Context, pageH float64)
}

type rectOp struct {
	x, y, w, h float64
	fill       color.Color
}

func (o rectOp) draw(ctx *canvas.Context, pageH float64) {
	ctx.SetFillColor(o.fill)
	ctx.DrawPath(o.x, pageH-o.y-o.h, canvas.Rectangle(o.w, o.h))
}

type textOp struct {
	x, y, sizePt float64
	str          string
	face         *canvas.FontFace
}

func (o textOp) draw(ctx *canvas.Context, pageH float64) {
	line := canvas.NewTextLine(o.face, o.str, canvas.Left)
	// y is the run's top edge; DrawText positions the baseline.
	ctx.DrawText(o.x, pageH-o.y-o.sizePt*mmPerPt, line)
}

// Background sets the page fill color. Defaults to white.
func (b *PageBuilder) Background(c color.Color) *PageBuilder {
	b.spec.background = c
	return b
}

// Rect fills an axis-aligned rectangle.
func (b *PageBuilder) Rect(x, y, w, h float64, fill color.Color) *PageBuilder {
	b.spec.ops = append(b.spec.ops, rectOp{x: x, y: y, w: w, h: h, fill: fill})
	return b
}

// Text places a left-aligned text run with its top-left corner at (x, y),
// sized in points, and records its geometry for the text stream.
func (b *PageBuilder) Text(x, y, sizePt float64, str string) error {
	d := b.spec.doc
	if d.family == nil {
		return ErrNoFont
	}
	face := d.family.Face(sizePt, canvas.Black, canvas.FontRegular, canvas.FontNormal)
	b.spec.ops = append(b.spec.ops, textOp{x: x, y: y, sizePt: sizePt, str: str, face: face})
	b.spec.text = append(b.spec.text, decoder.TextItem{
		Str:      str,
		X:        x,
		Y:        y,
		W:        face.TextWidth(str),
		H:        sizePt * mmPerPt,
		FontSize: sizePt,
	})
	return nil
}

type page struct {
	spec *pageSpec
}

func (p *page) Viewport(params decoder.ViewportParams) decoder.Viewport {
	scale := params.Scale
	if scale == 0 {
		scale = 1
	}
	w, h := decoder.RotatedSize(p.spec.w, p.spec.h, params.Rotation)
	return decoder.Viewport{
		Scale:    scale,
		Rotation: params.Rotation,
		Width:    w * scale,
		Height:   h * scale,
	}
}

// Render rasterizes the page scene at vp's scale and copies the result
// into dst. Origin units map to canvas millimeters, so the scale doubles
// as the raster density.
func (p *page) Render(ctx context.Context, dst stddraw.Image, vp decoder.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if vp.Rotation%360 != 0 {
		return ErrUnsupportedRotation
	}
	scale := vp.Scale
	if scale == 0 {
		scale = 1
	}

	c := canvas.New(p.spec.w, p.spec.h)
	cc := canvas.NewContext(c)
	cc.SetFillColor(p.spec.background)
	cc.DrawPath(0, 0, canvas.Rectangle(p.spec.w, p.spec.h))
	for _, op := range p.spec.ops {
		op.draw(cc, p.spec.h)
	}

	img := rasterizer.Draw(c, canvas.DPMM(scale), canvas.DefaultColorSpace)
	stddraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, stddraw.Src)
	return nil
}

func (p *page) StreamText(ctx context.Context) (<-chan decoder.TextItem, error) {
	return decoder.StreamItems(ctx, p.spec.text), nil
}

func (p *page) Release() {}
