// Package imagedoc is a decoder backend whose pages are raster images, one
// image per page. It decodes the common raster formats and resamples pages
// to the requested viewport with Catmull-Rom interpolation. Image pages
// carry no text, so the text stream is always empty.
package imagedoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yinliguo/pdf-viewer/decoder"
)

// ErrUnsupportedRotation is returned for rotations that are not multiples
// of 90 degrees.
var ErrUnsupportedRotation = errors.New("imagedoc: rotation must be a multiple of 90")

// Document is an open image-backed document.
type Document struct {
	mu     sync.Mutex
	pages  []image.Image
	closed bool
}

// New builds a document directly from decoded images.
func New(pages ...image.Image) (*Document, error) {
	if len(pages) == 0 {
		return nil, errors.New("imagedoc: document needs at least one page")
	}
	return &Document{pages: pages}, nil
}

// Open decodes a single image source into a one-page document. It
// satisfies the viewer's open function contract.
func Open(ctx context.Context, src decoder.Source) (decoder.Document, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r io.Reader
	switch {
	case src.Path != "":
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("imagedoc: open %s: %w", src.Path, err)
		}
		defer f.Close()
		r = f
	case len(src.Bytes) > 0:
		r = bytes.NewReader(src.Bytes)
	default:
		r = io.NewSectionReader(src.Reader, 0, src.Size)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imagedoc: decode: %w", err)
	}
	return New(img)
}

// OpenFiles decodes one image file per page into a multi-page document.
func OpenFiles(ctx context.Context, paths ...string) (*Document, error) {
	pages := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("imagedoc: open %s: %w", path, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("imagedoc: decode %s: %w", path, err)
		}
		pages = append(pages, img)
	}
	return New(pages...)
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
		return nil, errors.New("imagedoc: document closed")
	}
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("%w: %d", decoder.ErrPageOutOfRange, n)
	}
	return &page{img: d.pages[n-1]}, nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.pages = nil
	return nil
}

type page struct {
	img image.Image
}

func (p *page) Viewport(params decoder.ViewportParams) decoder.Viewport {
	scale := params.Scale
	if scale == 0 {
		scale = 1
	}
	b := p.img.Bounds()
	w, h := decoder.RotatedSize(float64(b.Dx()), float64(b.Dy()), params.Rotation)
	return decoder.Viewport{
		Scale:    scale,
		Rotation: params.Rotation,
		Width:    w * scale,
		Height:   h * scale,
	}
}

// Render resamples the source image into dst under vp's scale and rotation.
// Quadrant rotations are expressed as affine transforms over the Catmull-Rom
// kernel.
func (p *page) Render(ctx context.Context, dst stddraw.Image, vp decoder.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scale := vp.Scale
	if scale == 0 {
		scale = 1
	}
	rot := ((vp.Rotation % 360) + 360) % 360
	if rot%90 != 0 {
		return ErrUnsupportedRotation
	}

	b := p.img.Bounds()
	if rot == 0 {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), p.img, b, xdraw.Src, nil)
		return nil
	}

	s := scale
	w, h := float64(b.Dx()), float64(b.Dy())
	var m f64.Aff3
	switch rot {
	case 90:
		m = f64.Aff3{0, -s, s * h, s, 0, 0}
	case 180:
		m = f64.Aff3{-s, 0, s * w, 0, -s, s * h}
	case 270:
		m = f64.Aff3{0, s, 0, -s, 0, s * w}
	}
	xdraw.CatmullRom.Transform(dst, m, p.img, b, xdraw.Src, nil)
	return nil
}

// StreamText reports no text: raster pages have no extractable runs.
func (p *page) StreamText(ctx context.Context) (<-chan decoder.TextItem, error) {
	return decoder.StreamItems(ctx, nil), nil
}

func (p *page) Release() {}
