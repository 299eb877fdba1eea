// Package decoder defines the contract between the viewer and a document
// decoder backend. The viewer never parses document formats or rasterizes
// content itself; it asks a Document for pages and asks each Page to render
// into a surface it provides.
package decoder

import (
	"context"
	"errors"
	"image/draw"
	"io"
)

var (
	// ErrNoSource is reported when a Source carries no usable input.
	ErrNoSource = errors.New("decoder: no source specified")
	// ErrAmbiguousSource is reported when a Source carries more than one input.
	ErrAmbiguousSource = errors.New("decoder: more than one source specified")
	// ErrPageOutOfRange is reported for page numbers outside [1, PageCount].
	ErrPageOutOfRange = errors.New("decoder: page number out of range")
)

// Source identifies document input. Exactly one of Path, Bytes, or Reader
// must be set; Size is required with Reader.
type Source struct {
	Path   string
	Bytes  []byte
	Reader io.ReaderAt
	Size   int64
}

// Validate reports whether the source names exactly one input.
func (s Source) Validate() error {
	n := 0
	if s.Path != "" {
		n++
	}
	if len(s.Bytes) > 0 {
		n++
	}
	if s.Reader != nil {
		n++
	}
	switch {
	case n == 0:
		return ErrNoSource
	case n > 1:
		return ErrAmbiguousSource
	}
	return nil
}

// Document is an open, decoded document. The viewer shares one Document
// across all pages and closes it exactly once at teardown.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int
	// Page returns the handle for the 1-based page n. Handles are acquired
	// lazily, once per page, and released by the caller.
	Page(ctx context.Context, n int) (Page, error)
	// Close releases decoder-side resources for the whole document.
	Close() error
}

// ViewportParams selects the scale and rotation a page is viewed at.
type ViewportParams struct {
	Scale    float64 // 0 means 1.0
	Rotation int     // degrees, multiples of 90
}

// Viewport describes the device-space extent of a page at given params.
// Width and Height account for rotation: 90 and 270 swap the axes.
type Viewport struct {
	Scale         float64
	Rotation      int
	Width, Height float64
}

// TextItem is one positioned run of text in origin-page units.
type TextItem struct {
	Str        string
	X, Y, W, H float64
	FontSize   float64
}

// Page is a decoder-side handle for a single page.
type Page interface {
	// Viewport computes the page's extent under params. Origin size is
	// Viewport(ViewportParams{Scale: 1}).
	Viewport(params ViewportParams) Viewport
	// Render rasterizes the page into dst at the resolution implied by vp.
	// dst is owned by the caller; Render must not retain it.
	Render(ctx context.Context, dst draw.Image, vp Viewport) error
	// StreamText emits positioned text geometry in origin-page units.
	// The channel is closed when the stream ends.
	StreamText(ctx context.Context) (<-chan TextItem, error)
	// Release frees decoder-side resources for this page. The handle must
	// not be used afterwards.
	Release()
}

// RotatedSize applies rotation to an origin width/height pair. Backends use
// it so that 90/270 viewports swap axes consistently.
func RotatedSize(w, h float64, rotation int) (float64, float64) {
	rotation = ((rotation % 360) + 360) % 360
	if rotation == 90 || rotation == 270 {
		return h, w
	}
	return w, h
}

// StreamItems adapts a fixed slice of text items to the streaming contract,
// honoring context cancellation.
func StreamItems(ctx context.Context, items []TextItem) <-chan TextItem {
	ch := make(chan TextItem)
	go func() {
		defer close(ch)
		for _, it := range items {
			select {
			case ch <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
