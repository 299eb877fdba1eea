package main

import (
	"context"
	"fmt"
	"image/color"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/yinliguo/pdf-viewer/decoder"
	"github.com/yinliguo/pdf-viewer/decoder/canvasdoc"
	"github.com/yinliguo/pdf-viewer/decoder/imagedoc"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// openBackend picks a decoder backend for the given path. An empty path
// opens the built-in demo document.
func openBackend(path string) (func(context.Context, decoder.Source) (decoder.Document, error), decoder.Source, error) {
	if path == "" {
		doc, err := demoDocument()
		if err != nil {
			return nil, decoder.Source{}, err
		}
		open := func(context.Context, decoder.Source) (decoder.Document, error) {
			return doc, nil
		}
		return open, decoder.Source{Path: "demo"}, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if imageExtensions[ext] {
		return imagedoc.Open, decoder.Source{Path: path}, nil
	}
	return nil, decoder.Source{}, fmt.Errorf("no decoder backend for %q files", ext)
}

var demoFonts = []string{
	"DejaVu Sans", "Liberation Sans", "Arial", "Helvetica", "Noto Sans",
}

// demoDocument authors a small multi-page vector document so the viewer can
// be exercised without any input file.
func demoDocument() (decoder.Document, error) {
	doc := canvasdoc.New()
	hasFont := doc.LoadFont(demoFonts...) == nil

	rng := rand.New(rand.NewSource(42))
	palette := []color.RGBA{
		{R: 0x35, G: 0x77, B: 0xb2, A: 0xff},
		{R: 0xb2, G: 0x4a, B: 0x35, A: 0xff},
		{R: 0x3a, G: 0x8f, B: 0x5a, A: 0xff},
		{R: 0x8a, G: 0x5c, B: 0xb0, A: 0xff},
	}
	for n := 1; n <= 6; n++ {
		b := doc.AddPage(210, 297)
		b.Rect(0, 0, 210, 14, palette[(n-1)%len(palette)])
		for i := 0; i < 5; i++ {
			x := 15 + rng.Float64()*120
			y := 40 + float64(i)*48
			w := 30 + rng.Float64()*50
			h := 16 + rng.Float64()*24
			b.Rect(x, y, w, h, palette[rng.Intn(len(palette))])
		}
		if hasFont {
			if err := b.Text(15, 20, 14, fmt.Sprintf("Demo page %d", n)); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}
