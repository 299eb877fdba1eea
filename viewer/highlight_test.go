package viewer

import (
	"testing"
	"time"

	"github.com/yinliguo/pdf-viewer/decoder"
	"github.com/yinliguo/pdf-viewer/decoder/decodertest"
	"github.com/yinliguo/pdf-viewer/dom"
)

func TestHighlightRoundTrip(t *testing.T) {
	doc := decodertest.NewUniform(1, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	id, ok := v.Highlight(1, RectF{X: 10, Y: 20, W: 100, H: 50}, "mark")
	if !ok {
		t.Fatal("Expected Highlight to succeed on a loaded page")
	}

	hits := v.HighlightsAt(50, 40)
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit inside the highlight, got %d", len(hits))
	}
	if hits[0].Page != 1 || hits[0].ID != id {
		t.Fatalf("Expected hit {1, %s}, got %+v", id, hits[0])
	}
	if hits := v.HighlightsAt(400, 400); len(hits) != 0 {
		t.Fatalf("Expected no hits outside the highlight, got %d", len(hits))
	}

	v.RemoveHighlight(1, id)
	if hits := v.HighlightsAt(50, 40); len(hits) != 0 {
		t.Fatalf("Expected no hits after removal, got %d", len(hits))
	}
}

func TestHighlightScalesWithResize(t *testing.T) {
	doc := decodertest.NewUniform(1, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	id, _ := v.Highlight(1, RectF{X: 11, Y: 21, W: 101, H: 51}, "mark")
	v.Resize(300)
	waitSettled(t, v)

	// Rects are recomputed from origin units at the new scale, floored per
	// coordinate, never rescaled from the previous pixel rect.
	v.do(func(v *Viewer) {
		rec := v.pages[0].highlights[id]
		if rec == nil || rec.overlay == nil {
			t.Error("Expected highlight overlay after resize")
			return
		}
		want := dom.Rect{X: 5, Y: 10, W: 50, H: 25}
		if got := rec.overlay.Rect(); got != want {
			t.Errorf("Expected overlay rect %+v, got %+v", want, got)
		}
	})
}

func TestHighlightSurvivesRevoke(t *testing.T) {
	doc := decodertest.NewUniform(20, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	id, _ := v.Highlight(1, RectF{X: 10, Y: 10, W: 50, H: 50}, "mark")

	scrollAndVirtualize(t, v, 1e9)
	v.do(func(v *Viewer) {
		rec := v.pages[0].highlights[id]
		if rec == nil {
			t.Error("Expected highlight record to survive revoke")
		} else if rec.overlay != nil {
			t.Error("Expected overlay torn down with the revoked page")
		}
	})

	scrollAndVirtualize(t, v, 0)
	if hits := v.HighlightsAt(20, 20); len(hits) != 1 || hits[0].ID != id {
		t.Fatalf("Expected highlight rematerialized after scroll back, got %+v", hits)
	}
}

func TestHighlightFocusBlur(t *testing.T) {
	doc := decodertest.NewUniform(1, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	id, _ := v.Highlight(1, RectF{X: 0, Y: 0, W: 50, H: 50}, "mark")
	v.HighlightFocus(1, id, "focused")
	v.do(func(v *Viewer) {
		rec := v.pages[0].highlights[id]
		if rec.overlay == nil || !rec.overlay.HasClass("focused") {
			t.Error("Expected focus class on overlay")
		}
	})

	v.HighlightBlur(1, id)
	v.do(func(v *Viewer) {
		rec := v.pages[0].highlights[id]
		if rec.overlay.HasClass("focused") {
			t.Error("Expected focus class removed after blur")
		}
		if !rec.overlay.HasClass("mark") {
			t.Error("Expected visual class untouched by blur")
		}
	})
}

func TestRemoveHighlightVariants(t *testing.T) {
	doc := decodertest.NewUniform(3, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	a, _ := v.Highlight(1, RectF{X: 0, Y: 0, W: 10, H: 10}, "mark")
	v.Highlight(1, RectF{X: 20, Y: 0, W: 10, H: 10}, "mark")
	v.Highlight(2, RectF{X: 0, Y: 0, W: 10, H: 10}, "mark")

	count := func(page int) int {
		var n int
		v.do(func(v *Viewer) { n = len(v.pages[page-1].highlights) })
		return n
	}

	v.RemoveHighlight(1, a)
	if got := count(1); got != 1 {
		t.Fatalf("Expected 1 highlight left on page 1, got %d", got)
	}

	v.RemoveHighlight(1)
	if got := count(1); got != 0 {
		t.Fatalf("Expected page 1 cleared, got %d", got)
	}
	if got := count(2); got != 1 {
		t.Fatalf("Expected page 2 untouched, got %d", got)
	}

	v.RemoveHighlight(0)
	if got := count(2); got != 0 {
		t.Fatalf("Expected all pages cleared, got %d on page 2", got)
	}
}

func TestClickEmitsHighlightClick(t *testing.T) {
	doc := decodertest.NewUniform(3, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	id, _ := v.Highlight(2, RectF{X: 100, Y: 100, W: 50, H: 50}, "mark")

	clicks := make(chan HighlightClickPayload, 1)
	v.On(EventHighlightClick, func(payload interface{}) {
		clicks <- payload.(HighlightClickPayload)
	})

	// Page 2 starts at content offset 810; with the viewport scrolled to
	// 800, its highlight at page-local (125, 125) sits at viewport y 135.
	scrollAndVirtualize(t, v, 800)
	v.Dispatch(ClickAt{X: 125, Y: 135})

	select {
	case p := <-clicks:
		if len(p.Hits) != 1 || p.Hits[0].Page != 2 || p.Hits[0].ID != id {
			t.Fatalf("Expected hit {2, %s}, got %+v", id, p.Hits)
		}
	case <-time.After(time.Second):
		t.Fatal("highlight-click event never fired")
	}

	// A click outside any highlight emits nothing.
	v.Dispatch(ClickAt{X: 10, Y: 10})
	v.do(func(*Viewer) {}) // drain the command queue
	select {
	case <-clicks:
		t.Fatal("Expected no event for a miss")
	default:
	}
}

func TestTextLayerAttached(t *testing.T) {
	doc := decodertest.New(&decodertest.PageSpec{
		Width:  600,
		Height: 800,
		Text: []decoder.TextItem{
			{Str: "Title", X: 40, Y: 60, W: 200, H: 24, FontSize: 24},
			{Str: "Body", X: 40, Y: 100, W: 400, H: 12, FontSize: 12},
		},
	})
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.TextLayer = true
	})
	waitReady(t, v)
	waitSettled(t, v)

	v.do(func(v *Viewer) {
		layer := v.pages[0].textLayer
		if layer == nil {
			t.Error("Expected text layer attached")
			return
		}
		runs := layer.Children()
		if len(runs) != 2 {
			t.Errorf("Expected 2 text runs, got %d", len(runs))
			return
		}
		if runs[0].Text != "Title" {
			t.Errorf("Expected first run 'Title', got %q", runs[0].Text)
		}
		want := dom.Rect{X: 40, Y: 60, W: 200, H: 24}
		if got := runs[0].Rect(); got != want {
			t.Errorf("Expected run rect %+v, got %+v", want, got)
		}
	})

	// Halving the width halves run geometry and font size on the next pass.
	v.Resize(300)
	waitSettled(t, v)
	v.do(func(v *Viewer) {
		runs := v.pages[0].textLayer.Children()
		want := dom.Rect{X: 20, Y: 30, W: 100, H: 12}
		if got := runs[0].Rect(); got != want {
			t.Errorf("Expected scaled run rect %+v, got %+v", want, got)
		}
		if runs[0].FontSize != 12 {
			t.Errorf("Expected font size 12 at half scale, got %v", runs[0].FontSize)
		}
	})
}
