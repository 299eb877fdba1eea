package viewer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yinliguo/pdf-viewer/decoder"
	"github.com/yinliguo/pdf-viewer/decoder/decodertest"
	"github.com/yinliguo/pdf-viewer/dom"
)

func testConfig(doc *decodertest.Doc) Config {
	return Config{
		Source:             decoder.Source{Path: "fixture.pdf"},
		Open:               doc.Opener(),
		ViewportWidth:      600,
		ViewportHeight:     900,
		ScrollAnimDuration: 20 * time.Millisecond,
		DebounceInterval:   5 * time.Millisecond,
	}
}

func newTestViewer(t *testing.T, doc *decodertest.Doc, mutate func(*Config)) *Viewer {
	t.Helper()
	cfg := testConfig(doc)
	if mutate != nil {
		mutate(&cfg)
	}
	v := New(cfg)
	t.Cleanup(v.Destroy)
	return v
}

func waitReady(t *testing.T, v *Viewer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v.Ready() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("viewer never became ready")
}

// waitSettled waits until no render pass is in flight. Renders for windowed
// pages start synchronously inside a virtualize pass, so ready-then-settled
// means the initial pass has fully completed.
func waitSettled(t *testing.T, v *Viewer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var idle bool
		if !v.do(func(v *Viewer) { idle = v.inflight == 0 }) {
			t.Fatal("viewer shut down while waiting for renders")
		}
		if idle {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("renders never settled")
}

func scrollAndVirtualize(t *testing.T, v *Viewer, top float64) {
	t.Helper()
	v.do(func(v *Viewer) {
		v.onScroll(top, 0, true)
		v.virtualize(false)
	})
	waitSettled(t, v)
}

func TestViewerLoad(t *testing.T) {
	doc := decodertest.NewUniform(3, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	if got := v.PageCount(); got != 3 {
		t.Fatalf("Expected 3 pages, got %d", got)
	}
	if got := v.CurrentPage(); got != 1 {
		t.Fatalf("Expected current page 1, got %d", got)
	}
	for n := 1; n <= 3; n++ {
		var loaded bool
		v.do(func(v *Viewer) { loaded = v.pages[n-1].Loaded() })
		if !loaded {
			t.Fatalf("Expected page %d loaded after initial pass", n)
		}
		if calls := doc.RenderCalls(n); calls != 1 {
			t.Fatalf("Expected 1 render call for page %d, got %d", n, calls)
		}
	}

	var children int
	v.Snapshot(func(root *dom.Element, _, _ float64) { children = len(root.Children()) })
	if children != 3 {
		t.Fatalf("Expected 3 page containers, got %d", children)
	}
}

func TestLoadEvent(t *testing.T) {
	doc := decodertest.NewUniform(2, 600, 800)
	release := make(chan struct{})
	v := newTestViewer(t, doc, func(cfg *Config) {
		open := cfg.Open
		cfg.Open = func(ctx context.Context, src decoder.Source) (decoder.Document, error) {
			<-release
			return open(ctx, src)
		}
	})

	loaded := make(chan LoadPayload, 1)
	v.On(EventLoad, func(payload interface{}) {
		loaded <- payload.(LoadPayload)
	})
	close(release)

	select {
	case p := <-loaded:
		if p.Pages != 2 {
			t.Fatalf("Expected 2 pages in load payload, got %d", p.Pages)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load event never fired")
	}
}

func TestDegradedOnOpenError(t *testing.T) {
	doc := decodertest.NewUniform(1, 600, 800)
	openErr := errors.New("broken source")
	release := make(chan struct{})
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.Open = func(context.Context, decoder.Source) (decoder.Document, error) {
			<-release
			return nil, openErr
		}
	})

	errs := make(chan error, 1)
	v.On(EventError, func(payload interface{}) {
		errs <- payload.(ErrorPayload).Err
	})
	close(release)

	select {
	case err := <-errs:
		if !errors.Is(err, openErr) {
			t.Fatalf("Expected open error in payload, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error event never fired")
	}

	if v.Ready() {
		t.Fatal("Expected degraded viewer to never become ready")
	}
	if _, ok := v.Highlight(1, RectF{X: 1, Y: 1, W: 10, H: 10}, "hl"); ok {
		t.Fatal("Expected Highlight to refuse on a degraded viewer")
	}
	if _, err := v.RenderPage(context.Background(), 1, 300, false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady, got %v", err)
	}
}

func TestCurrentPageSelection(t *testing.T) {
	doc := decodertest.New(
		&decodertest.PageSpec{Width: 600, Height: 800},
		&decodertest.PageSpec{Width: 600, Height: 1000},
		&decodertest.PageSpec{Width: 600, Height: 600},
	)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	changes := make(chan int, 8)
	v.On(EventPageChange, func(payload interface{}) {
		changes <- payload.(PageChangePayload).Page
	})

	// Page one shows 200 units, page two 700: page two wins.
	scrollAndVirtualize(t, v, 610)
	if got := v.CurrentPage(); got != 2 {
		t.Fatalf("Expected current page 2 at offset 610, got %d", got)
	}
	select {
	case page := <-changes:
		if page != 2 {
			t.Fatalf("Expected page-change to 2, got %d", page)
		}
	case <-time.After(time.Second):
		t.Fatal("page-change event never fired")
	}
}

func TestCurrentPageTieKeepsEarlier(t *testing.T) {
	doc := decodertest.New(
		&decodertest.PageSpec{Width: 600, Height: 800},
		&decodertest.PageSpec{Width: 600, Height: 1000},
		&decodertest.PageSpec{Width: 600, Height: 600},
	)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	// At offset 360 both pages show exactly 450 units; the earlier page
	// keeps the title.
	scrollAndVirtualize(t, v, 360)
	if got := v.CurrentPage(); got != 1 {
		t.Fatalf("Expected tie to keep page 1, got %d", got)
	}
	scrollAndVirtualize(t, v, 361)
	if got := v.CurrentPage(); got != 2 {
		t.Fatalf("Expected page 2 once strictly more visible, got %d", got)
	}
}

func TestRenderIdempotentAndForced(t *testing.T) {
	doc := decodertest.NewUniform(1, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	if calls := doc.RenderCalls(1); calls != 1 {
		t.Fatalf("Expected 1 initial render, got %d", calls)
	}

	v.do(func(v *Viewer) { v.virtualize(false) })
	waitSettled(t, v)
	if calls := doc.RenderCalls(1); calls != 1 {
		t.Fatalf("Expected repeat pass to skip a loaded page, got %d renders", calls)
	}

	v.do(func(v *Viewer) { v.virtualize(true) })
	waitSettled(t, v)
	if calls := doc.RenderCalls(1); calls != 2 {
		t.Fatalf("Expected forced pass to re-render, got %d renders", calls)
	}
}

func TestAtMostOneRenderInFlight(t *testing.T) {
	gate := make(chan struct{})
	doc := decodertest.New(&decodertest.PageSpec{Width: 600, Height: 800, Gate: gate})
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	deadline := time.Now().Add(2 * time.Second)
	for doc.RenderCalls(1) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Hammer the pass while the first render is held open.
	for i := 0; i < 5; i++ {
		v.do(func(v *Viewer) { v.virtualize(true) })
	}
	if calls := doc.RenderCalls(1); calls != 1 {
		t.Fatalf("Expected a single render call while one is in flight, got %d", calls)
	}
	close(gate)
	waitSettled(t, v)

	if peak := doc.MaxConcurrentRenders(1); peak != 1 {
		t.Fatalf("Expected at most one concurrent render, got %d", peak)
	}
}

func TestRenderPassJoinsLayers(t *testing.T) {
	gate := make(chan struct{})
	doc := decodertest.New(&decodertest.PageSpec{
		Width: 600, Height: 800, Gate: gate,
		Text: []decoder.TextItem{{Str: "x", X: 1, Y: 1, W: 10, H: 10, FontSize: 10}},
	})
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.TextLayer = true
	})
	waitReady(t, v)

	// The text stream finishes immediately while the raster is held open:
	// neither layer may attach until the whole pass settles.
	time.Sleep(20 * time.Millisecond)
	v.do(func(v *Viewer) {
		p := v.pages[0]
		if p.textLayer != nil {
			t.Error("Expected no text layer before the pass joins")
		}
		if p.Loaded() {
			t.Error("Expected page not loaded while the raster is held")
		}
	})

	close(gate)
	waitSettled(t, v)
	v.do(func(v *Viewer) {
		p := v.pages[0]
		if p.surface == nil || p.textLayer == nil {
			t.Error("Expected both layers attached after the join")
		}
		if !p.Loaded() {
			t.Error("Expected page loaded after the join")
		}
	})
}

func TestRevokeRequiresLoadedIdle(t *testing.T) {
	gate := make(chan struct{})
	doc := decodertest.New(&decodertest.PageSpec{Width: 600, Height: 800, Gate: gate})
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)

	v.do(func(v *Viewer) {
		p := v.pages[0]
		p.revoke()
		if p.revoked {
			t.Error("Expected revoke refused with a render in flight")
		}
	})

	close(gate)
	waitSettled(t, v)
	v.do(func(v *Viewer) {
		p := v.pages[0]
		p.revoke()
		if !p.revoked || p.surface != nil {
			t.Error("Expected idle loaded page revoked")
		}
		p.revoke() // second revoke is a no-op
		if !p.revoked {
			t.Error("Expected page to stay revoked")
		}
	})
}

func TestWindowRevokeAndRematerialize(t *testing.T) {
	doc := decodertest.NewUniform(20, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	var firstLoaded, lastLoaded bool
	v.do(func(v *Viewer) {
		firstLoaded = v.pages[0].Loaded()
		lastLoaded = v.pages[19].Loaded()
	})
	if !firstLoaded {
		t.Fatal("Expected page 1 loaded at offset 0")
	}
	if lastLoaded {
		t.Fatal("Expected page 20 outside the window at offset 0")
	}

	// Jump to the bottom: early pages leave the window and are revoked, but
	// keep their geometry.
	scrollAndVirtualize(t, v, 1e9)
	v.do(func(v *Viewer) {
		p := v.pages[0]
		if !p.revoked {
			t.Error("Expected page 1 revoked at the bottom")
		}
		if p.surface != nil {
			t.Error("Expected page 1 surface detached after revoke")
		}
		if w, h := p.Size(); w != 600 || h != 800 {
			t.Errorf("Expected revoked page to keep 600x800, got %vx%v", w, h)
		}
	})

	// Scrolling back re-renders revoked pages.
	scrollAndVirtualize(t, v, 0)
	v.do(func(v *Viewer) {
		if !v.pages[0].Loaded() {
			t.Error("Expected page 1 rematerialized at the top")
		}
	})
	if calls := doc.RenderCalls(1); calls != 2 {
		t.Fatalf("Expected 2 render calls across revoke cycle, got %d", calls)
	}
}

func TestAspectCorrection(t *testing.T) {
	doc := decodertest.New(
		&decodertest.PageSpec{Width: 600, Height: 800},
		&decodertest.PageSpec{Width: 600, Height: 1200},
	)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	// Page two started with page one's aspect ratio and was corrected on
	// first measure.
	size, ok := v.PageSizeOf(2)
	if !ok {
		t.Fatal("Expected page 2 to exist")
	}
	if size.Width != 600 || size.Height != 1200 {
		t.Fatalf("Expected page 2 corrected to 600x1200, got %vx%v", size.Width, size.Height)
	}
}

func TestResizeRescalesPages(t *testing.T) {
	doc := decodertest.NewUniform(2, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	resizes := make(chan PageResizePayload, 1)
	v.On(EventPageResize, func(payload interface{}) {
		select {
		case resizes <- payload.(PageResizePayload):
		default:
		}
	})

	v.Resize(300)
	waitSettled(t, v)

	size, _ := v.PageSizeOf(1)
	if size.Width != 300 || size.Height != 400 {
		t.Fatalf("Expected 300x400 after resize, got %vx%v", size.Width, size.Height)
	}
	select {
	case p := <-resizes:
		if got := p.Sizes[2]; got.Width != 300 || got.Height != 400 {
			t.Fatalf("Expected batched resize payload 300x400 for page 2, got %vx%v", got.Width, got.Height)
		}
	case <-time.After(time.Second):
		t.Fatal("page-resize event never fired")
	}
	// Resize forces a raster rebuild at the new scale.
	if calls := doc.RenderCalls(1); calls != 2 {
		t.Fatalf("Expected re-render after resize, got %d calls", calls)
	}
}

func TestScrollToAnimates(t *testing.T) {
	doc := decodertest.NewUniform(5, 600, 800)
	v := newTestViewer(t, doc, nil)
	waitReady(t, v)
	waitSettled(t, v)

	done := make(chan struct{})
	v.ScrollTo(3, 0, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scroll animation never completed")
	}
	waitSettled(t, v)

	top, _ := v.ScrollOffset()
	if top != 1620 { // two pages plus two gaps
		t.Fatalf("Expected scroll offset 1620, got %v", top)
	}
	if got := v.CurrentPage(); got != 3 {
		t.Fatalf("Expected current page 3 after ScrollTo, got %d", got)
	}
}

func TestRenderPageStandalone(t *testing.T) {
	doc := decodertest.NewUniform(2, 600, 800)
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.DevicePixelRatio = 2
	})
	waitReady(t, v)
	waitSettled(t, v)

	img, err := v.RenderPage(context.Background(), 2, 300, false)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 400 {
		t.Fatalf("Expected 300x400 raster, got %dx%d", b.Dx(), b.Dy())
	}

	img, err = v.RenderPage(context.Background(), 2, 300, true)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 800 {
		t.Fatalf("Expected 600x800 raster at dpr 2, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := v.RenderPage(context.Background(), 7, 300, false); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("Expected ErrPageOutOfRange, got %v", err)
	}
}

func TestDestroyDuringRender(t *testing.T) {
	gate := make(chan struct{})
	doc := decodertest.New(&decodertest.PageSpec{Width: 600, Height: 800, Gate: gate})
	v := New(testConfig(doc))
	waitReady(t, v)

	// Destroy with the render held open: context cancellation unblocks the
	// decoder and the stale completion is discarded during teardown.
	v.Destroy()

	if !doc.Closed() {
		t.Fatal("Expected document closed after destroy")
	}
	if released := doc.Released(1); released != 1 {
		t.Fatalf("Expected page handle released once, got %d", released)
	}
	// Idempotent.
	v.Destroy()
}

// gatedPageDoc holds Page calls until its gate opens or the context is
// cancelled, keeping the first-page fetch in flight.
type gatedPageDoc struct {
	*decodertest.Doc
	gate chan struct{}
}

func (d *gatedPageDoc) Page(ctx context.Context, n int) (decoder.Page, error) {
	select {
	case <-d.gate:
	case <-ctx.Done():
	}
	return d.Doc.Page(ctx, n)
}

func TestDestroyDuringFirstPageFetch(t *testing.T) {
	doc := &gatedPageDoc{Doc: decodertest.NewUniform(2, 600, 800), gate: make(chan struct{})}
	cfg := testConfig(doc.Doc)
	cfg.Open = func(context.Context, decoder.Source) (decoder.Document, error) {
		return doc, nil
	}
	v := New(cfg)

	// Wait for the open to land so the page-1 fetch is the thing in flight.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var opened bool
		v.do(func(v *Viewer) { opened = v.doc != nil })
		if opened {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("document never opened")
		}
		time.Sleep(2 * time.Millisecond)
	}

	v.Destroy()
	close(doc.gate)

	// The late fetch result has no viewer to land on; its handle must still
	// be released.
	for doc.Released(1) == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if released := doc.Released(1); released != 1 {
		t.Fatalf("Expected orphaned page handle released once, got %d", released)
	}
	if !doc.Closed() {
		t.Fatal("Expected document closed after destroy")
	}
}

func TestDestroyIdle(t *testing.T) {
	doc := decodertest.NewUniform(3, 600, 800)
	v := New(testConfig(doc))
	waitReady(t, v)
	waitSettled(t, v)

	v.Destroy()
	if !doc.Closed() {
		t.Fatal("Expected document closed after destroy")
	}
	if v.Ready() {
		t.Fatal("Expected destroyed viewer to report not ready")
	}
}
