// Package viewer implements a virtualized multi-page document viewport: it
// lazily renders the pages near the visible area through an external
// decoder backend, revokes pages that scroll far away, tracks the current
// page, and overlays clickable highlight regions on page content.
package viewer

import (
	"context"
	"errors"
	"image"
	"math"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/yinliguo/pdf-viewer/decoder"
	"github.com/yinliguo/pdf-viewer/dom"
	"github.com/yinliguo/pdf-viewer/events"
	"github.com/yinliguo/pdf-viewer/observability"
	"github.com/yinliguo/pdf-viewer/tween"
)

var (
	// ErrNotReady is returned by calls that need an open document before
	// the viewer reached the ready state.
	ErrNotReady = errors.New("viewer: not ready")
	// ErrPageOutOfRange is returned for page numbers outside [1, PageCount].
	ErrPageOutOfRange = errors.New("viewer: page number out of range")
)

// OpenFunc opens a document source through a decoder backend.
type OpenFunc func(ctx context.Context, src decoder.Source) (decoder.Document, error)

// Config declares a viewer. It is applied once at construction.
type Config struct {
	// Source locates the document. Exactly one input must be set.
	Source decoder.Source
	// Open is the decoder backend used to open Source. Required.
	Open OpenFunc

	// TextLayer enables the selectable text layer on top of the raster.
	TextLayer bool
	// PageGap is the vertical space between pages in viewport units.
	// Defaults to 10.
	PageGap float64
	// ViewportWidth and ViewportHeight are the initial container size.
	// Defaults: 800x600.
	ViewportWidth, ViewportHeight float64
	// DevicePixelRatio scales raster resolution relative to logical units.
	// Defaults to 1.
	DevicePixelRatio float64

	// PageClass, BackgroundClass, and BorderClass are styling hooks applied
	// to the created elements; front-ends interpret them.
	PageClass, BackgroundClass, BorderClass string

	// ScrollAnimDuration is the duration of animated scrolls. Defaults to
	// 300ms.
	ScrollAnimDuration time.Duration
	// DebounceInterval coalesces scroll-triggered virtualization. Defaults
	// to 100ms.
	DebounceInterval time.Duration

	// OnLoadScript is an optional script executed once the viewer is ready.
	OnLoadScript string
	// OnAlert receives alerts raised by scripts. Defaults to logging.
	OnAlert func(msg string)

	Logger observability.Logger
	Meter  observability.Meter
	Tracer observability.Tracer
	Debug  bool
}

// Viewer is the public handle. All methods are safe for concurrent use;
// event handlers run on the internal scheduler goroutine and must not call
// blocking Viewer methods.
type Viewer struct {
	cfg     Config
	logger  observability.Logger
	meter   observability.Meter
	tracer  observability.Tracer
	emitter *events.Emitter

	cmds   chan func(*Viewer)
	closed chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	lc       *statekit.Interpreter[*lifecycleCtx]
	animator tween.Animator
	debounce *debouncer

	// Scheduler-confined state. Only the run loop touches these.
	doc        decoder.Document
	pages      []*Page
	root       *dom.Element
	gap        float64
	dpr        float64
	pageWidth  float64
	viewportW  float64
	viewportH  float64
	scrollTop  float64
	scrollLeft float64
	current    int
	inflight   int
	destroyed  bool
}

// New constructs a viewer and begins opening its source. Construction never
// fails: configuration and open errors leave the viewer in a degraded,
// non-functional state and are reported through the error event and the
// logger.
func New(cfg Config) *Viewer {
	if cfg.PageGap <= 0 {
		cfg.PageGap = 10
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 800
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 600
	}
	if cfg.DevicePixelRatio <= 0 {
		cfg.DevicePixelRatio = 1
	}
	if cfg.ScrollAnimDuration <= 0 {
		cfg.ScrollAnimDuration = 300 * time.Millisecond
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		if cfg.Debug {
			cfg.Logger = observability.NewZerologLogger(observability.ZerologConfig{
				Level:  "debug",
				Pretty: true,
			})
		} else {
			cfg.Logger = observability.NopLogger{}
		}
	}
	if cfg.Meter == nil {
		cfg.Meter = observability.NopMeter()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		cfg:       cfg,
		logger:    cfg.Logger,
		meter:     cfg.Meter,
		tracer:    cfg.Tracer,
		emitter:   events.NewEmitter(),
		cmds:      make(chan func(*Viewer), 128),
		closed:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		gap:       cfg.PageGap,
		dpr:       cfg.DevicePixelRatio,
		pageWidth: cfg.ViewportWidth,
		viewportW: cfg.ViewportWidth,
		viewportH: cfg.ViewportHeight,
	}
	v.root = dom.NewElement(dom.KindContainer, cfg.BackgroundClass)
	v.debounce = newDebouncer(cfg.DebounceInterval, func() {
		v.post(func(v *Viewer) { v.virtualize(false) })
	})

	lc, err := newLifecycle(v)
	if err != nil {
		// The machine is static; a build failure is a programming error,
		// but degrade instead of panicking per the error policy.
		v.logger.Error("lifecycle machine build failed", observability.Error("cause", err))
	}
	v.lc = lc

	go v.run()
	v.post(func(v *Viewer) { v.begin() })
	return v
}

// begin validates configuration and starts the asynchronous open.
func (v *Viewer) begin() {
	if v.cfg.Open == nil {
		v.fail(errors.New("viewer: no decoder backend configured"))
		return
	}
	if err := v.cfg.Source.Validate(); err != nil {
		v.fail(err)
		return
	}
	v.lcSend(lcOpen)
	cfg := v.cfg
	ctx := v.ctx
	go func() {
		octx, span := v.tracer.StartSpan(ctx, "viewer.open")
		start := time.Now()
		doc, err := cfg.Open(octx, cfg.Source)
		v.meter.Observe(observability.MetricOpenTime, time.Since(start).Seconds())
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		if !v.post(func(v *Viewer) { v.opened(doc, err) }) && doc != nil {
			doc.Close()
		}
	}()
}

// fail records a configuration or open failure. The viewer stays alive but
// degraded: every later call is a quiet no-op.
func (v *Viewer) fail(err error) {
	v.logger.Error("viewer degraded", observability.Error("cause", err))
	v.lcSend(lcFail)
	v.emit(EventError, ErrorPayload{Viewer: v, Err: err})
}

func (v *Viewer) opened(doc decoder.Document, err error) {
	if v.destroyed {
		if doc != nil {
			doc.Close()
		}
		return
	}
	if err != nil {
		v.fail(err)
		return
	}
	if doc.PageCount() < 1 {
		doc.Close()
		v.fail(errors.New("viewer: document has no pages"))
		return
	}
	v.doc = doc
	ctx := v.ctx
	go func() {
		h, err := doc.Page(ctx, 1)
		if !v.post(func(v *Viewer) { v.layout(h, err) }) && h != nil {
			h.Release()
		}
	}()
}

// layout establishes the initial page sequence. Every page starts with
// page 1's aspect ratio; per-page aspect corrections follow on first
// render.
func (v *Viewer) layout(first decoder.Page, err error) {
	if v.destroyed {
		if first != nil {
			first.Release()
		}
		return
	}
	if err != nil {
		v.fail(err)
		return
	}
	vp := first.Viewport(decoder.ViewportParams{Scale: 1})
	if vp.Width <= 0 || vp.Height <= 0 {
		first.Release()
		v.fail(errors.New("viewer: first page has an empty viewport"))
		return
	}

	count := v.doc.PageCount()
	width := v.pageWidth
	height := width * vp.Height / vp.Width
	v.pages = make([]*Page, count)
	for i := 0; i < count; i++ {
		p := newPage(v, i+1, width, height)
		v.pages[i] = p
		v.root.AppendChild(p.container)
	}
	p1 := v.pages[0]
	p1.handle = first
	p1.originWidth, p1.originHeight = vp.Width, vp.Height
	v.root.SetRect(dom.Rect{W: int(math.Floor(width)), H: int(math.Floor(v.contentHeight()))})

	v.lcSend(lcReady)
	v.logger.Info("document ready",
		observability.Int("pages", count),
		observability.Float64("page_width", width))
	v.emit(EventLoad, LoadPayload{Viewer: v, Pages: count})
	v.runLoadScript()
	v.virtualize(false)
}

func (v *Viewer) emit(t events.Type, payload interface{}) {
	v.emitter.Emit(t, payload)
}

// On subscribes to a viewer event stream and returns an unsubscribe
// function.
func (v *Viewer) On(t events.Type, fn events.Handler) (off func()) {
	return v.emitter.On(t, fn)
}

// Dispatch delivers a front-end input command. It never blocks the caller
// beyond queueing.
func (v *Viewer) Dispatch(cmd Command) {
	switch c := cmd.(type) {
	case Scroll:
		v.post(func(v *Viewer) { v.onScroll(c.Top, c.Left, true) })
	case ClickAt:
		v.post(func(v *Viewer) { v.onClick(c.X, c.Y) })
	case ViewportSize:
		v.post(func(v *Viewer) { v.onViewportSize(c.Width, c.Height) })
	}
}

// ScrollTo smoothly scrolls so that the given 1-based page's top (plus
// offset within the page) aligns with the viewport top. No-op when the
// viewer is not ready or the page is out of range. onComplete, if non-nil,
// runs after the animation finishes; a user scroll cancels the animation
// without firing it.
func (v *Viewer) ScrollTo(page int, offset float64, onComplete func()) {
	v.post(func(v *Viewer) {
		if !v.ready() || page < 1 || page > len(v.pages) {
			return
		}
		target := v.clampScroll(v.pageTop(page) + offset)
		v.animator.Start(v.scrollTop, target, v.cfg.ScrollAnimDuration, tween.EaseInOutCubic,
			func(val float64) {
				v.post(func(v *Viewer) { v.onScroll(val, v.scrollLeft, false) })
			},
			func() {
				v.post(func(v *Viewer) {
					v.onScroll(target, v.scrollLeft, false)
					v.virtualize(false)
				})
				if onComplete != nil {
					onComplete()
				}
			})
	})
}

// Highlight stores a highlight on the 1-based page, with rect in
// origin-page units, and returns its id. ok is false when the viewer is
// not ready or the page is invalid.
func (v *Viewer) Highlight(page int, rect RectF, visualClass string) (id HighlightID, ok bool) {
	v.do(func(v *Viewer) {
		if !v.ready() || page < 1 || page > len(v.pages) {
			return
		}
		id = v.pages[page-1].highlight(rect, visualClass)
		ok = true
	})
	return id, ok
}

// RemoveHighlight removes highlights: specific ids on a page, every
// highlight on a page (no ids), or every highlight on every page
// (page < 1).
func (v *Viewer) RemoveHighlight(page int, ids ...HighlightID) {
	v.do(func(v *Viewer) {
		if !v.ready() {
			return
		}
		if page < 1 {
			for _, p := range v.pages {
				p.removeAllHighlights()
			}
			return
		}
		if page > len(v.pages) {
			return
		}
		p := v.pages[page-1]
		if len(ids) == 0 {
			p.removeAllHighlights()
			return
		}
		for _, id := range ids {
			p.removeHighlight(id, true)
		}
	})
}

// HighlightFocus adds focusClass to the highlight's overlay element.
func (v *Viewer) HighlightFocus(page int, id HighlightID, focusClass string) {
	v.do(func(v *Viewer) {
		if !v.ready() || page < 1 || page > len(v.pages) {
			return
		}
		v.pages[page-1].highlightFocus(id, focusClass)
	})
}

// HighlightBlur removes the focus class set by HighlightFocus.
func (v *Viewer) HighlightBlur(page int, id HighlightID) {
	v.do(func(v *Viewer) {
		if !v.ready() || page < 1 || page > len(v.pages) {
			return
		}
		v.pages[page-1].highlightBlur(id)
	})
}

// HighlightsAt returns the highlights under the point, given in viewport
// coordinates (relative to the visible area's top-left).
func (v *Viewer) HighlightsAt(x, y float64) []HighlightHit {
	var hits []HighlightHit
	v.do(func(v *Viewer) {
		if !v.ready() {
			return
		}
		contentY := y + v.scrollTop
		p, top := v.pageAt(contentY)
		if p == nil {
			return
		}
		for _, id := range p.highlightsAt(int(x), int(contentY-top)) {
			hits = append(hits, HighlightHit{Page: p.num, ID: id})
		}
	})
	return hits
}

// RenderPage renders a single page to a standalone image, ignoring the
// virtualization window entirely. width <= 0 uses the page's origin width.
// The raster is scaled by the configured device pixel ratio unless
// devicePixelCompatible is false.
func (v *Viewer) RenderPage(ctx context.Context, page int, width float64, devicePixelCompatible bool) (image.Image, error) {
	var doc decoder.Document
	var dpr float64
	var count int
	if !v.do(func(v *Viewer) {
		if v.ready() {
			doc = v.doc
			dpr = v.dpr
			count = len(v.pages)
		}
	}) || doc == nil {
		return nil, ErrNotReady
	}
	if page < 1 || page > count {
		return nil, ErrPageOutOfRange
	}

	ctx, span := v.tracer.StartSpan(ctx, "viewer.render_page")
	span.SetTag("page", page)
	defer span.Finish()

	h, err := doc.Page(ctx, page)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	origin := h.Viewport(decoder.ViewportParams{Scale: 1})
	if origin.Width <= 0 {
		return nil, errors.New("viewer: page has an empty viewport")
	}
	if width <= 0 {
		width = origin.Width
	}
	scale := width / origin.Width
	if devicePixelCompatible {
		scale *= dpr
	}
	vp := h.Viewport(decoder.ViewportParams{Scale: scale})
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))))
	start := time.Now()
	if err := h.Render(ctx, img, vp); err != nil {
		span.SetError(err)
		return nil, err
	}
	v.meter.Observe(observability.MetricRenderTime, time.Since(start).Seconds())
	return img, nil
}

// Resize reflows every page to the new container width and forces a
// re-render pass. Zero or negative widths are ignored.
func (v *Viewer) Resize(width float64) {
	v.do(func(v *Viewer) {
		if !v.ready() {
			return
		}
		v.resizeAll(width)
	})
}

// Snapshot runs fn on the scheduler goroutine with the viewer's content
// root, letting front-ends paint a consistent tree. fn must not retain the
// element tree past its return.
func (v *Viewer) Snapshot(fn func(root *dom.Element, scrollTop, scrollLeft float64)) bool {
	return v.do(func(v *Viewer) {
		fn(v.root, v.scrollTop, v.scrollLeft)
	})
}

// CurrentPage returns the 1-based current page, 0 before load.
func (v *Viewer) CurrentPage() int {
	var cur int
	v.do(func(v *Viewer) { cur = v.current })
	return cur
}

// PageCount returns the number of pages, 0 before load.
func (v *Viewer) PageCount() int {
	var n int
	v.do(func(v *Viewer) { n = len(v.pages) })
	return n
}

// PageSizeOf returns a page's current logical size.
func (v *Viewer) PageSizeOf(page int) (PageSize, bool) {
	var size PageSize
	var ok bool
	v.do(func(v *Viewer) {
		if page >= 1 && page <= len(v.pages) {
			w, h := v.pages[page-1].Size()
			size = PageSize{Width: w, Height: h}
			ok = true
		}
	})
	return size, ok
}

// ScrollOffset returns the current scroll position.
func (v *Viewer) ScrollOffset() (top, left float64) {
	v.do(func(v *Viewer) { top, left = v.scrollTop, v.scrollLeft })
	return top, left
}

// Ready reports whether the document is open and laid out.
func (v *Viewer) Ready() bool {
	var ok bool
	v.do(func(v *Viewer) { ok = v.ready() })
	return ok
}

// Failed reports whether opening the document failed; the viewer is alive
// but degraded and every operation is a no-op.
func (v *Viewer) Failed() bool {
	var failed bool
	v.do(func(v *Viewer) {
		failed = v.lc != nil && v.lc.Matches(stateFailed)
	})
	return failed
}

// Destroy tears the viewer down and blocks until teardown completes,
// including waiting out any in-flight renders. It is idempotent and safe
// to call with renders outstanding: their completions are discarded.
func (v *Viewer) Destroy() {
	v.post(func(v *Viewer) {
		if v.destroyed {
			return
		}
		v.destroyed = true
		v.lcSend(lcDestroy)
		v.animator.Stop()
		v.debounce.stop()
		v.cancel()
		for _, p := range v.pages {
			p.destroy()
		}
	})
	<-v.closed
}
