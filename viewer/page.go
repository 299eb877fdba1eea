package viewer

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/yinliguo/pdf-viewer/decoder"
	"github.com/yinliguo/pdf-viewer/dom"
	"github.com/yinliguo/pdf-viewer/observability"
)

// pageState is the load state of a page. Revocation is tracked separately:
// it applies only to loaded pages and keeps geometry while content is gone.
type pageState int

const (
	pageEmpty pageState = iota
	pageLoading
	pageLoaded
	pageDestroyed
)

func (s pageState) String() string {
	switch s {
	case pageEmpty:
		return "empty"
	case pageLoading:
		return "loading"
	case pageLoaded:
		return "loaded"
	case pageDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// renderPass joins the set of layer operations requested for one render.
// The page attaches content only after every member of the pass settles;
// future layer types join the same barrier without special cases.
type renderPass struct {
	gen       uint64
	pending   int
	rasterImg image.Image
	textItems []decoder.TextItem
	hasText   bool
	failures  int
}

// Page holds the per-page geometry, render lifecycle, and highlight index.
// All fields are confined to the viewer's scheduler goroutine.
type Page struct {
	v   *Viewer
	num int // 1-based, immutable

	// Logical geometry in viewport units. Origin dimensions stay zero until
	// the first successful measure; scale defaults to 1 until then.
	width, height             float64
	originWidth, originHeight float64

	state     pageState
	revoked   bool
	rendering bool
	passGen   uint64
	pass      *renderPass
	finalized bool

	handle decoder.Page

	container *dom.Element
	surface   *dom.Element
	textLayer *dom.Element

	highlights map[HighlightID]*highlightRecord
	hlOrder    []HighlightID
}

func newPage(v *Viewer, num int, width, height float64) *Page {
	p := &Page{
		v:          v,
		num:        num,
		width:      width,
		height:     height,
		container:  dom.NewElement(dom.KindPage, v.cfg.PageClass),
		highlights: make(map[HighlightID]*highlightRecord),
	}
	if v.cfg.BorderClass != "" {
		p.container.AddClass(v.cfg.BorderClass)
	}
	return p
}

// Num returns the page's 1-based number.
func (p *Page) Num() int { return p.num }

// Size returns the page's current logical size.
func (p *Page) Size() (w, h float64) { return p.width, p.height }

// Scale returns width/originWidth once the page is measured, else 1.
func (p *Page) Scale() float64 {
	if p.originWidth > 0 {
		return p.width / p.originWidth
	}
	return 1
}

// Loaded reports whether the page has attached content.
func (p *Page) Loaded() bool { return p.state == pageLoaded && !p.revoked }

func (p *Page) log() observability.Logger {
	return p.v.logger.With(observability.Int("page", p.num))
}

// render starts a render pass unless one is already outstanding. A
// non-forced render of an attached page is a no-op; a forced render rebuilds
// every enabled layer.
func (p *Page) render(force bool) {
	if p.state == pageDestroyed || p.rendering {
		return
	}
	if !force && p.state == pageLoaded && !p.revoked {
		return
	}
	p.rendering = true
	p.v.renderStarted()
	if p.state != pageLoaded || p.revoked {
		p.state = pageLoading
	}
	if p.handle == nil {
		p.resolveHandle(force)
		return
	}
	p.startPass(force)
}

// resolveHandle fetches the decoder-side page handle, then re-issues the
// queued render once it is available.
func (p *Page) resolveHandle(force bool) {
	v := p.v
	num := p.num
	doc := v.doc
	ctx := v.ctx
	go func() {
		h, err := doc.Page(ctx, num)
		v.post(func(v *Viewer) { p.handleResolved(h, err, force) })
	}()
}

func (p *Page) handleResolved(h decoder.Page, err error, force bool) {
	if p.state == pageDestroyed {
		if h != nil {
			h.Release()
		}
		p.rendering = false
		p.v.renderFinished()
		p.finalizeDestroy()
		return
	}
	if err != nil {
		p.log().Error("page handle fetch failed", observability.Error("cause", err))
		p.rendering = false
		p.state = pageEmpty
		p.v.renderFinished()
		return
	}
	p.handle = h
	p.measure()
	p.startPass(force)
}

// measure records intrinsic page dimensions on first layout. When the
// assigned height disagrees with the measured aspect ratio, the height is
// corrected from the current width and dependents are notified, since every
// later page's offset was computed from the wrong height.
func (p *Page) measure() {
	if p.originWidth > 0 {
		return
	}
	vp := p.handle.Viewport(decoder.ViewportParams{Scale: 1})
	if vp.Width <= 0 || vp.Height <= 0 {
		p.log().Warn("page reported empty viewport")
		return
	}
	p.originWidth, p.originHeight = vp.Width, vp.Height
	expected := p.width * p.originHeight / p.originWidth
	if math.Abs(expected-p.height) > 0.5 {
		p.height = expected
		p.v.pageAspectCorrected(p)
	}
}

func (p *Page) startPass(force bool) {
	p.passGen++
	pass := &renderPass{gen: p.passGen}
	p.pass = pass

	wantRaster := force || p.surface == nil
	wantText := p.v.cfg.TextLayer && (force || p.textLayer == nil)
	if wantRaster {
		pass.pending++
	}
	if wantText {
		pass.pending++
	}
	if pass.pending == 0 {
		p.completePass()
		return
	}

	v := p.v
	handle := p.handle
	ctx := v.ctx
	gen := pass.gen

	if wantRaster {
		vp := handle.Viewport(decoder.ViewportParams{Scale: p.Scale() * v.dpr})
		img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))))
		go func() {
			start := time.Now()
			err := handle.Render(ctx, img, vp)
			v.meter.Observe(observability.MetricRenderTime, time.Since(start).Seconds())
			v.post(func(*Viewer) { p.rasterDone(gen, img, err) })
		}()
	}
	if wantText {
		go func() {
			start := time.Now()
			items, err := collectText(ctx, handle)
			v.meter.Observe(observability.MetricTextLayerTime, time.Since(start).Seconds())
			v.post(func(*Viewer) { p.textDone(gen, items, err) })
		}()
	}
}

func collectText(ctx context.Context, handle decoder.Page) ([]decoder.TextItem, error) {
	stream, err := handle.StreamText(ctx)
	if err != nil {
		return nil, err
	}
	var items []decoder.TextItem
	for it := range stream {
		items = append(items, it)
	}
	return items, ctx.Err()
}

func (p *Page) rasterDone(gen uint64, img image.Image, err error) {
	if p.pass == nil || gen != p.pass.gen {
		return // completion from a superseded pass, expected race
	}
	p.pass.pending--
	if err != nil {
		p.pass.failures++
		p.v.meter.Count(observability.MetricRenderFailures, 1)
		if p.state != pageDestroyed {
			p.log().Warn("raster layer failed", observability.Error("cause", err))
		}
	} else {
		p.pass.rasterImg = img
	}
	if p.pass.pending == 0 {
		p.completePass()
	}
}

func (p *Page) textDone(gen uint64, items []decoder.TextItem, err error) {
	if p.pass == nil || gen != p.pass.gen {
		return
	}
	p.pass.pending--
	if err != nil {
		p.pass.failures++
		p.v.meter.Count(observability.MetricRenderFailures, 1)
		if p.state != pageDestroyed {
			p.log().Warn("text layer failed", observability.Error("cause", err))
		}
	} else {
		p.pass.hasText = true
		p.pass.textItems = items
	}
	if p.pass.pending == 0 {
		p.completePass()
	}
}

// completePass runs once every layer operation of the pass has settled.
// Whichever layers succeeded are attached together; the page becomes loaded
// only here, never after a partial join.
func (p *Page) completePass() {
	pass := p.pass
	p.pass = nil
	p.rendering = false
	defer p.v.renderFinished()

	if p.state == pageDestroyed {
		p.finalizeDestroy()
		return
	}

	if pass.rasterImg != nil {
		p.attachSurface(pass.rasterImg)
	}
	if pass.hasText {
		p.attachTextLayer(pass.textItems)
	}

	if p.surface != nil {
		p.state = pageLoaded
		p.revoked = false
		p.v.meter.Count(observability.MetricPagesMaterialized, 1)
		p.syncHighlights()
		p.restack()
	} else if p.state == pageLoading {
		// Raster never succeeded; the page stays unmaterialized and a later
		// pass may retry.
		p.state = pageEmpty
	}
}

func (p *Page) attachSurface(img image.Image) {
	if p.surface != nil {
		p.surface.Detach()
	}
	el := dom.NewElement(dom.KindSurface)
	el.Image = img
	el.SetRect(dom.Rect{W: int(math.Floor(p.width)), H: int(math.Floor(p.height))})
	p.surface = el
	p.container.AppendChild(el)
}

func (p *Page) attachTextLayer(items []decoder.TextItem) {
	if p.textLayer != nil {
		p.textLayer.Detach()
	}
	layer := dom.NewElement(dom.KindTextLayer)
	layer.SetRect(dom.Rect{W: int(math.Floor(p.width)), H: int(math.Floor(p.height))})
	scale := p.Scale()
	for _, it := range items {
		run := dom.NewElement(dom.KindTextRun)
		run.Text = it.Str
		run.FontSize = it.FontSize * scale
		run.SetRect(dom.Rect{
			X: int(math.Floor(it.X * scale)),
			Y: int(math.Floor(it.Y * scale)),
			W: int(math.Floor(it.W * scale)),
			H: int(math.Floor(it.H * scale)),
		})
		layer.AppendChild(run)
	}
	p.textLayer = layer
	p.container.AppendChild(layer)
}

// restack enforces paint order: surface, text layer, then highlight
// overlays in creation order.
func (p *Page) restack() {
	if p.surface != nil {
		p.surface.Detach()
		p.container.AppendChild(p.surface)
	}
	if p.textLayer != nil {
		p.textLayer.Detach()
		p.container.AppendChild(p.textLayer)
	}
	for _, id := range p.hlOrder {
		if rec := p.highlights[id]; rec != nil && rec.overlay != nil {
			rec.overlay.Detach()
			p.container.AppendChild(rec.overlay)
		}
	}
}

// revoke discards rendered content while keeping geometry and highlight
// records. It applies only to loaded, idle pages; callers must not revoke a
// page with a render in flight.
func (p *Page) revoke() {
	if p.state != pageLoaded || p.revoked || p.rendering {
		return
	}
	if p.surface != nil {
		p.surface.Detach()
		p.surface = nil
	}
	if p.textLayer != nil {
		p.textLayer.Detach()
		p.textLayer = nil
	}
	for _, rec := range p.highlights {
		rec.detach()
	}
	p.revoked = true
	p.v.meter.Count(observability.MetricPagesRevoked, 1)
}

// resize rescales the page to newWidth, preserving aspect ratio. Content is
// not re-rendered; a forced render is required to regenerate surfaces at
// the new resolution.
func (p *Page) resize(newWidth float64) {
	if newWidth <= 0 || newWidth == p.width || p.state == pageDestroyed {
		return
	}
	ratio := newWidth / p.width
	p.width = newWidth
	p.height *= ratio
	w, h := int(math.Floor(p.width)), int(math.Floor(p.height))
	r := p.container.Rect()
	r.W, r.H = w, h
	p.container.SetRect(r)
	if p.surface != nil {
		p.surface.SetRect(dom.Rect{W: w, H: h})
	}
	if p.textLayer != nil {
		r := p.textLayer.Rect()
		r.W, r.H = w, h
		p.textLayer.SetRect(r)
	}
}

// destroy tears the page down. If a render is in flight, teardown is
// deferred until the pass completion runs, so content is never attached to
// a container that is already gone.
func (p *Page) destroy() {
	if p.state == pageDestroyed {
		if !p.rendering {
			p.finalizeDestroy()
		}
		return
	}
	p.state = pageDestroyed
	if p.rendering {
		return
	}
	p.finalizeDestroy()
}

func (p *Page) finalizeDestroy() {
	if p.finalized {
		return
	}
	p.finalized = true
	for _, rec := range p.highlights {
		rec.detach()
	}
	p.highlights = make(map[HighlightID]*highlightRecord)
	p.hlOrder = nil
	p.container.RemoveChildren()
	p.container.Detach()
	p.surface = nil
	p.textLayer = nil
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
}
