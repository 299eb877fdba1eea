package viewer

import (
	"math"

	"github.com/yinliguo/pdf-viewer/dom"
	"github.com/yinliguo/pdf-viewer/observability"
)

// windowFactor is the materialization buffer, in page heights, kept on each
// side of the visible area.
const windowFactor = 5

// inWindow reports whether a page with the given height and top offset
// relative to the scroll position falls inside the materialization window.
func inWindow(relTop, viewportH, pageH float64) bool {
	return relTop > -viewportH-windowFactor*pageH && relTop < viewportH+windowFactor*pageH
}

// visibleHeight computes a page's current-page candidate weight. Page spans
// include the trailing inter-page gap. The three overlap conditions are
// checked in order: spanning the whole viewport, intersecting the viewport
// top, starting inside the viewport.
func visibleHeight(pageTop, pageH, gap, vpTop, vpH float64) (float64, bool) {
	vpBottom := vpTop + vpH
	pageBottom := pageTop + pageH + gap
	switch {
	case pageTop <= vpTop && pageBottom >= vpBottom:
		return vpH, true
	case pageTop <= vpTop && pageBottom > vpTop:
		return pageH + gap - math.Max(vpTop-pageTop, 0), true
	case pageTop >= vpTop && pageTop < vpBottom:
		return pageH + gap - math.Max(pageBottom-vpBottom, 0), true
	}
	return 0, false
}

// virtualize is the core pass executed on every (debounced) scroll tick and
// on resize: pages inside the window are rendered, pages outside are
// revoked, and the current page is recomputed. Ties on visible height keep
// the earlier page; later candidates win only when strictly greater.
func (v *Viewer) virtualize(force bool) {
	if v.destroyed || len(v.pages) == 0 {
		return
	}
	v.meter.Count(observability.MetricVirtualizePasses, 1)

	best := -1
	bestVisible := 0.0
	prev := 0.0
	for _, p := range v.pages {
		h := p.height
		relTop := v.scrollTop - prev
		r := p.container.Rect()
		r.Y = int(math.Floor(prev))
		r.W = int(math.Floor(p.width))
		r.H = int(math.Floor(h))
		p.container.SetRect(r)

		if inWindow(relTop, v.viewportH, h) {
			p.render(force)
			if vis, ok := visibleHeight(prev, h, v.gap, v.scrollTop, v.viewportH); ok && vis > bestVisible {
				bestVisible = vis
				best = p.num
			}
		} else {
			p.revoke()
		}
		prev += h + v.gap
	}

	if best > 0 && best != v.current {
		v.current = best
		v.emit(EventPageChange, PageChangePayload{Viewer: v, Page: best, Total: len(v.pages)})
	}
}

// pageAt maps an absolute content-space y offset to the page spanning it
// (gaps attribute to the preceding page) and that page's top offset.
func (v *Viewer) pageAt(y float64) (*Page, float64) {
	prev := 0.0
	for _, p := range v.pages {
		next := prev + p.height + v.gap
		if y < next {
			return p, prev
		}
		prev = next
	}
	return nil, 0
}

// pageTop returns the content-space top offset of the 1-based page.
func (v *Viewer) pageTop(num int) float64 {
	prev := 0.0
	for _, p := range v.pages {
		if p.num == num {
			break
		}
		prev += p.height + v.gap
	}
	return prev
}

// contentHeight is the total scrollable extent.
func (v *Viewer) contentHeight() float64 {
	total := 0.0
	for _, p := range v.pages {
		total += p.height + v.gap
	}
	if total > 0 {
		total -= v.gap
	}
	return total
}

func (v *Viewer) clampScroll(top float64) float64 {
	max := v.contentHeight() - v.viewportH
	if max < 0 {
		max = 0
	}
	return math.Min(math.Max(top, 0), max)
}

// resizeAll reflows every page to the new width, batches the resulting
// sizes into one page-resize notification, and forces a re-render pass,
// since cached raster surfaces are now the wrong resolution.
func (v *Viewer) resizeAll(width float64) {
	if width <= 0 || width == v.pageWidth || len(v.pages) == 0 {
		return
	}
	sizes := make(map[int]PageSize, len(v.pages))
	for _, p := range v.pages {
		p.resize(width)
		sizes[p.num] = PageSize{Width: p.width, Height: p.height}
	}
	v.pageWidth = width
	v.viewportW = width
	v.root.SetRect(dom.Rect{W: int(math.Floor(width)), H: int(math.Floor(v.contentHeight()))})
	v.scrollTop = v.clampScroll(v.scrollTop)
	v.emit(EventPageResize, PageResizePayload{Viewer: v, Sizes: sizes})
	v.virtualize(true)
}

// pageAspectCorrected runs when a page's first measure reveals that the
// height assigned from page 1's aspect ratio was wrong. Dependents are
// notified and the layout recomputed, since every later page's offset
// shifted.
func (v *Viewer) pageAspectCorrected(p *Page) {
	v.emit(EventPageResize, PageResizePayload{
		Viewer: v,
		Sizes:  map[int]PageSize{p.num: {Width: p.width, Height: p.height}},
	})
	v.post(func(v *Viewer) { v.virtualize(false) })
}
