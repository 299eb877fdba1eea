package viewer

import (
	"math"

	"github.com/google/uuid"
	"github.com/yinliguo/pdf-viewer/dom"
	"github.com/yinliguo/pdf-viewer/observability"
)

// HighlightID is an opaque, process-unique highlight identifier. IDs are
// random 128-bit tokens and are never reused, so a stale id held by an
// embedder can never alias a newer highlight.
type HighlightID string

// RectF is a rectangle in origin-page (unscaled) units.
type RectF struct {
	X, Y, W, H float64
}

// highlightRecord stores one highlight. The rectangle is kept in origin
// units; the overlay's pixel position is recomputed from the page scale on
// every attach and never cached scaled.
type highlightRecord struct {
	id          HighlightID
	rect        RectF
	visualClass string
	focusClass  string
	overlay     *dom.Element
}

func (rec *highlightRecord) detach() {
	if rec.overlay != nil {
		rec.overlay.Detach()
		rec.overlay = nil
	}
}

// highlight stores a new highlight and materializes its overlay immediately
// when the page has attached content; otherwise attachment waits for the
// next successful render completion.
func (p *Page) highlight(rect RectF, visualClass string) HighlightID {
	id := HighlightID(uuid.NewString())
	rec := &highlightRecord{id: id, rect: rect, visualClass: visualClass}
	p.highlights[id] = rec
	p.hlOrder = append(p.hlOrder, id)
	p.v.meter.Count(observability.MetricHighlightCount, 1)
	if p.Loaded() && p.surface != nil {
		p.attachHighlight(rec)
	}
	return id
}

// attachHighlight materializes (or repositions) the overlay element for rec
// at the page's current scale.
func (p *Page) attachHighlight(rec *highlightRecord) {
	if rec.overlay == nil {
		rec.overlay = dom.NewElement(dom.KindHighlight, rec.visualClass)
		if rec.focusClass != "" {
			rec.overlay.AddClass(rec.focusClass)
		}
	}
	scale := p.Scale()
	rec.overlay.SetRect(dom.Rect{
		X: int(math.Floor(rec.rect.X * scale)),
		Y: int(math.Floor(rec.rect.Y * scale)),
		W: int(math.Floor(rec.rect.W * scale)),
		H: int(math.Floor(rec.rect.H * scale)),
	})
	if rec.overlay.Parent() == nil {
		p.container.AppendChild(rec.overlay)
	}
}

// syncHighlights runs after a render pass attaches content: every stored
// highlight is (re)positioned, materializing overlays that were torn down
// by a revoke or never attached.
func (p *Page) syncHighlights() {
	for _, id := range p.hlOrder {
		if rec := p.highlights[id]; rec != nil {
			p.attachHighlight(rec)
		}
	}
}

// removeHighlight detaches the overlay; with forget it also drops the
// record, otherwise the highlight can be shown again by a later render.
func (p *Page) removeHighlight(id HighlightID, forget bool) {
	rec := p.highlights[id]
	if rec == nil {
		return
	}
	rec.detach()
	if forget {
		delete(p.highlights, id)
		for i, h := range p.hlOrder {
			if h == id {
				p.hlOrder = append(p.hlOrder[:i], p.hlOrder[i+1:]...)
				break
			}
		}
	}
}

// removeAllHighlights forgets every highlight on the page.
func (p *Page) removeAllHighlights() {
	for _, rec := range p.highlights {
		rec.detach()
	}
	p.highlights = make(map[HighlightID]*highlightRecord)
	p.hlOrder = nil
}

// highlightFocus adds the focus class to the overlay without touching the
// stored rectangle.
func (p *Page) highlightFocus(id HighlightID, focusClass string) {
	rec := p.highlights[id]
	if rec == nil {
		return
	}
	rec.focusClass = focusClass
	if rec.overlay != nil {
		rec.overlay.AddClass(focusClass)
	}
}

func (p *Page) highlightBlur(id HighlightID) {
	rec := p.highlights[id]
	if rec == nil || rec.focusClass == "" {
		return
	}
	if rec.overlay != nil {
		rec.overlay.RemoveClass(rec.focusClass)
	}
	rec.focusClass = ""
}

// highlightsAt returns ids of materialized overlays containing the point,
// given in rendered pixel space relative to the page's top-left. Highlights
// without an attached overlay are skipped.
func (p *Page) highlightsAt(x, y int) []HighlightID {
	if p.state == pageDestroyed {
		return nil
	}
	var hits []HighlightID
	for _, id := range p.hlOrder {
		rec := p.highlights[id]
		if rec == nil || rec.overlay == nil || rec.overlay.Parent() == nil {
			continue
		}
		if rec.overlay.Rect().Contains(x, y) {
			hits = append(hits, id)
		}
	}
	return hits
}
