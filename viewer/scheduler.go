package viewer

import (
	"time"

	"github.com/yinliguo/pdf-viewer/observability"
)

// The viewer is an actor: a single scheduler goroutine owns every page,
// element, and geometry field. Public methods and front-end commands are
// delivered to it as closures over one channel, and asynchronous render
// completions come back the same way, so ordering within a pass is
// deterministic and no locking is needed.

// run is the scheduler loop. It keeps consuming commands after Destroy so
// that in-flight render completions can still be delivered and discarded;
// it exits once the viewer is destroyed and nothing is outstanding.
func (v *Viewer) run() {
	for fn := range v.cmds {
		fn(v)
		if v.destroyed && v.inflight == 0 {
			v.finalize()
			return
		}
	}
}

// post delivers fn to the scheduler goroutine. It reports false when the
// viewer has fully shut down; late completions take that path and are
// dropped silently, which is an expected race rather than a failure.
func (v *Viewer) post(fn func(*Viewer)) bool {
	select {
	case <-v.closed:
		return false
	case v.cmds <- fn:
		return true
	}
}

// do delivers fn and waits for it to execute. Must not be called from the
// scheduler goroutine itself (that is, from inside an event handler).
func (v *Viewer) do(fn func(*Viewer)) bool {
	done := make(chan struct{})
	if !v.post(func(v *Viewer) {
		fn(v)
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-v.closed:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (v *Viewer) renderStarted()  { v.inflight++ }
func (v *Viewer) renderFinished() { v.inflight-- }

func (v *Viewer) finalize() {
	v.debounce.stop()
	if v.doc != nil {
		if err := v.doc.Close(); err != nil {
			v.logger.Warn("document close failed", observability.Error("cause", err))
		}
		v.doc = nil
	}
	v.emitter.Clear()
	close(v.closed)
}

// debouncer coalesces scroll-triggered virtualization: only the trailing
// edge of a burst fires, and the pass reads the latest scroll position at
// fire time. Confined to the scheduler goroutine.
type debouncer struct {
	d     time.Duration
	fire  func()
	timer *time.Timer
}

func newDebouncer(d time.Duration, fire func()) *debouncer {
	return &debouncer{d: d, fire: fire}
}

func (b *debouncer) trigger() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.d, b.fire)
}

func (b *debouncer) stop() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Input command handlers, executed on the scheduler goroutine.

func (v *Viewer) onScroll(top, left float64, user bool) {
	if v.destroyed || len(v.pages) == 0 {
		return
	}
	if user {
		// A user scroll takes over from any running animation.
		v.animator.Stop()
	}
	top = v.clampScroll(top)
	if top == v.scrollTop && left == v.scrollLeft {
		return
	}
	v.scrollTop = top
	v.scrollLeft = left
	v.emit(EventScroll, ScrollPayload{Viewer: v, Top: top, Left: left})
	v.debounce.trigger()
}

func (v *Viewer) onClick(x, y float64) {
	if v.destroyed || len(v.pages) == 0 {
		return
	}
	contentY := y + v.scrollTop
	p, top := v.pageAt(contentY)
	if p == nil {
		return
	}
	hits := p.highlightsAt(int(x), int(contentY-top))
	if len(hits) == 0 {
		return
	}
	payload := HighlightClickPayload{Viewer: v}
	for _, id := range hits {
		payload.Hits = append(payload.Hits, HighlightHit{Page: p.num, ID: id})
	}
	v.emit(EventHighlightClick, payload)
}

func (v *Viewer) onViewportSize(w, h float64) {
	if v.destroyed {
		return
	}
	if h > 0 {
		v.viewportH = h
	}
	if w > 0 && w != v.pageWidth && len(v.pages) > 0 {
		v.resizeAll(w)
		return
	}
	if w > 0 {
		v.viewportW = w
	}
	if len(v.pages) > 0 {
		v.scrollTop = v.clampScroll(v.scrollTop)
		v.virtualize(false)
	}
}
