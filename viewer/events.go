package viewer

import (
	"github.com/yinliguo/pdf-viewer/events"
)

// Event streams emitted by a Viewer. Subscribe with Viewer.On; payload types
// are listed per event.
const (
	// EventLoad fires once the document is open and the page sequence is
	// laid out. Payload: LoadPayload.
	EventLoad events.Type = "load"
	// EventPageChange fires when the current page changes. Payload:
	// PageChangePayload.
	EventPageChange events.Type = "page-change"
	// EventPageResize fires when page geometry changes outside of a plain
	// scroll: aspect correction on first measure, or a viewer resize.
	// Payload: PageResizePayload.
	EventPageResize events.Type = "page-resize"
	// EventScroll fires on every accepted scroll offset change. Payload:
	// ScrollPayload.
	EventScroll events.Type = "scroll"
	// EventHighlightClick fires when a dispatched click hits one or more
	// highlight overlays. Payload: HighlightClickPayload.
	EventHighlightClick events.Type = "highlight-click"
	// EventError reports open and configuration failures. Per-layer render
	// failures are logged, not emitted. Payload: ErrorPayload.
	EventError events.Type = "error"
)

// LoadPayload accompanies EventLoad.
type LoadPayload struct {
	Viewer *Viewer
	Pages  int
}

// PageChangePayload accompanies EventPageChange.
type PageChangePayload struct {
	Viewer *Viewer
	Page   int
	Total  int
}

// PageSize is a page's logical size in viewport units.
type PageSize struct {
	Width, Height float64
}

// PageResizePayload accompanies EventPageResize. Sizes maps 1-based page
// numbers to their new logical size.
type PageResizePayload struct {
	Viewer *Viewer
	Sizes  map[int]PageSize
}

// ScrollPayload accompanies EventScroll.
type ScrollPayload struct {
	Viewer    *Viewer
	Top, Left float64
}

// HighlightHit identifies one highlight under a queried point.
type HighlightHit struct {
	Page int
	ID   HighlightID
}

// HighlightClickPayload accompanies EventHighlightClick.
type HighlightClickPayload struct {
	Viewer *Viewer
	Hits   []HighlightHit
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Viewer *Viewer
	Err    error
}

// Command is an input event produced by a front-end and delivered through
// Viewer.Dispatch. Front-ends never reach into viewer internals; all I/O
// arrives as typed commands.
type Command interface{ isCommand() }

// Scroll reports a new scroll offset in viewport units.
type Scroll struct {
	Top, Left float64
}

// ClickAt reports a pointer click in viewport coordinates (relative to the
// visible area's top-left).
type ClickAt struct {
	X, Y float64
}

// ViewportSize reports the available size of the viewer's container.
type ViewportSize struct {
	Width, Height float64
}

func (Scroll) isCommand()       {}
func (ClickAt) isCommand()      {}
func (ViewportSize) isCommand() {}
