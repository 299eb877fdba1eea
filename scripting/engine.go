// Package scripting runs embedder-supplied scripts (for example a document's
// open action) against a controlled view of the viewer.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute executes a script in the context of the viewer.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterDOM registers the viewer object model with the engine.
	RegisterDOM(dom ViewerDOM) error
}

// ViewerDOM exposes the viewer to the scripting engine. It provides a safe,
// controlled API for scripts to observe and steer the view; scripts never
// touch viewer internals directly.
type ViewerDOM interface {
	// PageCount returns the total number of pages, 0 before load.
	PageCount() int

	// CurrentPage returns the 1-based current page number.
	CurrentPage() int

	// ScrollTo requests an animated scroll to the 1-based page.
	ScrollTo(page int)

	// GetPage returns a page proxy by index (0-based).
	GetPage(index int) (PageProxy, error)

	// Alert shows an alert (if supported by the embedding front-end).
	Alert(message string)
}

// PageProxy represents a page exposed to scripts.
type PageProxy interface {
	GetIndex() int
	GetWidth() float64
	GetHeight() float64
}
