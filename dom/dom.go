// Package dom implements the retained element tree the viewer renders into.
// It is a deliberately thin stand-in for a browser DOM: elements carry a
// kind, classes, a rectangle relative to their parent, and an optional image
// or text payload. Front-ends (terminal, export) walk the tree and paint;
// the viewer core only mutates structure and geometry.
package dom

import "image"

// Kind tags what an element represents so front-ends can paint it.
type Kind int

const (
	KindContainer Kind = iota
	KindPage
	KindSurface
	KindTextLayer
	KindTextRun
	KindHighlight
)

// Rect is an element's box relative to its parent, in device pixels.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the point (x, y), in the same coordinate space
// as r, falls inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Element is one node of the retained tree. Elements are not safe for
// concurrent mutation; the viewer confines them to its scheduler goroutine.
type Element struct {
	kind     Kind
	classes  []string
	rect     Rect
	parent   *Element
	children []*Element

	// Image is the raster payload for KindSurface elements.
	Image image.Image
	// Text is the payload for KindTextRun elements.
	Text string
	// FontSize is the logical text size for KindTextRun elements.
	FontSize float64
}

// NewElement creates a detached element of the given kind.
func NewElement(kind Kind, classes ...string) *Element {
	return &Element{kind: kind, classes: append([]string(nil), classes...)}
}

func (e *Element) Kind() Kind { return e.kind }

func (e *Element) Rect() Rect       { return e.rect }
func (e *Element) SetRect(r Rect)   { e.rect = r }
func (e *Element) Parent() *Element { return e.parent }

// Children returns the element's children in paint order. The returned
// slice is the live backing array; callers must not mutate it.
func (e *Element) Children() []*Element { return e.children }

// AddClass appends a class if not already present.
func (e *Element) AddClass(class string) {
	if class == "" || e.HasClass(class) {
		return
	}
	e.classes = append(e.classes, class)
}

// RemoveClass removes a class if present.
func (e *Element) RemoveClass(class string) {
	for i, c := range e.classes {
		if c == class {
			e.classes = append(e.classes[:i], e.classes[i+1:]...)
			return
		}
	}
}

func (e *Element) HasClass(class string) bool {
	for _, c := range e.classes {
		if c == class {
			return true
		}
	}
	return false
}

// Classes returns a copy of the element's class list.
func (e *Element) Classes() []string {
	return append([]string(nil), e.classes...)
}

// AppendChild attaches child as the last child of e, detaching it from any
// previous parent first.
func (e *Element) AppendChild(child *Element) {
	if child == nil || child == e {
		return
	}
	child.Detach()
	child.parent = e
	e.children = append(e.children, child)
}

// Detach removes e from its parent, if any. The subtree under e is kept.
func (e *Element) Detach() {
	p := e.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == e {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// RemoveChildren detaches all children of e.
func (e *Element) RemoveChildren() {
	for _, c := range e.children {
		c.parent = nil
	}
	e.children = nil
}

// Walk visits e and its subtree depth-first in paint order. The visitor
// receives each element with its rectangle translated to the coordinate
// space of e's parent (absolute if e is a root). Returning false prunes the
// subtree below the visited element.
func (e *Element) Walk(fn func(el *Element, abs Rect) bool) {
	e.walk(0, 0, fn)
}

func (e *Element) walk(dx, dy int, fn func(el *Element, abs Rect) bool) {
	abs := Rect{X: e.rect.X + dx, Y: e.rect.Y + dy, W: e.rect.W, H: e.rect.H}
	if !fn(e, abs) {
		return
	}
	for _, c := range e.children {
		c.walk(abs.X, abs.Y, fn)
	}
}
