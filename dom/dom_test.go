package dom

import "testing"

func TestAppendDetach(t *testing.T) {
	root := NewElement(KindContainer)
	a := NewElement(KindPage)
	b := NewElement(KindPage)
	root.AppendChild(a)
	root.AppendChild(b)
	if len(root.Children()) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(root.Children()))
	}
	if a.Parent() != root {
		t.Fatal("Expected parent to be root")
	}

	a.Detach()
	if len(root.Children()) != 1 || root.Children()[0] != b {
		t.Fatalf("Expected only b to remain, got %d children", len(root.Children()))
	}
	if a.Parent() != nil {
		t.Fatal("Expected detached element to have no parent")
	}

	// Re-appending moves rather than duplicates.
	other := NewElement(KindContainer)
	other.AppendChild(b)
	if len(root.Children()) != 0 {
		t.Fatal("Expected b to be moved out of root")
	}
}

func TestClasses(t *testing.T) {
	e := NewElement(KindHighlight, "hl")
	e.AddClass("hl") // duplicate ignored
	e.AddClass("focus")
	if !e.HasClass("hl") || !e.HasClass("focus") {
		t.Fatalf("Expected both classes, got %v", e.Classes())
	}
	if got := len(e.Classes()); got != 2 {
		t.Fatalf("Expected 2 classes, got %d", got)
	}
	e.RemoveClass("focus")
	if e.HasClass("focus") {
		t.Fatal("Expected focus class removed")
	}
}

func TestWalkTranslatesRects(t *testing.T) {
	root := NewElement(KindContainer)
	root.SetRect(Rect{X: 0, Y: 0, W: 100, H: 100})
	page := NewElement(KindPage)
	page.SetRect(Rect{X: 10, Y: 20, W: 50, H: 60})
	hl := NewElement(KindHighlight)
	hl.SetRect(Rect{X: 5, Y: 5, W: 10, H: 10})
	root.AppendChild(page)
	page.AppendChild(hl)

	var got Rect
	root.Walk(func(el *Element, abs Rect) bool {
		if el == hl {
			got = abs
		}
		return true
	})
	want := Rect{X: 15, Y: 25, W: 10, H: 10}
	if got != want {
		t.Fatalf("Expected absolute rect %+v, got %+v", want, got)
	}
}

func TestWalkPrune(t *testing.T) {
	root := NewElement(KindContainer)
	page := NewElement(KindPage)
	hl := NewElement(KindHighlight)
	root.AppendChild(page)
	page.AppendChild(hl)

	visited := 0
	root.Walk(func(el *Element, _ Rect) bool {
		visited++
		return el.Kind() != KindPage
	})
	if visited != 2 {
		t.Fatalf("Expected pruned walk to visit 2 elements, got %d", visited)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 5, H: 5}
	if !r.Contains(10, 10) || !r.Contains(14, 14) {
		t.Fatal("Expected corner points inside")
	}
	if r.Contains(15, 10) || r.Contains(9, 12) {
		t.Fatal("Expected outside points excluded")
	}
}
