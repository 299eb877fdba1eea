package main

import (
	"fmt"
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/yinliguo/pdf-viewer/dom"
	"github.com/yinliguo/pdf-viewer/events"
	"github.com/yinliguo/pdf-viewer/viewer"
)

// Terminal cells are mapped to viewer units at a fixed density. A cell is
// roughly twice as tall as wide, and the half-block glyph doubles the
// vertical raster resolution.
const (
	cellW = 8.0
	cellH = 16.0
)

// ui drives one tcell screen over a viewer. A rebuild (from the file
// watcher) swaps the viewer under the mutex.
type ui struct {
	screen tcell.Screen

	mu     sync.Mutex
	v      *viewer.Viewer
	notice string

	redraw chan struct{}
	quit   chan struct{}
	offs   []func()
}

func newUI(v *viewer.Viewer) (*ui, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	u := &ui{
		screen: screen,
		redraw: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	u.attach(v)
	return u, nil
}

// viewportSize converts the drawable screen area (minus the status row)
// into viewer units.
func (u *ui) viewportSize() (w, h float64) {
	cols, rows := u.screen.Size()
	if rows > 1 {
		rows--
	}
	return float64(cols) * cellW, float64(rows) * cellH
}

func (u *ui) attach(v *viewer.Viewer) {
	u.mu.Lock()
	old := u.v
	oldOffs := u.offs
	u.v = v
	u.offs = nil
	for _, t := range []events.Type{
		viewer.EventLoad, viewer.EventScroll, viewer.EventPageChange,
		viewer.EventPageResize, viewer.EventError,
	} {
		u.offs = append(u.offs, v.On(t, func(interface{}) { u.requestRedraw() }))
	}
	u.offs = append(u.offs, v.On(viewer.EventHighlightClick, func(payload interface{}) {
		p := payload.(viewer.HighlightClickPayload)
		u.mu.Lock()
		u.notice = fmt.Sprintf("hit %d highlight(s) on page %d", len(p.Hits), p.Hits[0].Page)
		u.mu.Unlock()
		u.requestRedraw()
	}))
	u.mu.Unlock()

	for _, off := range oldOffs {
		off()
	}
	if old != nil {
		go old.Destroy()
	}
	u.requestRedraw()
}

func (u *ui) current() *viewer.Viewer {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.v
}

func (u *ui) requestRedraw() {
	select {
	case u.redraw <- struct{}{}:
	default:
	}
}

// run is the UI event loop. It returns when the user quits.
func (u *ui) run() {
	keys := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case keys <- ev:
			case <-u.quit:
				return
			}
		}
	}()

	u.paint()
	for {
		select {
		case <-u.redraw:
			u.paint()
		case ev := <-keys:
			if !u.handleEvent(ev) {
				close(u.quit)
				return
			}
		}
	}
}

func (u *ui) handleEvent(ev tcell.Event) bool {
	v := u.current()
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		w, h := u.viewportSize()
		v.Dispatch(viewer.ViewportSize{Width: w, Height: h})
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			col, row := ev.Position()
			v.Dispatch(viewer.ClickAt{
				X: (float64(col) + 0.5) * cellW,
				Y: (float64(row) + 0.5) * cellH,
			})
		}
	case *tcell.EventKey:
		top, left := v.ScrollOffset()
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyDown || ev.Rune() == 'j':
			v.Dispatch(viewer.Scroll{Top: top + 2*cellH, Left: left})
		case ev.Key() == tcell.KeyUp || ev.Rune() == 'k':
			v.Dispatch(viewer.Scroll{Top: top - 2*cellH, Left: left})
		case ev.Key() == tcell.KeyPgDn || ev.Rune() == ' ':
			_, vh := u.viewportSize()
			v.Dispatch(viewer.Scroll{Top: top + vh, Left: left})
		case ev.Key() == tcell.KeyPgUp || ev.Rune() == 'b':
			_, vh := u.viewportSize()
			v.Dispatch(viewer.Scroll{Top: top - vh, Left: left})
		case ev.Rune() == 'g':
			v.Dispatch(viewer.Scroll{Top: 0, Left: left})
		case ev.Rune() == 'G':
			v.Dispatch(viewer.Scroll{Top: 1e12, Left: left})
		case ev.Rune() == 'n':
			v.ScrollTo(v.CurrentPage()+1, 0, nil)
		case ev.Rune() == 'p':
			v.ScrollTo(v.CurrentPage()-1, 0, nil)
		}
	}
	u.requestRedraw()
	return true
}

// paint renders one frame from a consistent snapshot of the element tree.
func (u *ui) paint() {
	v := u.current()
	u.screen.Clear()
	cols, rows := u.screen.Size()
	drawRows := rows - 1

	v.Snapshot(func(root *dom.Element, scrollTop, scrollLeft float64) {
		root.Walk(func(el *dom.Element, abs dom.Rect) bool {
			switch el.Kind() {
			case dom.KindPage:
				u.paintPageFrame(abs, scrollTop, scrollLeft, drawRows)
			case dom.KindSurface:
				u.paintSurface(el, abs, scrollTop, scrollLeft, drawRows)
			case dom.KindTextRun:
				u.paintTextRun(el, abs, scrollTop, scrollLeft, drawRows)
			case dom.KindHighlight:
				u.paintHighlight(abs, scrollTop, scrollLeft, drawRows)
			}
			return true
		})
	})

	u.paintStatus(v, cols, rows-1)
	u.screen.Show()
}

// cellRange converts an absolute element rect to screen cell bounds,
// clipped to the drawable area.
func cellRange(abs dom.Rect, scrollTop, scrollLeft float64, drawRows int) (x0, y0, x1, y1 int) {
	x0 = int((float64(abs.X) - scrollLeft) / cellW)
	y0 = int((float64(abs.Y) - scrollTop) / cellH)
	x1 = int((float64(abs.X+abs.W) - scrollLeft) / cellW)
	y1 = int((float64(abs.Y+abs.H) - scrollTop) / cellH)
	if y0 < 0 {
		y0 = 0
	}
	if y1 > drawRows {
		y1 = drawRows
	}
	if x0 < 0 {
		x0 = 0
	}
	return x0, y0, x1, y1
}

func (u *ui) paintPageFrame(abs dom.Rect, scrollTop, scrollLeft float64, drawRows int) {
	x0, y0, x1, y1 := cellRange(abs, scrollTop, scrollLeft, drawRows)
	style := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			u.screen.SetContent(x, y, '·', nil, style)
		}
	}
}

// paintSurface samples the page raster into cells, two vertical samples per
// cell via the upper-half-block glyph.
func (u *ui) paintSurface(el *dom.Element, abs dom.Rect, scrollTop, scrollLeft float64, drawRows int) {
	img := el.Image
	if img == nil || abs.W <= 0 || abs.H <= 0 {
		return
	}
	b := img.Bounds()
	x0, y0, x1, y1 := cellRange(abs, scrollTop, scrollLeft, drawRows)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			// Cell center back into element-relative fractions.
			fx := (float64(x)+0.5)*cellW + scrollLeft
			fyTop := float64(y)*cellH + cellH*0.25 + scrollTop
			fyBot := float64(y)*cellH + cellH*0.75 + scrollTop
			upper := samplePixel(img, b, (fx-float64(abs.X))/float64(abs.W), (fyTop-float64(abs.Y))/float64(abs.H))
			lower := samplePixel(img, b, (fx-float64(abs.X))/float64(abs.W), (fyBot-float64(abs.Y))/float64(abs.H))
			style := tcell.StyleDefault.Foreground(upper).Background(lower)
			u.screen.SetContent(x, y, '▀', nil, style)
		}
	}
}

func samplePixel(img image.Image, b image.Rectangle, fx, fy float64) tcell.Color {
	if fx < 0 {
		fx = 0
	}
	if fx > 1 {
		fx = 1
	}
	if fy < 0 {
		fy = 0
	}
	if fy > 1 {
		fy = 1
	}
	px := b.Min.X + int(fx*float64(b.Dx()-1))
	py := b.Min.Y + int(fy*float64(b.Dy()-1))
	r, g, bl, _ := img.At(px, py).RGBA()
	return tcell.NewRGBColor(int32(r>>8), int32(g>>8), int32(bl>>8))
}

func (u *ui) paintTextRun(el *dom.Element, abs dom.Rect, scrollTop, scrollLeft float64, drawRows int) {
	x := int((float64(abs.X) - scrollLeft) / cellW)
	y := int((float64(abs.Y) - scrollTop) / cellH)
	if y < 0 || y >= drawRows {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	for i, r := range el.Text {
		u.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (u *ui) paintHighlight(abs dom.Rect, scrollTop, scrollLeft float64, drawRows int) {
	x0, y0, x1, y1 := cellRange(abs, scrollTop, scrollLeft, drawRows)
	style := tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c, _, _, _ := u.screen.GetContent(x, y)
			if c == 0 {
				c = ' '
			}
			u.screen.SetContent(x, y, c, nil, style)
		}
	}
}

func (u *ui) paintStatus(v *viewer.Viewer, cols, row int) {
	if row < 0 {
		return
	}
	top, _ := v.ScrollOffset()
	u.mu.Lock()
	notice := u.notice
	u.mu.Unlock()
	status := fmt.Sprintf(" page %d/%d  offset %.0f  [j/k scroll, n/p page, g/G ends, q quit]",
		v.CurrentPage(), v.PageCount(), top)
	if notice != "" {
		status += "  " + notice
	}
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(status) {
			r = rune(status[x])
		}
		u.screen.SetContent(x, row, r, nil, style)
	}
}

func (u *ui) close() {
	u.screen.Fini()
}
