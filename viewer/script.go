package viewer

import (
	"errors"

	"github.com/yinliguo/pdf-viewer/observability"
	"github.com/yinliguo/pdf-viewer/scripting"
)

// scriptDOM adapts a Viewer into the object model exposed to scripts.
// Scripts run on their own goroutine, so reads go through the scheduler and
// mutations are posted, never awaited.
type scriptDOM struct {
	v *Viewer
}

func (d *scriptDOM) PageCount() int   { return d.v.PageCount() }
func (d *scriptDOM) CurrentPage() int { return d.v.CurrentPage() }

func (d *scriptDOM) ScrollTo(page int) {
	d.v.ScrollTo(page, 0, nil)
}

func (d *scriptDOM) GetPage(index int) (scripting.PageProxy, error) {
	size, ok := d.v.PageSizeOf(index)
	if !ok {
		return nil, errors.New("viewer: no such page")
	}
	return pageProxy{idx: index, size: size}, nil
}

func (d *scriptDOM) Alert(message string) {
	if d.v.cfg.OnAlert != nil {
		d.v.cfg.OnAlert(message)
		return
	}
	d.v.logger.Info("script alert", observability.String("message", message))
}

type pageProxy struct {
	idx  int
	size PageSize
}

func (p pageProxy) GetIndex() int      { return p.idx }
func (p pageProxy) GetWidth() float64  { return p.size.Width }
func (p pageProxy) GetHeight() float64 { return p.size.Height }

// runLoadScript executes the configured load script, if any, off the
// scheduler goroutine. Script failures are logged and never affect viewer
// state.
func (v *Viewer) runLoadScript() {
	src := v.cfg.OnLoadScript
	if src == "" {
		return
	}
	go func() {
		engine := scripting.NewEngine()
		if err := engine.RegisterDOM(&scriptDOM{v: v}); err != nil {
			v.logger.Error("script DOM registration failed", observability.Error("cause", err))
			return
		}
		if _, err := engine.Execute(v.ctx, src); err != nil {
			v.logger.Error("load script failed", observability.Error("cause", err))
		}
	}()
}
