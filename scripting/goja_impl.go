package scripting

import (
	"context"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) RegisterDOM(dom ViewerDOM) error {
	// Expose 'app' object
	appObj := e.vm.NewObject()
	err := appObj.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Alert(msg)
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	e.vm.Set("app", appObj)

	// Expose viewer methods globally (as if 'this' is the viewer)
	e.vm.Set("pageCount", func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(dom.PageCount())
	})

	e.vm.Set("currentPage", func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(dom.CurrentPage())
	})

	e.vm.Set("scrollTo", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		dom.ScrollTo(int(call.Arguments[0].ToInteger()))
		return goja.Undefined()
	})

	e.vm.Set("getPage", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		idx := int(call.Arguments[0].ToInteger())
		page, err := dom.GetPage(idx)
		if err != nil || page == nil {
			return goja.Null()
		}
		return e.vm.ToValue(&pageProxyWrapper{p: page})
	})

	return nil
}

type pageProxyWrapper struct {
	p PageProxy
}

func (p *pageProxyWrapper) GetIndex() int      { return p.p.GetIndex() }
func (p *pageProxyWrapper) GetWidth() float64  { return p.p.GetWidth() }
func (p *pageProxyWrapper) GetHeight() float64 { return p.p.GetHeight() }
