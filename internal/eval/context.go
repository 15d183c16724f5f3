package eval

import (
	"context"

	"github.com/roach88/greql/internal/graph"
)

// Context is the explicit evaluation context threaded through every
// evaluator: the caller's context.Context, the traversal context stack and
// the binding table. One Context serves one evaluation.
type Context struct {
	ctx      context.Context
	views    []graph.View
	bindings *Bindings
}

func newContext(ctx context.Context, bindings *Bindings) *Context {
	return &Context{ctx: ctx, bindings: bindings}
}

// View returns the active traversal context, nil for the whole graph.
func (c *Context) View() graph.View {
	if len(c.views) == 0 {
		return nil
	}
	return c.views[len(c.views)-1]
}

// ViewID returns the id of the active view, 0 for the whole graph.
func (c *Context) ViewID() uint64 {
	if v := c.View(); v != nil {
		return v.ID()
	}
	return 0
}

// PushView makes v the active traversal context and returns the function
// restoring the previous one. Callers defer it, so the context is restored
// on every return path:
//
//	defer c.PushView(marker)()
func (c *Context) PushView(v graph.View) (restore func()) {
	depth := len(c.views)
	c.views = append(c.views, v)
	return func() {
		clear(c.views[depth:])
		c.views = c.views[:depth]
	}
}

// Depth returns the number of pushed views.
func (c *Context) Depth() int { return len(c.views) }

// Bindings returns the binding table.
func (c *Context) Bindings() *Bindings { return c.bindings }

// Err reports cancellation of the caller's context.
func (c *Context) Err() error { return c.ctx.Err() }
