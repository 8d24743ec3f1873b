package hooks

import (
	"context"
	"fmt"
)

// Hook is a typed handle for a hook name. Packages that own a payload type
// declare their hooks as package variables, e.g.
//
//	var HookExtend = hooks.Hook[*[]*RouteNode]{Name: "pages:extend"}
type Hook[P any] struct {
	Name string
	Mode Mode
}

// On registers a typed callback.
func On[P any](r *Registry, h Hook[P], fn func(ctx context.Context, payload P) error) Registration {
	r.SetMode(h.Name, h.Mode)
	return r.Register(h.Name, func(ctx context.Context, payload any) error {
		if payload == nil {
			var zero P
			return fn(ctx, zero)
		}
		p, ok := payload.(P)
		if !ok {
			var zero P
			return fmt.Errorf("payload has type %T, want %T", payload, zero)
		}
		return fn(ctx, p)
	})
}

// Call fires a typed hook.
func Call[P any](ctx context.Context, r *Registry, h Hook[P], payload P) error {
	return r.fire(ctx, h.Name, h.Mode, payload)
}
