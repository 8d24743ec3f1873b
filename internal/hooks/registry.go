// Package hooks implements the named, ordered hook pipeline that lets
// extension modules observe and mutate build state.
//
// A Registry is an ordinary value owned by one session; nothing here is a
// process global. Callbacks for a hook run in registration order. Hooks whose
// payload is shared mutable state run sequentially so every callback sees the
// mutations of the ones registered before it; purely observational hooks may
// be declared Parallel.
//
// Error policy: the first failing callback of a sequential hook aborts the
// remaining callbacks of that invocation and is returned to the caller as a
// HookCallbackError. For parallel hooks the siblings' context is cancelled
// and the first error is returned. Other invocations are unaffected.
package hooks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/logging"
)

// Mode selects how callbacks of one hook are executed.
type Mode int

const (
	// Sequential runs callbacks one after another in registration order.
	Sequential Mode = iota
	// Parallel runs callbacks concurrently and waits for all of them.
	Parallel
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Callback is the untyped form of a hook callback.
type Callback func(ctx context.Context, payload any) error

// Registration records one callback registered against a hook name.
type Registration struct {
	Hook    string
	Ordinal int

	callback Callback
}

// Registry is a named-event bus scoped to one compilation session.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[string][]Registration
	modes  map[string]Mode
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		hooks:  make(map[string][]Registration),
		modes:  make(map[string]Mode),
		logger: logger.WithComponent("hooks"),
	}
}

// Register appends a callback for name. Registrations are never removed.
func (r *Registry) Register(name string, fn Callback) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := Registration{
		Hook:     name,
		Ordinal:  len(r.hooks[name]),
		callback: fn,
	}
	r.hooks[name] = append(r.hooks[name], reg)
	return reg
}

// SetMode declares how callbacks for name are executed. Undeclared hooks
// are sequential.
func (r *Registry) SetMode(name string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes[name] = mode
}

// Registrations returns a snapshot of the callbacks registered for name.
func (r *Registry) Registrations(name string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, len(r.hooks[name]))
	copy(out, r.hooks[name])
	return out
}

// Fire invokes every callback registered for name and waits for them.
func (r *Registry) Fire(ctx context.Context, name string, payload any) error {
	r.mu.RLock()
	mode := r.modes[name]
	r.mu.RUnlock()

	return r.fire(ctx, name, mode, payload)
}

func (r *Registry) fire(ctx context.Context, name string, mode Mode, payload any) error {
	regs := r.Registrations(name)
	if len(regs) == 0 {
		return nil
	}

	r.logger.Debug(ctx, "Firing hook", "hook", name, "callbacks", len(regs), "mode", mode.String())

	if mode == Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, reg := range regs {
			reg := reg
			g.Go(func() error {
				return invoke(gctx, reg, payload)
			})
		}
		return g.Wait()
	}

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := invoke(ctx, reg, payload); err != nil {
			return err
		}
	}
	return nil
}

func invoke(ctx context.Context, reg Registration, payload any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewHookCallbackError(reg.Hook, reg.Ordinal,
				fmt.Errorf("panic: %v\n%s", p, debug.Stack()))
		}
	}()

	if cbErr := reg.callback(ctx, payload); cbErr != nil {
		return errors.NewHookCallbackError(reg.Hook, reg.Ordinal, cbErr)
	}
	return nil
}
