package kit

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/hooks"
)

// ErrModuleDisabled is returned by a module's Setup when the module turned
// itself off, for example because its source directory does not exist.
var ErrModuleDisabled = errors.New("module disabled")

// ModuleMeta identifies a module.
type ModuleMeta struct {
	Name      string
	ConfigKey string
}

// Module extends a session by registering hooks, templates and plugins.
type Module interface {
	Meta() ModuleMeta
	Setup(ctx context.Context, s *Session) error
}

type moduleFunc struct {
	meta  ModuleMeta
	setup func(ctx context.Context, s *Session) error
}

func (m moduleFunc) Meta() ModuleMeta { return m.meta }

func (m moduleFunc) Setup(ctx context.Context, s *Session) error { return m.setup(ctx, s) }

// DefineModule builds a Module from a setup function.
func DefineModule(meta ModuleMeta, setup func(ctx context.Context, s *Session) error) Module {
	return moduleFunc{meta: meta, setup: setup}
}

// ModuleState represents the current state of a module
type ModuleState string

const (
	ModuleStateUnknown   ModuleState = "unknown"
	ModuleStateInstalled ModuleState = "installed"
	ModuleStateDisabled  ModuleState = "disabled"
	ModuleStateError     ModuleState = "error"
)

// ModuleManager installs modules into a session in order.
type ModuleManager struct {
	session *Session

	mu        sync.RWMutex
	order     []string
	states    map[string]ModuleState
	installed bool
}

// NewModuleManager creates a manager for s.
func NewModuleManager(s *Session) *ModuleManager {
	return &ModuleManager{
		session: s,
		states:  make(map[string]ModuleState),
	}
}

// Install runs every module's Setup in order and then fires modules:done.
// It stops at the first failing module.
func (m *ModuleManager) Install(ctx context.Context, modules ...Module) error {
	m.mu.Lock()
	if m.installed {
		m.mu.Unlock()
		return errors.WrapInternal(fmt.Errorf("modules already installed"), "cannot install modules")
	}
	m.installed = true
	m.mu.Unlock()

	logger := m.session.Logger.WithComponent("kit")
	for _, mod := range modules {
		meta := mod.Meta()
		if meta.Name == "" {
			return errors.WrapInternal(fmt.Errorf("module has no name"), "cannot install module")
		}

		m.mu.Lock()
		if _, dup := m.states[meta.Name]; dup {
			m.mu.Unlock()
			return errors.WrapInternal(fmt.Errorf("module %q installed twice", meta.Name), "cannot install module")
		}
		m.order = append(m.order, meta.Name)
		m.states[meta.Name] = ModuleStateUnknown
		m.mu.Unlock()

		err := mod.Setup(ctx, m.session)
		switch {
		case err == nil:
			m.setState(meta.Name, ModuleStateInstalled)
			logger.Debug(ctx, "Module installed", "module", meta.Name)
		case errors.Is(err, ErrModuleDisabled):
			m.setState(meta.Name, ModuleStateDisabled)
			logger.Debug(ctx, "Module disabled", "module", meta.Name)
		default:
			m.setState(meta.Name, ModuleStateError)
			return errors.WrapInternal(err, fmt.Sprintf("module %q setup failed", meta.Name)).
				WithComponent(meta.Name)
		}
	}

	return hooks.Call(ctx, m.session.Hooks, HookModulesDone, m.session)
}

func (m *ModuleManager) setState(name string, state ModuleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = state
}

// Modules returns module names in installation order.
func (m *ModuleManager) Modules() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// State returns the state of a module.
func (m *ModuleManager) State(name string) ModuleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.states[name]; ok {
		return state
	}
	return ModuleStateUnknown
}
