package kit

import (
	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/templates"
	"github.com/conneroisu/pagegen/internal/watcher"
)

// TypeReference is a triple-slash reference emitted into the generated
// declaration file. Exactly one of Types and Path is set.
type TypeReference struct {
	Types string `json:"types,omitempty"`
	Path  string `json:"path,omitempty"`
}

// TypesPayload is passed to prepare:types.
type TypesPayload struct {
	References []TypeReference
}

// WatchEvent is passed to builder:watch. Path is relative to the root
// directory and uses forward slashes.
type WatchEvent struct {
	Kind watcher.EventKind
	Path string
}

// AppState is the application shell resolved on every generation pass.
// Callbacks of app:resolve run in registration order and the last write
// wins.
type AppState struct {
	Dir           string
	MainComponent string
	RootComponent string
	Plugins       []PluginRef
}

// WelcomeComponent is the main component used when the project has none.
const WelcomeComponent = "@pagegen/ui/pagegen-welcome.vue"

var (
	HookPrepareTypes = hooks.Hook[*TypesPayload]{Name: "prepare:types"}
	HookBuilderWatch = hooks.Hook[WatchEvent]{Name: "builder:watch", Mode: hooks.Parallel}
	HookGenerateApp  = hooks.Hook[struct{}]{Name: "builder:generateApp"}
	HookAppResolve   = hooks.Hook[*AppState]{Name: "app:resolve"}
	HookModulesDone  = hooks.Hook[*Session]{Name: "modules:done"}

	// HookTemplatesGenerated fires after every successful generation pass.
	HookTemplatesGenerated = hooks.Hook[*templates.BatchResult]{Name: "app:templatesGenerated", Mode: hooks.Parallel}
)
