// Package autoimports declares the identifiers that page sources may use
// without importing them, and resolves the final list through the
// autoImports:extend hook.
package autoimports

// Source declares names exported by one module specifier.
type Source struct {
	From  string   `json:"from" yaml:"from"`
	Names []string `json:"names" yaml:"names"`
}

// Import is one resolved auto-import.
type Import struct {
	Name string `json:"name" yaml:"name"`
	As   string `json:"as" yaml:"as"`
	From string `json:"from" yaml:"from"`
}

// Defaults are the built-in sources.
var Defaults = []Source{
	{
		From: "#app",
		Names: []string{
			"useAsyncData", "useLazyAsyncData", "defineNuxtComponent", "useNuxtApp",
			"defineNuxtPlugin", "useRuntimeConfig", "useState", "useFetch", "useLazyFetch",
			"useCookie", "useRequestHeaders", "defineNuxtRouteMiddleware", "navigateTo",
			"abortNavigation", "addRouteMiddleware",
		},
	},
	{
		From:  "#meta",
		Names: []string{"useMeta"},
	},
	{
		From: "vue",
		Names: []string{
			// lifecycle
			"onActivated", "onBeforeMount", "onBeforeUnmount", "onBeforeUpdate",
			"onDeactivated", "onErrorCaptured", "onMounted", "onServerPrefetch",
			"onUnmounted", "onUpdated",
			// reactivity
			"computed", "customRef", "isProxy", "isReactive", "isReadonly", "isRef",
			"markRaw", "proxyRefs", "reactive", "readonly", "ref", "shallowReactive",
			"shallowReadonly", "shallowRef", "toRaw", "toRef", "toRefs", "triggerRef",
			"unref", "watch", "watchEffect",
			// component
			"defineComponent", "defineAsyncComponent", "getCurrentInstance", "h",
			"inject", "nextTick", "provide", "useAttrs", "useCssModule", "useSlots",
		},
	},
}

// Expand flattens sources into imports, in declaration order.
func Expand(sources []Source) []Import {
	var imports []Import
	for _, src := range sources {
		for _, name := range src.Names {
			imports = append(imports, Import{Name: name, As: name, From: src.From})
		}
	}
	return imports
}
