// Package internal contains the implementation packages of the pagegen CLI.
//
// # Package Organization
//
//   - hooks: named hook registry with sequential and parallel dispatch
//   - kit: build session, module manager and the hooks shared by modules
//   - pages: route tree compiler, layouts and the router module
//   - macro: definePageMeta extraction and the page source transform
//   - bundler: vite and webpack adapters around one transform
//   - templates: virtual module descriptors and the write engine
//   - autoimports: auto-import sources and their declaration file
//   - builder: generation passes, coalescing and watch dispatch
//   - watcher: fsnotify watcher with per-path debouncing
//   - reload: WebSocket notifications after each pass
//   - metrics: Prometheus collectors for passes, templates and events
//   - config, logging, errors, version, jsvalue: shared infrastructure
//
// # Data Flow
//
// A session is created from the configuration and modules are installed
// into it. Modules register templates, plugins and hook callbacks. The
// builder then runs passes: app:resolve, auto-imports, prepare:types and
// template compilation into the build directory. In dev mode watcher events
// fan out through builder:watch, and any builder:generateApp request made
// during one batch results in a single pass.
package internal
