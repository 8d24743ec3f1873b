// Package cmd provides the command-line interface for pagegen.
//
// # Available Commands
//
//   - generate: run one generation pass into the build directory
//   - dev: generate, then regenerate on file-system changes
//   - routes: print the compiled route tree
//   - init: write a .pagegen.yml with the default configuration
//   - version: show build information
//
// # Command Examples
//
//	// Generate once
//	pagegen generate
//
//	// Watch and serve metrics plus reload notifications
//	pagegen dev --addr :9090
//
//	// Inspect routes as JSON
//	pagegen routes --format json
//
// Configuration is read from .pagegen.yml, from PAGEGEN_ environment
// variables and from flags, in increasing order of precedence.
package cmd
