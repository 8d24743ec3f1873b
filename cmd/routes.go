package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagegen/internal/pages"
)

var routesFormat string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the compiled route tree",
	Long: `Compile the pages directory and print the resulting routes in matching
order. Nested routes are indented under their parent.

Examples:
  pagegen routes
  pagegen routes --format json
  pagegen routes --format yaml`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&routesFormat, "format", "f", "text", "output format (text, json, yaml)")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx, afero.NewOsFs())
	if err != nil {
		return err
	}

	routes, err := pages.Routes(ctx, p.session)
	if err != nil {
		p.errors.Handle(ctx, err)
		return err
	}

	out := cmd.OutOrStdout()
	info := pages.Describe(routes)

	switch routesFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(info)
	case "text":
		if len(info) == 0 {
			fmt.Fprintln(out, "No routes found")
			return nil
		}
		printRoutes(out, info, 0)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", routesFormat)
	}
}

func printRoutes(w io.Writer, routes []pages.RouteInfo, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, r := range routes {
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s%-24s %-20s %s\n", indent, r.Path, name, r.File)
		printRoutes(w, r.Children, depth+1)
	}
}
