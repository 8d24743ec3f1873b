package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"g"},
	Short:   "Generate router modules once",
	Long: `Run one generation pass: compile the pages directory, resolve layouts and
write every generated module into the build directory. Files whose content
did not change are left untouched.

Examples:
  pagegen generate
  pagegen generate --root ./web`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx, afero.NewOsFs())
	if err != nil {
		return err
	}

	b, err := p.builder(nil)
	if err != nil {
		return err
	}
	if err := b.GenerateApp(ctx); err != nil {
		p.errors.Handle(ctx, err)
		return err
	}

	result := b.LastResult()
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d file(s) in %s (%d unchanged)\n",
		len(result.Written()), p.config.BuildPath(), len(result.Unchanged()))
	return nil
}
