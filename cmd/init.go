package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagegen/internal/config"
)

// ConfigFilename is the configuration file written by init and read by
// every other command.
const ConfigFilename = ".pagegen.yml"

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write a default configuration",
	Long: `Write a .pagegen.yml holding the default configuration and create the
pages and layouts directories if they do not exist.

Examples:
  pagegen init
  pagegen init ./web --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return initProject(afero.NewOsFs(), dir, initForce, cmd.OutOrStdout())
}

func initProject(fsys afero.Fs, dir string, force bool, out io.Writer) error {
	path := filepath.Join(dir, ConfigFilename)
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if exists && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	cfg := config.Default()
	for _, sub := range []string{cfg.Dir.Pages, cfg.Dir.Layouts} {
		if err := fsys.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := afero.WriteFile(fsys, path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}
