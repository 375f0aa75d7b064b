package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	config "github.com/mwantia/folio/internal/config/server"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management utilities",
		Long:  `Manage folio agent configuration files.`,
	}

	cmd.AddCommand(newConfigGenerateCommand())

	return cmd
}

func newConfigGenerateCommand() *cobra.Command {
	var outputDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a configuration file with all defaults",
		Long: `Generate a configuration file containing every setting with its
default value, ready to be customized for a deployment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := filepath.Join(outputDir, "config.yaml")
			if _, err := os.Stat(filename); err == nil && !overwrite {
				return fmt.Errorf("%s already exists, use --overwrite to replace it", filename)
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			data, err := yaml.Marshal(config.GetServerDefault())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write config file %s: %w", filename, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", filename)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", ".", "output directory for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing file")

	return cmd
}
