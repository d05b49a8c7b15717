package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/burrowkit/burrow/cli/config"
	"github.com/burrowkit/burrow/cli/styles"
	"github.com/burrowkit/burrow/cli/ui"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		name   string
		module string
		driver string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a burrow.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.Exists(cwd) && !force {
				return fmt.Errorf("burrow.yaml already exists (use --force to overwrite)")
			}

			cfg := config.DefaultConfig()
			if name != "" {
				cfg.Project.Name = name
			}
			if module != "" {
				cfg.Project.Module = module
			}
			if driver != "" {
				cfg.Database.Driver = driver
			}

			if errs := cfg.Validate(); len(errs) > 0 && driver != "" {
				return fmt.Errorf("invalid configuration: %s", errs[0])
			}

			path := filepath.Join(cwd, config.ConfigFileName)
			if err := os.WriteFile(path, []byte(config.GenerateYAML(cfg)), 0644); err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(ui.SimpleBanner())
			fmt.Println()
			fmt.Println(styles.FormatSuccess("Created " + config.ConfigFileName))
			fmt.Println()
			fmt.Println(ui.ListItems([]string{
				"Review " + config.ConfigFileName,
				"Run 'burrow migrate up' for the postgres driver",
				"Run 'burrow demo' to try the engine",
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&module, "module", "", "Go module path")
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver (postgres or memory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	return cmd
}
