package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/TheMichaelB/vaultcopy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "vaultcopy.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return errors.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.SaveExample(path); err != nil {
			printError("Failed to write config: %v", err)
			return err
		}

		printSuccess("Wrote %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			printJSON(cfg)
			return nil
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false,
		"Overwrite an existing file")
}
