// Init command: create the configuration directory and default config.yaml.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration directory with a default config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		// PersistentPreRunE already created the directory and the default
		// file; this just confirms the location.
		fmt.Println("initialized", configDir)
		return nil
	},
}
