// Version command for the relift CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is the CLI version reported by "relift version".
const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relift version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("relift", version)
	},
}
