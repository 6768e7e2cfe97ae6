// Lower command: rewrite a changelog for SQLite without touching a database.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/relift/internal/engine"
)

var lowerCmd = &cobra.Command{
	Use:   "lower <changelog>",
	Short: "Lower a changelog for SQLite and emit the rewritten artifact",
	Long: `Lower reads a changelog document, removes the operations SQLite cannot
execute natively, and writes the rewritten document to the output
directory. Foreign-key operations are summarized as the rebuild plan that
"relift apply" would execute; no database is touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read changelog: %w", err)
		}

		outputDir, err := resolveOutputDir()
		if err != nil {
			return err
		}

		eng := engine.New(nil, engineOptions(outputDir), slog.Default())
		res, err := eng.Lower(string(src))
		if err != nil {
			return err
		}

		if res.ArtifactPath != "" {
			fmt.Println(res.ArtifactPath)
		}
		for _, table := range res.Plan.Tables() {
			fmt.Printf("rebuild %s: %d foreign-key operation(s)\n",
				table, len(res.Plan.Ops(table)))
		}
		return nil
	},
}
