// Apply command: lower a changelog and rebuild tables on the target database.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/relift/internal/engine"
	"github.com/mesh-intelligence/relift/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply <changelog>",
	Short: "Lower a changelog and apply the rebuild plan to the database",
	Long: `Apply lowers the changelog and, for every table with foreign-key
changes, physically rebuilds the table on the target SQLite database.
Plans already recorded in the audit table are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read changelog: %w", err)
		}

		dbPath := resolveDatabase()
		if dbPath == "" {
			return errors.New("no database configured; use --database or set database in config.yaml")
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		outputDir, err := resolveOutputDir()
		if err != nil {
			return err
		}

		eng := engine.New(db, engineOptions(outputDir), slog.Default())
		res, err := eng.Run(cmd.Context(), string(src))
		if err != nil {
			return err
		}

		if res.ArtifactPath != "" {
			fmt.Println(res.ArtifactPath)
		}
		fmt.Printf("applied %d table rebuild(s)\n", len(res.Plan.Tables()))
		return nil
	},
}

// engineOptions assembles the engine options from config and flags.
func engineOptions(outputDir string) types.Options {
	return types.Options{
		AutoNameConstraints: cfg.GetBool(cfgKeyAutoNameConstraints),
		SkipWhenEmpty:       cfg.GetBool(cfgKeySkipWhenEmpty),
		OutputDir:           outputDir,
	}
}
