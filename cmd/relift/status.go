// Status command: list applied rebuild plans from the audit table.
package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/relift/internal/audit"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List rebuild plans recorded in the audit table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := resolveDatabase()
		if dbPath == "" {
			return errors.New("no database configured; use --database or set database in config.yaml")
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		store := audit.NewStore(db)
		if err := store.EnsureTable(cmd.Context()); err != nil {
			return err
		}
		entries, err := store.Entries(cmd.Context())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("no rebuild plans applied")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.AppliedAt, e.Hash)
		}
		return nil
	},
}
