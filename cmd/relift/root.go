// Root command for the relift CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/relift/internal/paths"
)

// Global flag values.
var (
	flagConfigDir string
	flagDatabase  string
	flagOutputDir string
	flagVerbose   bool
)

// cfg holds the configuration loaded from config.yaml.
// Set by PersistentPreRunE so all subcommands can use it.
var cfg *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "relift",
	Short: "relift lowers schema changelogs for SQLite and rebuilds tables",
	Long: `Relift compares a changelog of schema changes against what SQLite can
execute natively, rewrites the unsupported operations, and physically
rebuilds tables to add or drop foreign-key constraints while preserving
data, indexes, and triggers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging(flagVerbose)

		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err = loadConfig(configDir)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.relift)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "path to the target SQLite database")
	rootCmd.PersistentFlags().StringVar(&flagOutputDir, "output-dir", "", "directory for emitted changelog artifacts (default: $(CWD)/migrations)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
}

// initLogging installs a text slog handler on stderr; --verbose lowers the
// level to debug.
func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// resolveConfigDir returns the configuration directory following the
// precedence flag > RELIFT_CONFIG_DIR env > $(CWD)/.relift.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

// resolveOutputDir returns the artifact directory following the precedence
// flag > config.yaml output_dir > RELIFT_OUTPUT_DIR env > $(CWD)/migrations.
func resolveOutputDir() (string, error) {
	return paths.ResolveOutputDir(flagOutputDir, cfg.GetString(cfgKeyOutputDir))
}

// resolveDatabase returns the database path from flag or config.
func resolveDatabase() string {
	if flagDatabase != "" {
		return flagDatabase
	}
	return cfg.GetString(cfgKeyDatabase)
}
