package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/dircompare/pkg/config"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or create the dircompare configuration file.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Comparison: %s\n", cfg.Compare.Variant)
	fmt.Fprintf(w, "Symlinks: %s\n", cfg.Compare.Symlinks)
	fmt.Fprintf(w, "File Time Tolerance: %ds\n", cfg.Compare.FileTimeTolerance)
	fmt.Fprintf(w, "Direction: %s (conflicts: %s)\n", cfg.Compare.Direction.Variant, cfg.Compare.Direction.Conflicts)
	fmt.Fprintf(w, "Scan Workers: %d\n", cfg.Performance.ScanWorkers)
	fmt.Fprintf(w, "Content Workers: %d\n", cfg.Performance.ContentWorkers)
	fmt.Fprintf(w, "Content Memory: %s\n", humanize.IBytes(uint64(cfg.Performance.ContentMemory)))
	fmt.Fprintf(w, "Output Format: %s\n", cfg.Output.Format)
	fmt.Fprintf(w, "Log Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "Log Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "Lock Directories: %t\n", cfg.Run.LockDirectories)

	for i, p := range cfg.FolderPairs() {
		fmt.Fprintf(w, "Pair %d: %s <-> %s (%s)\n", i+1, p.LeftPhrase, p.RightPhrase, p.Variant)
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := GetGlobalFlags().ConfigFile
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if err := config.SaveToFile(cfg, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")

	return cmd
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if path := GetGlobalFlags().ConfigFile; path != "" {
		return config.LoadFromFile(path)
	}
	return config.LoadDefault()
}
