package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdejongh/dircompare/pkg/config"
	"github.com/sdejongh/dircompare/pkg/engine"
	"github.com/sdejongh/dircompare/pkg/logging"
	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/output"
	"github.com/sdejongh/dircompare/pkg/storage"
)

// Exit codes of the compare command
const (
	ExitEqual       = 0
	ExitDifferences = 1
	ExitFailure     = 2
)

// ExitError carries the process exit code of a finished command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// CompareFlags holds compare command flags
type CompareFlags struct {
	Left           []string
	Right          []string
	Variant        string
	Symlinks       string
	Include        []string
	Exclude        []string
	Direction      string
	Conflicts      string
	Output         string
	Report         string
	Bandwidth      string
	ContentWorkers int
	NonInteractive bool
	NoLock         bool
	NoProgress     bool
}

var compareFlags CompareFlags

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare folder pairs",
		Long: `Compare the left and right folder of every pair and report differences.
Pairs are given with repeated --left/--right flags or taken from the configuration file.
Exit status is 0 when all pairs are equal, 1 when differences were found and 2 on errors.`,
		RunE: runCompare,
	}

	cmd.Flags().StringArrayVarP(&compareFlags.Left, "left", "l", nil, "left folder (repeat for several pairs)")
	cmd.Flags().StringArrayVarP(&compareFlags.Right, "right", "r", nil, "right folder (repeat for several pairs)")

	cmd.Flags().StringVarP(&compareFlags.Variant, "compare", "c", "", "comparison: time-size, content")
	cmd.Flags().StringVar(&compareFlags.Symlinks, "symlinks", "", "symbolic links: direct, follow")
	cmd.Flags().StringSliceVar(&compareFlags.Include, "include", nil, "include patterns (gitignore syntax)")
	cmd.Flags().StringSliceVar(&compareFlags.Exclude, "exclude", nil, "exclude patterns (gitignore syntax)")
	cmd.Flags().StringVar(&compareFlags.Direction, "direction", "", "planned sync direction: two-way, mirror, update")
	cmd.Flags().StringVar(&compareFlags.Conflicts, "conflicts", "", "conflict resolution: none, left-wins, right-wins, newer")
	cmd.Flags().StringVarP(&compareFlags.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().StringVar(&compareFlags.Report, "report", "", "write report to file (.json, .json.gz, .json.zst or text)")
	cmd.Flags().StringVarP(&compareFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit for content comparison (e.g., \"10MB\", \"1GiB\")")
	cmd.Flags().IntVarP(&compareFlags.ContentWorkers, "parallel", "p", 0, "number of parallel content comparisons")
	cmd.Flags().BoolVar(&compareFlags.NonInteractive, "non-interactive", false, "never prompt; ignore errors and treat missing folders as empty")
	cmd.Flags().BoolVar(&compareFlags.NoLock, "no-lock", false, "do not create lock files in the compared folders")
	cmd.Flags().BoolVar(&compareFlags.NoProgress, "no-progress", false, "hide progress bars")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	global := GetGlobalFlags()
	if err := applyFlagsToConfig(cfg, &compareFlags, global); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pairs := cfg.FolderPairs()
	if len(pairs) == 0 {
		return fmt.Errorf("no folder pairs: use --left/--right or add pairs to the configuration file")
	}

	logger, err := createLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	interactive := cfg.Run.AllowUserInteraction && output.IsInteractiveTerminal()
	console := output.NewConsoleCallback(output.ConsoleOptions{
		Interactive: interactive,
		Progress:    cfg.Output.Progress,
		Quiet:       cfg.Output.Quiet,
		Color:       cfg.Output.Color,
		OnInterrupt: cancel,
	})

	session := engine.NewSession(engine.New(storage.NewLocal(), console, logger, engineOptions(cfg, interactive)))
	err = session.Run(ctx, pairs)
	console.Finish()
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	report := output.BuildReport(session.Result())

	colorize := cfg.Output.Color && term.IsTerminal(int(os.Stdout.Fd()))
	formatter, err := output.NewFormatter(cfg.Output.Format, colorize)
	if err != nil {
		return err
	}
	if !cfg.Output.Quiet || cfg.Output.Format == "json" {
		if err := formatter.Write(cmd.OutOrStdout(), report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.Output.Report != "" {
		if err := output.WriteDifferencesReport(report, cfg.Output.Report); err != nil {
			return fmt.Errorf("failed to write differences report: %w", err)
		}
	}

	if code := exitCode(report); code != ExitEqual {
		return &ExitError{Code: code}
	}
	return nil
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cfg *config.Config, flags *CompareFlags, global *GlobalFlags) error {
	if len(flags.Left) != len(flags.Right) {
		return fmt.Errorf("every --left needs a matching --right (got %d left, %d right)", len(flags.Left), len(flags.Right))
	}
	if len(flags.Left) > 0 {
		cfg.Pairs = cfg.Pairs[:0]
		for i := range flags.Left {
			cfg.Pairs = append(cfg.Pairs, config.PairConfig{Left: flags.Left[i], Right: flags.Right[i]})
		}
	}

	if flags.Variant != "" {
		cfg.Compare.Variant = models.CompareVariant(flags.Variant)
	}
	if flags.Symlinks != "" {
		cfg.Compare.Symlinks = models.SymlinkPolicy(flags.Symlinks)
	}
	if len(flags.Include) > 0 {
		cfg.Compare.Filter.Include = flags.Include
	}
	if len(flags.Exclude) > 0 {
		cfg.Compare.Filter.Exclude = append(cfg.Compare.Filter.Exclude, flags.Exclude...)
	}
	if flags.Direction != "" {
		cfg.Compare.Direction.Variant = models.DirectionVariant(flags.Direction)
	}
	if flags.Conflicts != "" {
		cfg.Compare.Direction.Conflicts = models.ConflictPolicy(flags.Conflicts)
	}

	if flags.Bandwidth != "" {
		limit, err := parseBandwidth(flags.Bandwidth)
		if err != nil {
			return err
		}
		cfg.Performance.BandwidthLimit = limit
	}
	if flags.ContentWorkers > 0 {
		cfg.Performance.ContentWorkers = flags.ContentWorkers
	}

	if flags.Output != "" {
		cfg.Output.Format = flags.Output
	}
	if flags.Report != "" {
		cfg.Output.Report = flags.Report
	}
	if flags.NonInteractive {
		cfg.Run.AllowUserInteraction = false
	}
	if flags.NoLock {
		cfg.Run.LockDirectories = false
	}
	if flags.NoProgress {
		cfg.Output.Progress = false
	}

	// Disable progress in quiet mode
	if global.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
	if global.Verbose && !global.Quiet && !flags.NoProgress {
		cfg.Output.Progress = true
	}
	if global.NoColor {
		cfg.Output.Color = false
	}

	if global.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = global.LogFile
	}
	if global.LogLevel != "" {
		cfg.Logging.Level = global.LogLevel
	} else if global.Verbose {
		cfg.Logging.Level = "debug"
	}
	return nil
}

// parseBandwidth converts a size such as "10MB" or "512KiB" to bytes per second
func parseBandwidth(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth limit %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("bandwidth limit %q is too large", s)
	}
	return int64(n), nil
}

func engineOptions(cfg *config.Config, interactive bool) engine.Options {
	opts := engine.DefaultOptions()
	opts.ScanWorkers = cfg.Performance.ScanWorkers
	opts.ContentWorkers = cfg.Performance.ContentWorkers
	opts.MaxDepth = cfg.Performance.MaxDepth
	opts.BandwidthLimit = cfg.Performance.BandwidthLimit
	opts.Tuning.MinChunk = cfg.Performance.MinChunk
	opts.Tuning.MaxChunk = cfg.Performance.MaxChunk
	opts.ContentMemory = cfg.Performance.ContentMemory
	opts.LockDirectories = cfg.Run.LockDirectories
	opts.LowerPriority = cfg.Run.LowerPriority
	opts.PreventStandby = cfg.Run.PreventStandby
	opts.AllowUserInteraction = interactive
	return opts
}

// createLogger creates a logger based on configuration
func createLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewNullLogger(), nil
	}

	path := cfg.File
	if path == "" {
		var err error
		if path, err = config.DefaultLogPath(); err != nil {
			return nil, err
		}
	}

	format := logging.FormatJSON
	if cfg.Format == "text" {
		format = logging.FormatText
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       path,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Level),
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// exitCode reports differences when any pair has a non-equal object
func exitCode(report *output.Report) int {
	for _, p := range report.Pairs {
		if len(p.Differences) > 0 {
			return ExitDifferences
		}
	}
	return ExitEqual
}
