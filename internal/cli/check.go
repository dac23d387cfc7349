package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/dircompare/internal/platform"
	"github.com/sdejongh/dircompare/pkg/storage"
)

// DefaultProbeTimeout bounds how long a folder may take to answer
const DefaultProbeTimeout = 200 * time.Millisecond

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check [folder...]",
		Short: "Check that folders exist and respond",
		Long: `Resolve folder phrases and probe every folder for reachability.
Without arguments, the folders of the configured pairs are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			phrases := args
			if len(phrases) == 0 {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				for _, p := range cfg.FolderPairs() {
					phrases = append(phrases, p.LeftPhrase, p.RightPhrase)
				}
			}
			if len(phrases) == 0 {
				return fmt.Errorf("no folders to check")
			}

			failed := checkFolders(ctx, cmd.OutOrStdout(), storage.NewLocal(), phrases, platform.ResolvePhrase, timeout)
			if failed > 0 {
				return &ExitError{Code: ExitDifferences}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", DefaultProbeTimeout, "time a folder may take to respond")

	return cmd
}

// checkFolders prints one status line per phrase and returns the number of
// folders that are invalid, missing or unreachable. Empty phrases are skipped.
func checkFolders(ctx context.Context, w io.Writer, provider storage.DirEntryProvider, phrases []string, resolve func(string) (string, error), timeout time.Duration) int {
	failed := 0
	seen := make(map[string]bool)
	for _, phrase := range phrases {
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true

		dir, err := resolve(phrase)
		if err == nil {
			err = platform.ValidatePath(dir)
		}
		if err != nil {
			fmt.Fprintf(w, "INVALID      %s: %v\n", phrase, err)
			failed++
			continue
		}

		ok, err := storage.ProbeDirectory(ctx, provider, dir, timeout)
		switch {
		case err != nil:
			fmt.Fprintf(w, "UNREACHABLE  %s: %v\n", dir, err)
			failed++
		case !ok:
			fmt.Fprintf(w, "MISSING      %s\n", dir)
			failed++
		default:
			fmt.Fprintf(w, "OK           %s\n", dir)
		}
	}
	return failed
}
