// Package cli implements the transferstats command-line interface.
// Every command is read-only: stores are opened with mode=ro and nothing is
// written back.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	stores     []string
	days       int
	top        int
	configPath string
	jsonOutput bool
	workers    int
	timeout    time.Duration
	direction  string
	fill       bool
	verbose    bool
	quiet      bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "transferstats",
		Short: "Statistics over slskd transfer logs",
		Long: `transferstats reads one or more slskd transfer-log stores and reports
transfer volume, speed, error rates, daily trends and download popularity.

Stores are opened read-only. Encrypted stores are unlocked with
TRANSFERSTATS_PASSPHRASE.

Settings come from defaults, transferstats.yaml, TRANSFERSTATS_* environment
variables and flags, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringArrayVar(&flags.stores, "db", nil, "Transfer-log store to read (repeatable)")
	pf.IntVar(&flags.days, "days", 0, "Only include transfers from the last N days (0 = all time)")
	pf.IntVar(&flags.top, "top", 0, "Number of entries in ranked lists")
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output as JSON")
	pf.IntVar(&flags.workers, "workers", 0, "Maximum stores queried in parallel")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-store query timeout")
	pf.StringVar(&flags.direction, "direction", "", "Direction to report: all, upload or download")
	pf.BoolVar(&flags.fill, "fill", false, "Include zero rows for days without transfers")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Only log errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(
		newSummaryCmd(flags),
		newTrendsCmd(flags),
		newPopularCmd(flags),
		newConfidenceCmd(flags),
		newExplainCmd(flags),
		newRecordsCmd(flags),
		newOverviewCmd(flags),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show upload and download totals",
		Long: `Show per-direction totals: transfers, bytes, unique users, speed,
duration, error rate and the top users and file types.

Examples:
  transferstats summary --db transfers.db
  transferstats summary --direction upload --days 30 --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunSummary(cmd, flags)
		},
	}
}

func newTrendsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Show daily transfer activity",
		Long: `Show one row per UTC day with upload and download counts, bytes,
average speed, error rates and distinct users.

Use --fill to include days without any transfers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunTrends(cmd, flags)
		},
	}
}

func newPopularCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "popular",
		Short: "Show the most downloaded artists and albums",
		Long: `Infer artist and album from the paths of successful downloads and rank
them by file count.

Use "transferstats confidence" to check how many paths the parser understands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunPopular(cmd, flags)
		},
	}
}

func newConfidenceCmd(flags *globalFlags) *cobra.Command {
	var sample, examples int
	cmd := &cobra.Command{
		Use:   "confidence",
		Short: "Estimate how well download paths are parsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunConfidence(cmd, flags, sample, examples)
		},
	}
	cmd.Flags().IntVar(&sample, "sample", 0, "Number of filenames sampled per store")
	cmd.Flags().IntVar(&examples, "examples", -1, "Maximum parsed examples shown")
	return cmd
}

func newExplainCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <path>",
		Short: "Show how a path is parsed into artist and album",
		Long: `Show every step of the path parser for one path: segments, the strategy
used, dropped segments and the cleaned album name.

No store is opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunExplain(cmd, flags, args[0])
		},
	}
}

func newRecordsCmd(flags *globalFlags) *cobra.Command {
	var outcome string
	var limit int
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Stream transfer records as JSON lines",
		Long: `Write one JSON object per transfer record, store by store in input order.

Examples:
  transferstats records --db transfers.db --outcome any
  transferstats records --direction download --limit 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunRecords(cmd, flags, outcome, limit)
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "succeeded", "Records to include: succeeded, completed or any")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after N records (0 = no limit)")
	return cmd
}

func newOverviewCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Run every report at once",
		Long: `Run the summary, daily trends, popularity and parser confidence reports
in one pass and print them together with any diagnostics.

Examples:
  transferstats overview --db a.db --db b.db
  transferstats overview --json > report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunOverview(cmd, flags)
		},
	}
}
