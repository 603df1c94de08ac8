package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	"github.com/emilsk/kasa/pkg/config"
	"github.com/emilsk/kasa/pkg/coordinator"
	"github.com/emilsk/kasa/pkg/parser"
	"github.com/emilsk/kasa/pkg/remote"
	"github.com/emilsk/kasa/pkg/report"
	"github.com/emilsk/kasa/pkg/server"
)

var (
	cfgFile string
	verbose bool
	logger  *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kasa",
	Short: "Encrypted personal-finance ledger with a versioned remote store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// engine bundles everything a subcommand needs after setup.
type engine struct {
	cfg    *config.Config
	parser *parser.Parser
	coord  *coordinator.Coordinator
	store  remote.Store
}

func buildEngine(cmd *cobra.Command, load bool) (*engine, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("no user configured (set user: in config or KASA_USER)")
	}

	passphrase := os.Getenv("KASA_PASSPHRASE")
	if passphrase == "" {
		return nil, fmt.Errorf("KASA_PASSPHRASE is not set")
	}

	ctx := cmd.Context()
	var store remote.Store
	switch cfg.Remote.Backend {
	case "gcs":
		gcs, err := remote.NewGCSStore(ctx, cfg.Remote.Bucket, cfg.Remote.Prefix)
		if err != nil {
			return nil, err
		}
		store = gcs
	case "local":
		store = remote.NewLocalStore(cfg.Remote.Dir)
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}

	coord := coordinator.New(logger, store, cfg.User, []byte(passphrase),
		coordinator.WithRetries(cfg.Sync.Retries),
		coordinator.WithBackoff(cfg.Sync.Backoff()),
		coordinator.WithTimeout(cfg.Sync.Timeout()),
		coordinator.WithSealParams(cfg.Sealer.Params()),
		coordinator.WithNormalizePatterns(cfg.Rules.NormalizePatterns),
	)

	if load {
		if err := coord.Load(ctx); err != nil {
			return nil, err
		}
	}

	p := parser.New(logger,
		parser.WithFallbackCurrency(cfg.Import.FallbackCurrency),
		parser.WithHidePatterns(cfg.Import.HidePatterns),
	)

	return &engine{cfg: cfg, parser: p, coord: coord, store: store}, nil
}

var importCmd = &cobra.Command{
	Use:   "import <statement_file>...",
	Short: "Parse statement exports and merge them into the ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			records, err := eng.parser.ProcessBytes(data, path)
			if err != nil {
				return err
			}
			mergeReport, err := eng.coord.Import(cmd.Context(), records)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d inserted, %d skipped as duplicates\n", path, mergeReport.Inserted, mergeReport.Skipped)
		}
		return nil
	},
}

var setCategoryCmd = &cobra.Command{
	Use:   "set-category <transaction_id> <category>",
	Short: "Manually categorize a transaction (creates a shared rule unless --this-only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		thisOnly, _ := cmd.Flags().GetBool("this-only")
		return eng.coord.SetCategory(cmd.Context(), args[0], args[1], thisOnly)
	},
}

var clearCategoryCmd = &cobra.Command{
	Use:   "clear-category <transaction_id>",
	Short: "Drop a manual override so automatic rules apply again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		return eng.coord.ClearCategory(cmd.Context(), args[0])
	},
}

var hideCmd = &cobra.Command{
	Use:   "hide <transaction_id>",
	Short: "Exclude a transaction from analytics (--off to re-include)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		off, _ := cmd.Flags().GetBool("off")
		return eng.coord.SetHidden(cmd.Context(), args[0], !off)
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <transaction_id> <text>",
	Short: "Attach a note to a transaction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		return eng.coord.SetNotes(cmd.Context(), args[0], args[1])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger and sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}

		snap := eng.coord.Snapshot()
		fmt.Printf("user:         %s\n", eng.cfg.User)
		fmt.Printf("currency:     %s\n", snap.Currency)
		fmt.Printf("transactions: %d\n", len(snap.Transactions))
		fmt.Printf("rules:        %d\n", eng.coord.RuleCount())
		fmt.Printf("version:      %s\n", eng.coord.Version())

		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			pp.Println(snap)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a per-category spending summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		fmt.Print(report.Build(eng.coord.Snapshot()).Render())
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch and decrypt the current remote state",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		fmt.Printf("remote version %s, %d transactions\n", eng.coord.Version(), len(eng.coord.Snapshot().Transactions))
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Commit any staged local state to the remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		return eng.coord.Push(cmd.Context())
	},
}

var deleteRemoteCmd = &cobra.Command{
	Use:   "delete-remote",
	Short: "Irreversibly delete the user's remote state",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to delete remote state without --yes")
		}
		eng, err := buildEngine(cmd, false)
		if err != nil {
			return err
		}
		return eng.coord.DeleteRemote(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP for a local UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd, true)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		logger.Info("listening", "addr", addr)
		return server.New(logger, eng.parser, eng.coord).Start(addr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./kasa.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().String("user", "", "User identity for remote storage")

	setCategoryCmd.Flags().Bool("this-only", false, "Do not create a shared rule for this edit")
	hideCmd.Flags().Bool("off", false, "Unhide instead of hide")
	statusCmd.Flags().Bool("debug", false, "Dump the full snapshot")
	deleteRemoteCmd.Flags().Bool("yes", false, "Confirm deletion")
	serveCmd.Flags().String("addr", ":8080", "Listen address")

	rootCmd.AddCommand(importCmd, setCategoryCmd, clearCategoryCmd, hideCmd, noteCmd,
		statusCmd, reportCmd, pullCmd, pushCmd, deleteRemoteCmd, serveCmd)
}

func main() {
	_ = gotenv.Load()

	level := log.InfoLevel
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = log.DebugLevel
		}
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "kasa",
		Level:           level,
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
