package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/publicqi/pda-directory/pkg/cloudflare"
	"github.com/publicqi/pda-directory/pkg/registry"
	"github.com/publicqi/pda-directory/pkg/router"
	"github.com/publicqi/pda-directory/pkg/uploader"
)

const (
	defaultCollectorDir    = "/var/lib/pda-uploader/collector"
	defaultDedupFile       = "/var/lib/pda-uploader/dedup_hashset"
	defaultUploadInterval  = 30 * time.Second
	defaultSnapshotFile    = "pda_snapshot.blob"
	defaultPointerKeyValue = router.DefaultPointerKey
)

var (
	collectorDir string
	dedupFile    string
	pointerKey   string
	interval     time.Duration
	verify       bool
	verbose      bool
	snapshotFile string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pda-uploader",
	Short: "Uploads collected PDA derivations into the directory registry",
	Long: `pda-uploader merges blob files written by PDA collectors, deduplicates
them against a persisted hashset, and loads the entries into the blue and
green registry databases.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pda-uploader %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge collector blobs into a snapshot file without uploading",
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger(verbose)

		result, err := uploader.Merge(log, clockwork.NewRealClock(), collectorDir, dedupFile, verify)
		if err != nil {
			log.Error("Operation failed: merge", "error", err)
			os.Exit(1)
		}

		if err := os.WriteFile(snapshotFile, uploader.EncodeEntries(result.Entries), 0o644); err != nil {
			log.Error("Operation failed: write_snapshot", "error", err, "file", snapshotFile)
			os.Exit(1)
		}
		log.Info("Operation completed: merge", "entries", len(result.Entries), "snapshot", snapshotFile)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Continuously merge and upload new entries into both databases",
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger(verbose)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		loader, closeStores, err := newLoader(ctx, log)
		if err != nil {
			log.Error("Operation failed: new_loader", "error", err)
			os.Exit(1)
		}
		defer closeStores()

		log.Info("Operation started: upload", "dir", collectorDir, "interval", interval.String(), "verify", verify)
		if err := loader.Run(ctx, collectorDir, dedupFile, interval, verify); err != nil && ctx.Err() == nil {
			log.Error("Operation failed: upload", "error", err)
			os.Exit(1)
		}
		log.Info("Operation completed: upload")
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload <snapshot-file>",
	Short: "Bulk-load a snapshot into the inactive database and flip the pointer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger(verbose)

		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Error("Operation failed: read_snapshot", "error", err, "file", args[0])
			os.Exit(1)
		}
		entries, err := uploader.DecodeEntries(data)
		if err != nil {
			log.Error("Operation failed: decode_snapshot", "error", err, "file", args[0])
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		loader, closeStores, err := newLoader(ctx, log)
		if err != nil {
			log.Error("Operation failed: new_loader", "error", err)
			os.Exit(1)
		}
		defer closeStores()

		if err := loader.Reload(ctx, entries); err != nil {
			log.Error("Operation failed: reload", "error", err)
			os.Exit(1)
		}
		log.Info("Operation completed: reload", "entries", len(entries))
	},
}

func newLoader(ctx context.Context, log *slog.Logger) (*uploader.Loader, func(), error) {
	blueDSN := os.Getenv("BLUE_DATABASE_URL")
	if blueDSN == "" {
		return nil, nil, fmt.Errorf("BLUE_DATABASE_URL is required")
	}
	greenDSN := os.Getenv("GREEN_DATABASE_URL")
	if greenDSN == "" {
		return nil, nil, fmt.Errorf("GREEN_DATABASE_URL is required")
	}

	blue, err := registry.NewPostgres(ctx, log, router.DatabaseBlue, blueDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to blue database: %w", err)
	}
	green, err := registry.NewPostgres(ctx, log, router.DatabaseGreen, greenDSN)
	if err != nil {
		blue.Close()
		return nil, nil, fmt.Errorf("failed to connect to green database: %w", err)
	}
	closeStores := func() {
		blue.Close()
		green.Close()
	}

	for _, store := range []*registry.Postgres{blue, green} {
		if err := store.Migrate(ctx); err != nil {
			closeStores()
			return nil, nil, fmt.Errorf("failed to migrate %s database: %w", store.Name(), err)
		}
	}

	kv, err := cloudflare.NewKV(
		os.Getenv("CLOUDFLARE_API_TOKEN"),
		os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		os.Getenv("CLOUDFLARE_KV_NAMESPACE_ID"),
	)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("failed to create cloudflare kv client: %w", err)
	}

	loader, err := uploader.NewLoader(uploader.LoaderConfig{
		Logger:     log,
		Blue:       blue,
		Green:      green,
		KV:         kv,
		PointerKey: pointerKey,
	})
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	return loader, closeStores, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&collectorDir, "path", defaultCollectorDir, "Directory containing collector blob files")
	rootCmd.PersistentFlags().StringVar(&dedupFile, "dedup-hashset-file", defaultDedupFile, "File persisting the set of already-uploaded PDAs")
	rootCmd.PersistentFlags().StringVar(&pointerKey, "pointer-key", defaultPointerKeyValue, "KV key holding the active database pointer")
	rootCmd.PersistentFlags().BoolVar(&verify, "verify", false, "Re-derive each PDA from its program id and seeds and drop mismatches")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Show debug logs")

	mergeCmd.Flags().StringVar(&snapshotFile, "output", defaultSnapshotFile, "File to write the merged snapshot to")
	uploadCmd.Flags().DurationVar(&interval, "interval", defaultUploadInterval, "How often to merge and upload new collector blobs")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(reloadCmd)
}

func main() {
	_ = godotenv.Load()

	// Add version command last so it appears after auto-generated commands
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
