package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/CodeMonkeyCybersecurity/anew/internal/config"
	"github.com/CodeMonkeyCybersecurity/anew/internal/core"
	"github.com/CodeMonkeyCybersecurity/anew/internal/dedup"
	"github.com/CodeMonkeyCybersecurity/anew/internal/logger"
	"github.com/CodeMonkeyCybersecurity/anew/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/anew/pkg/shutdown"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// exitFunc is called after an interrupt has been cleaned up.
var exitFunc = os.Exit

// shutdownTimeout bounds the final cleanup; telemetry flushes are the slow part.
const shutdownTimeout = 10 * time.Second

var rootCmd = NewRootCmd()

func Execute() error {
	shutdown.IgnoreBrokenPipe()

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCmd builds the anew command with its own viper instance, so tests
// can create as many as they like.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "anew [file]",
		Short: "Append lines from stdin to a file if they are not already in it",
		Long: `anew reads lines from stdin and prints the ones it has not seen before,
appending them to file as it goes. Lines already present in file, or seen
earlier in the stream, are dropped. Output order always matches input order.

Without a file anew is a plain order-preserving uniq filter. The file is
created when missing; use --dry-run to compare against it without touching it.

EXAMPLES:
  cat new-urls.txt | anew urls.txt           # append unseen URLs, print them
  cat new-urls.txt | anew -q urls.txt        # append silently
  cat new-urls.txt | anew -n urls.txt        # show what would be appended
  some-scan | anew | notify                  # dedup a stream, no file`,
		Args:          cobra.MaximumNArgs(1),
		Version:       logger.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.BoolP("quiet", "q", false, "quiet, won't print new lines to stdout")
	flags.BoolP("dry-run", "n", false, "dry run, leave the file as it is")
	flags.String("hash", config.HashExact, "membership key: exact (full line) or murmur3 (128-bit fingerprint, less memory)")

	// Diagnostics always go to stderr
	flags.String("log-level", "error", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (json, console)")

	flags.Bool("telemetry", false, "export run traces, metrics and logs over OTLP/HTTP")
	flags.String("telemetry-endpoint", "localhost:4318", "OTLP/HTTP collector address")

	cobra.CheckErr(bindConfig(v, flags))

	v.SetDefault("telemetry.service_name", "anew")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("logger.output_paths", []string{"stderr"})

	return cmd
}

// configBindings maps each config key to its flag and environment variable.
var configBindings = []struct {
	key  string
	flag string
	env  string
}{
	{"dedup.quiet", "quiet", "ANEW_QUIET"},
	{"dedup.dry_run", "dry-run", "ANEW_DRY_RUN"},
	{"dedup.hash", "hash", "ANEW_HASH"},
	{"logger.level", "log-level", "ANEW_LOG_LEVEL"},
	{"logger.format", "log-format", "ANEW_LOG_FORMAT"},
	{"telemetry.enabled", "telemetry", "ANEW_TELEMETRY_ENABLED"},
	{"telemetry.endpoint", "telemetry-endpoint", "ANEW_TELEMETRY_ENDPOINT"},
}

// bindConfig binds every entry of configBindings to v. A flag missing from
// flags is an error rather than a silently unbound key.
func bindConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	for _, b := range configBindings {
		flag := flags.Lookup(b.flag)
		if flag == nil {
			errs = append(errs, fmt.Errorf("flag %q for %s is not defined", b.flag, b.key))
			continue
		}
		if err := v.BindPFlag(b.key, flag); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag %q: %w", b.flag, err))
		}
		if err := v.BindEnv(b.key, b.env); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind %s: %w", b.env, err))
		}
	}
	return errors.Join(errs...)
}

func loadConfig(v *viper.Viper, args []string) (*config.Config, error) {
	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(args) > 0 {
		cfg.Dedup.File = args[0]
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	// Telemetry comes first so the logger can export through its provider.
	tel, telErr := telemetry.New(ctx, cfg.Telemetry)
	if telErr != nil {
		tel, _ = telemetry.New(ctx, config.TelemetryConfig{})
	}

	var logOpts []logger.Option
	if lp := tel.LoggerProvider(); lp != nil {
		logOpts = append(logOpts, logger.WithLoggerProvider(lp))
	}
	log, err := logger.New(cfg.Logger, logOpts...)
	if err != nil {
		_ = tel.Close()
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	runID := uuid.NewString()
	log = log.WithRunID(runID)
	if telErr != nil {
		log.Warnw("Telemetry disabled", "error", telErr)
	}

	handler := shutdown.NewHandler(log)
	handler.RegisterShutdownFunc(func() error { return syncLogger(log) })
	handler.RegisterShutdownFunc(tel.Close)

	ctx = logger.WithLogger(ctx, log)
	ctx, endRun := tel.StartRun(ctx, runID)
	start := time.Now()

	engine, err := dedup.New(ctx, cfg.Dedup)
	if err != nil {
		endRun(err)
		_ = handler.ShutdownWithTimeout(shutdownTimeout)
		return err
	}
	handler.RegisterShutdownFunc(engine.Close)

	sigCtx, stopSignals := context.WithCancel(ctx)
	defer stopSignals()
	go handler.WaitForSignal(sigCtx, exitFunc)

	log.Debugw("Streaming input",
		"file", cfg.Dedup.File,
		"appending", engine.Appending(),
		"quiet", cfg.Dedup.Quiet,
		"hash", cfg.Dedup.Hash,
	)

	stats, runErr := engine.Run(ctx, in, out)
	stopSignals()

	tel.RecordRun(ctx, core.LineCounts{
		Seeded:    int64(stats.Seeded),
		Read:      int64(stats.Read),
		New:       int64(stats.New),
		Duplicate: int64(stats.Duplicate),
	}, time.Since(start), runErr == nil)
	log.LogDuration(ctx, "anew.run", start,
		"lines_read", stats.Read,
		"lines_new", stats.New,
		"lines_duplicate", stats.Duplicate,
	)
	endRun(runErr)

	closeErr := handler.ShutdownWithTimeout(shutdownTimeout)
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// syncLogger flushes log. A failed flush only loses diagnostics, so it is
// reported but never changes the exit status. Pipes and terminals refuse
// fsync on Linux; that is expected and stays silent.
func syncLogger(log *logger.Logger) error {
	err := log.Sync()
	if err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		fmt.Fprintf(os.Stderr, "Warning: failed to sync logger: %v\n", err)
	}
	return nil
}
