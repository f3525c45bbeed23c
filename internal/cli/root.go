package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/config"
	"ghanalyzer/internal/fetcher"
	"ghanalyzer/internal/flags"
	gh "ghanalyzer/internal/github"
	"ghanalyzer/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// Exit code contract shared by all commands.
const (
	exitOK       = 0
	exitNotFound = 1
	exitFailure  = 2
	exitFatal    = 3
)

// annotationFileOnlyLog marks commands that own the terminal; their logs go
// to --log-file only.
const annotationFileOnlyLog = "ghanalyzer/file-only-log"

var (
	cfg        = config.New()
	configPath string
	envFile    string

	logger    = slog.Default()
	closeLogs = func() error { return nil }
)

// exitError carries a process exit code out of a command. err, if set, is
// printed to stderr.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fatal(err error) error {
	return &exitError{code: exitFatal, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "ghanalyzer",
	Short: "Analyze a GitHub user's profile, repositories and languages",
	Long: `ghanalyzer fetches a GitHub user's public profile and repositories and
aggregates the languages used across all repositories by byte count.

Examples:
	# One-shot analysis on the console
	ghanalyzer analyze octocat

	# Browser UI on http://localhost:8080
	ghanalyzer serve

	# Interactive terminal UI
	ghanalyzer tui

	# Print build info
	ghanalyzer version

Authentication:
	Requests are unauthenticated unless a token is provided via --token or
	the GITHUB_TOKEN environment variable (a .env file in the working
	directory is loaded first). Unauthenticated requests are subject to a
	much lower GitHub rate limit.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, flags.FlagConfig, "", "YAML config file; flags set explicitly take precedence")
	pf.StringVar(&envFile, flags.FlagEnvFile, "", "Load environment variables from this file (default: .env if present)")
	pf.StringVar(&cfg.Target.Token, flags.FlagToken, "", "GitHub token (default: $GITHUB_TOKEN)")
	pf.StringVar(&cfg.Target.APIURL, flags.FlagAPIURL, "", "GitHub REST API root, e.g. https://ghe.example.com/api/v3/ (default: api.github.com)")
	pf.BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (logs every GitHub API call)")
	pf.StringVar(&cfg.Log.Level, flags.FlagLogLevel, cfg.Log.Level, "Log level: debug|info|warn|error")
	pf.StringVar(&cfg.Log.File, flags.FlagLogFile, "", "Also write logs to this file (rotated)")
	pf.IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent language fetches (1 = strictly sequential)")
	pf.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Timeout for one analysis")
	pf.DurationVar(&cfg.Runtime.CacheTTL, flags.FlagCacheTTL, cfg.Runtime.CacheTTL, "Reuse successful GitHub lookups for this long (default 0: no caching)")
	pf.StringSliceVar(&cfg.Chart.Palette, flags.FlagPalette, cfg.Chart.Palette, "Chart colours as #RRGGBB (comma-separated)")
}

// prepare runs before every command: environment, config file, validation
// and logging, in that order.
func prepare(cmd *cobra.Command, args []string) error {
	if err := loadEnv(envFile); err != nil {
		return fatal(err)
	}
	if configPath != "" {
		if err := applyConfigFile(cmd, cfg, configPath); err != nil {
			return fatal(err)
		}
	}
	if cfg.Runtime.Verbose && !cmd.Flags().Changed(flags.FlagLogLevel) {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fatal(err)
	}

	l, closeFn, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		FileOnly: cmd.Annotations[annotationFileOnlyLog] == "true",
	})
	if err != nil {
		return fatal(fmt.Errorf("setup logging: %w", err))
	}
	logger, closeLogs = l, closeFn
	slog.SetDefault(l)
	return nil
}

// loadEnv loads path, or .env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyConfigFile overlays the YAML file onto cfg and then restores every
// flag the user set explicitly, so the command line always wins.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config, path string) error {
	type setFlag struct {
		flag  *pflag.Flag
		value string
		slice []string
	}
	var explicit []setFlag
	cmd.Flags().Visit(func(f *pflag.Flag) {
		sf := setFlag{flag: f, value: f.Value.String()}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sf.slice = sv.GetSlice()
		}
		explicit = append(explicit, sf)
	})

	if err := cfg.LoadFile(path); err != nil {
		return err
	}

	for _, sf := range explicit {
		var err error
		if sv, ok := sf.flag.Value.(pflag.SliceValue); ok {
			err = sv.Replace(sf.slice)
		} else {
			err = sf.flag.Value.Set(sf.value)
		}
		if err != nil {
			return fmt.Errorf("reapply --%s: %w", sf.flag.Name, err)
		}
	}
	return nil
}

// newAnalyzer wires the GitHub client, the lookup cache, the aggregator and
// the controller for cfg.
func newAnalyzer(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...analyzer.ControllerOption) (*analyzer.Aggregator, *analyzer.Controller, error) {
	token, tokenSource, err := gh.ResolveAuthToken(ctx, cfg.Target.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve GitHub token: %w", err)
	}
	if token == "" {
		log.Debug("no GitHub token configured; requests are unauthenticated")
	} else {
		log.Debug("using GitHub token", "source", string(tokenSource))
	}

	clientOpts := []gh.Option{
		gh.WithVerbose(cfg.Runtime.Verbose, log),
		gh.WithTimeout(cfg.Runtime.Timeout),
	}
	if cfg.Target.APIURL != "" {
		clientOpts = append(clientOpts, gh.WithBaseURL(cfg.Target.APIURL))
	}
	client, err := gh.NewClient(ctx, token, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create GitHub client: %w", err)
	}

	var source analyzer.Source = client
	if cfg.Runtime.CacheTTL > 0 {
		f, err := fetcher.NewFetcher(client, cfg.Runtime.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		source = f
	}

	agg, err := analyzer.NewAggregator(source,
		analyzer.WithConcurrency(cfg.Runtime.Concurrency),
		analyzer.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	ctrlOpts := append([]analyzer.ControllerOption{
		analyzer.WithRunTimeout(cfg.Runtime.Timeout),
		analyzer.WithControllerLogger(log),
	}, opts...)
	ctrl, err := analyzer.NewController(agg, ctrlOpts...)
	if err != nil {
		return nil, nil, err
	}
	return agg, ctrl, nil
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := closeLogs(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error: close log file: %v\n", closeErr)
	}
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Usage errors from cobra (unknown flag, wrong args): nothing ran.
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFatal
}
