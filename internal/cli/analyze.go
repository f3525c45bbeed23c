package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/config"
	"ghanalyzer/internal/flags"
	"ghanalyzer/internal/output"

	"github.com/spf13/cobra"
)

const analyzeHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Exit codes:
  0  analysis succeeded
  1  the user does not exist
  2  the analysis failed (network, API or rate limit error)
  3  invalid arguments or setup failure
`

var analyzeCmd = &cobra.Command{
	Use:   "analyze [username]",
	Short: "Analyze one GitHub user and print the result",
	Long: `Analyze fetches the user's profile, every public repository and the
languages of each repository, then prints a profile card, the language
breakdown by bytes and the repository list.

The username may be given as an argument, via the config file (user:), or as
a profile URL such as https://github.com/octocat.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := cfg.Target.User
		if len(args) == 1 {
			username = args[0]
		}
		code := runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger, username)
		if code != exitOK {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	analyzeCmd.SetHelpTemplate(analyzeHelpTemplate)

	f := analyzeCmd.Flags()
	f.StringVar(&cfg.Output.Format, flags.FlagFormat, cfg.Output.Format, "Console output format: text|json")
	f.StringVar(&cfg.Output.Out, flags.FlagOut, "", "Also write the result as JSON to this .json file")
	f.StringVar(&cfg.Output.Chart, flags.FlagChart, "", "Write the language pie chart to this .svg file")
	f.BoolVar(&cfg.Output.NoColor, flags.FlagNoColor, false, "Disable coloured console output")

	rootCmd.AddCommand(analyzeCmd)
}

// runAnalyze performs one analysis and returns the process exit code.
// Failures of the analysis itself are reported through the sinks; setup
// problems go to stderr.
func runAnalyze(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, log *slog.Logger, username string) int {
	if username == "" {
		fmt.Fprintln(stderr, "Error: username required (argument or user: in --config)")
		return exitFatal
	}

	mgr, err := buildSinks(stdout, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	_, ctrl, err := newAnalyzer(ctx, cfg, log)
	if err != nil {
		_ = mgr.Close()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	st := ctrl.Analyze(ctx, username)
	if st.Phase == analyzer.PhaseIdle {
		// Blank after trimming; the controller did not start a run.
		_ = mgr.Close()
		fmt.Fprintln(stderr, "Error: username required")
		return exitFatal
	}

	report := output.NewReport(st, cfg.Chart.Palette)
	writeErr := mgr.Write(report)
	if closeErr := mgr.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		fmt.Fprintf(stderr, "Error: write output: %v\n", writeErr)
		return exitFailure
	}

	switch {
	case st.Phase == analyzer.PhaseSuccess:
		return exitOK
	case analyzer.IsNotFound(st.Err):
		return exitNotFound
	default:
		return exitFailure
	}
}

func buildSinks(stdout io.Writer, cfg *config.Config) (*output.Manager, error) {
	console, err := output.NewConsoleSink(stdout, cfg.Output.Format, cfg.Output.NoColor)
	if err != nil {
		return nil, err
	}
	sinks := []output.Sink{console}

	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Output.Chart != "" {
		cs, err := output.NewChartSink(cfg.Output.Chart, 0)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, cs)
	}

	mgr := output.NewManager()
	for _, s := range sinks {
		if err := mgr.AddSink(s); err != nil {
			_ = mgr.Close()
			return nil, err
		}
	}
	return mgr, nil
}
