package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"ghanalyzer/internal/config"
	"ghanalyzer/internal/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var errNotTerminal = errors.New("tui requires an interactive terminal (try: ghanalyzer analyze <username>)")

var tuiCmd = &cobra.Command{
	Use:   "tui [username]",
	Short: "Interactive terminal UI",
	Long: `Tui opens a full-screen terminal UI with a username prompt. Enter starts an
analysis (replacing one in flight), Esc cancels it, Ctrl+C quits.

Logs are written to --log-file only, since the UI owns the screen.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationFileOnlyLog: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return &exitError{code: exitFatal, err: errNotTerminal}
		}
		initial := cfg.Target.User
		if len(args) == 1 {
			initial = args[0]
		}
		if err := runTUI(cmd.Context(), cfg, logger, initial); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(ctx context.Context, cfg *config.Config, log *slog.Logger, initial string) error {
	_, ctrl, err := newAnalyzer(ctx, cfg, log)
	if err != nil {
		return err
	}
	return tui.Run(ctx, ctrl, cfg.Chart.Palette, initial)
}
