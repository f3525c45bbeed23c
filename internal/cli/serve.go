package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/config"
	"ghanalyzer/internal/flags"
	"ghanalyzer/internal/web"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser UI",
	Long: `Serve starts an HTTP server with a single page: enter a username, press
Analyze, and the profile card, language pie chart and repository list are
shown once the analysis finishes.

The same data is available as JSON:
	GET /api/state              state of the page's current analysis
	GET /api/users/{username}   run a one-off analysis

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runServe(cmd.Context(), cmd.ErrOrStderr(), cfg, logger); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		return nil
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.Server.Addr, flags.FlagAddr, cfg.Server.Addr, "Listen address")
	f.DurationVar(&cfg.Server.ShutdownTimeout, flags.FlagShutdownTimeout, cfg.Server.ShutdownTimeout, "Grace period for in-flight requests on shutdown")

	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, stderr io.Writer, cfg *config.Config, log *slog.Logger) error {
	agg, ctrl, err := newAnalyzer(ctx, cfg, log, analyzer.WithOnChange(func(st analyzer.State) {
		log.Debug("analysis state changed", "phase", st.Phase.String(), "username", st.Username)
	}))
	if err != nil {
		return err
	}

	srv, err := web.NewServer(ctrl, agg,
		web.WithPalette(cfg.Chart.Palette),
		web.WithLogger(log),
		web.WithAPITimeout(cfg.Runtime.Timeout))
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Serving on http://%s\n", displayAddr(cfg.Server.Addr))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

// displayAddr turns ":8080" into "localhost:8080".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
