// Package flags defines canonical CLI flag names shared by the cobra wiring,
// the config file overlay and tests.
//
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Output.Format, flags.FlagFormat, "text", "...")
//	arg := "--" + flags.FlagFormat
package flags

const (
	// Global
	FlagConfig   = "config"
	FlagEnvFile  = "env-file"
	FlagToken    = "token"
	FlagAPIURL   = "api-url"
	FlagVerbose  = "verbose"
	FlagLogLevel = "log-level"
	FlagLogFile  = "log-file"
	FlagPalette  = "palette"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagCacheTTL    = "cache-ttl"

	// Output (analyze)
	FlagFormat  = "format"
	FlagOut     = "out"
	FlagChart   = "chart"
	FlagNoColor = "no-color"

	// Server (serve)
	FlagAddr            = "addr"
	FlagShutdownTimeout = "shutdown-timeout"
)
