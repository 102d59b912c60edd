// Package cmd provides the CLI commands for variomes.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/pkg/version"
)

// Global flags
var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the variomes CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variomes",
		Short: "Variant-centric biomedical literature ranking",
		Long: `Variomes ranks MEDLINE abstracts, PMC full texts and clinical trials
for genomic variants in their clinical context (disease, age, gender).

Rank one query with 'variomes ranklit', a list of variants with
'variomes rankvar', or serve the HTTP API and MCP tools with
'variomes serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("variomes version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: .variomes.yaml)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newRankLitCmd())
	cmd.AddCommand(newRankVarCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints its error, if any.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		slog.LogAttrs(context.Background(), slog.LevelError, "command_failed", verrors.LogAttrs(err)...)
		fmt.Fprint(os.Stderr, formatError(err))
	}
	_ = stopLogging(nil, nil)
	return err
}

// formatError renders coded errors with their hint; other errors print
// on one line.
func formatError(err error) string {
	var ve *verrors.VariomesError
	if errors.As(err, &ve) {
		return verrors.FormatForCLI(err)
	}
	return "Error: " + err.Error() + "\n"
}

// loadConfig loads the layered configuration, honouring --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// startLogging installs the JSON file logger. Commands that speak MCP over
// stdio never log to stderr.
func startLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// The command reports the error itself; log with defaults meanwhile.
		cfg = config.NewConfig()
	}

	logCfg := logging.DefaultConfig(cfg.Paths.LogsDir())
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.MaxSizeMB > 0 {
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		logCfg.MaxFiles = cfg.Logging.MaxFiles
	}
	logCfg.WriteToStderr = debugMode
	if debugMode {
		logCfg.Level = "debug"
	}
	if usesStdio(cmd) {
		logCfg = logCfg.StdioSafe()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version),
		slog.String("log_file", logCfg.FilePath))
	return nil
}

// stopLogging flushes the log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// usesStdio reports whether cmd serves MCP on stdin/stdout.
func usesStdio(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("mcp")
	return f != nil && f.Value.String() == "true"
}
