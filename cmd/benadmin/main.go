package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/rgehrsitz/benadmin/internal/config"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/spf13/cobra"
)

// slogLogger implements enrollment.Logger on top of log/slog
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debugf(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s slogLogger) Infof(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s slogLogger) Warnf(format string, args ...any)  { s.l.Warn(fmt.Sprintf(format, args...)) }
func (s slogLogger) Errorf(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfg is resolved by the root command before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "benadmin",
	Short: "Benefits administration CLI",
	Long:  "Import enrollment spreadsheets, manage participants and dependents, and report group rosters",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	SilenceUsage: true,
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "benadmin %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.Main.Path + " " + bi.GoVersion
	}
	return ""
}

func setup(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("db-driver") {
		loaded.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-dsn") {
		loaded.Database.DSN, _ = cmd.Flags().GetString("db-dsn")
		if !cmd.Flags().Changed("db-driver") {
			loaded.Database.Driver = store.DetectDriver(loaded.Database.DSN)
		}
	}
	if cmd.Flags().Changed("log-level") {
		loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("configuration resolved", "driver", cfg.Database.Driver, "dsn_set", cfg.Database.DSN != "")
	return nil
}

// openStore opens the configured store; callers close it
func openStore() (store.Store, error) {
	s, err := store.Open(cfg.Database.Driver, store.WithDSN(cfg.Database.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	return s, nil
}

func engineLogger() slogLogger {
	return slogLogger{l: slog.Default()}
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./benadmin.yaml if present)")
	pf.String("db-driver", "", "database driver: memory, sqlite3 or postgres (overrides database.driver)")
	pf.String("db-dsn", "", "database DSN (overrides database.dsn)")
	pf.String("log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	pf.StringP("output", "o", "table", "output format: table, json or csv")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(enrollCmd())
	rootCmd.AddCommand(addDependentCmd())
	rootCmd.AddCommand(terminateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rosterCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
