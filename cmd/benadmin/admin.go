package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rgehrsitz/benadmin/internal/api"
	"github.com/rgehrsitz/benadmin/internal/config"
	"github.com/rgehrsitz/benadmin/internal/output"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixtures.yaml]",
		Short: "Load groups, providers, plans, options and rates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := config.NewFixtureParser().LoadFromFile(args[0])
			if err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := config.Seed(cmd.Context(), s, fixtures)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d group(s), %d provider(s), %d plan(s), %d option(s), %d rate(s)\n",
				res.Groups, res.Providers, res.Plans, res.Options, res.Rates)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			driver := cfg.Database.Driver
			if driver == store.DriverMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store has no migrations")
				return nil
			}
			if driver == store.DriverSQLite && cfg.Database.DSN != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), store.DefaultDirPermissions); err != nil {
					return fmt.Errorf("failed to create database directory: %w", err)
				}
			}
			db, err := sql.Open(driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if status, _ := cmd.Flags().GetBool("status"); status {
				pending, err := store.PendingMigrations(db, driver)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending: %s\n", strings.Join(pending, ", "))
				return nil
			}

			n, err := store.Migrate(db, driver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "list pending migrations without applying them")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(s, api.WithLogger(engineLogger()), api.WithMaxRows(cfg.Import.MaxRows))
			return srv.Listen(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster [group]",
		Short: "Print every enrollment of a group's participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			roster, err := output.BuildRoster(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch outputFormat(cmd) {
			case "csv":
				data, err = output.RosterCSV(roster)
			case "html":
				data, err = output.RosterHTML(roster)
			case "json":
				data, err = jsonIndent(roster)
			default:
				data = output.RosterTable(roster)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func jsonIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
