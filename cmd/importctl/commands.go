package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/recimport/internal/application"
	"github.com/JonMunkholm/recimport/internal/config"
	"github.com/JonMunkholm/recimport/internal/logging"
	"github.com/JonMunkholm/recimport/internal/notify"
	"github.com/JonMunkholm/recimport/internal/schema"
	"github.com/JonMunkholm/recimport/internal/store"
)

// errFileRejected makes validate exit non-zero after the report has been
// printed.
var errFileRejected = errors.New("file rejected")

// NewRootCommand builds the importctl command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var envFile string
	rc := &cobra.Command{
		Use:           "importctl",
		Short:         "Import spreadsheet records into the version store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Overload(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			return nil
		},
	}
	rc.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file to load before reading configuration")

	rc.AddCommand(newRunCommand(stdout))
	rc.AddCommand(newValidateCommand(stdout))
	rc.AddCommand(newSchemaCommand(stdout))
	rc.AddCommand(newTemplateCommand(stdout))
	rc.AddCommand(newMigrateCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func newRunCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process the document library once",
		Long: `
Imports every file currently in the input folder, moves each one to the
imported or broken folder and notifies the authors of broken files.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Load)
			if err != nil {
				return err
			}
			ctx := c.Context()
			pool, err := openPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := store.Migrate(ctx, pool); err != nil {
				return err
			}

			app, err := application.Build(cfg, store.NewPostgres(pool), application.ModeServe)
			if err != nil {
				return err
			}
			res, err := app.Service.RunBatch(ctx)
			if err != nil {
				return err
			}

			imported, broken := res.Counts()
			fmt.Fprintf(stdout, "batch %s: %d imported, %d broken in %s\n", res.BatchID, imported, broken, res.Duration)
			for _, f := range res.Files {
				fmt.Fprintf(stdout, "  %-8s %s (%d rows, %d rejected)\n", f.Disposition(), f.FileName, f.TotalRows, f.RejectedRows())
			}
			return nil
		},
	}
}

func newValidateCommand(stdout io.Writer) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a file without importing it",
		Long: `
Runs a file through header mapping, fixed-field and descriptive validation
and merging against an empty in-memory store. Nothing is written to the
database, moved or mailed. Exits non-zero when any row is rejected.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.LoadOffline)
			if err != nil {
				return err
			}
			app, err := application.Build(cfg, store.NewMemory(), application.ModeDryRun)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			out, err := app.Service.ImportFile(c.Context(), filepath.Base(args[0]), author, f)
			if err != nil {
				return err
			}
			if out.Clean() {
				fmt.Fprintf(stdout, "%s: %d rows ok (%d new keys, %d merged)\n", out.FileName, out.TotalRows, out.Created, out.Merged)
				return nil
			}
			if err := notify.RenderText(stdout, out.Report()); err != nil {
				return err
			}
			return errFileRejected
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "author recorded on the emitted versions")
	return cmd
}

func newSchemaCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the descriptive schema the next batch would use",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.LoadOffline)
			if err != nil {
				return err
			}
			app, err := application.Build(cfg, store.NewMemory(), application.ModeDryRun)
			if err != nil {
				return err
			}
			sch, err := app.Service.Schema(c.Context())
			if err != nil {
				return err
			}
			tags := sch.Map()
			for _, k := range sch.Keys() {
				fmt.Fprintf(stdout, "%s\t%s\n", k, tags[k])
			}
			return nil
		},
	}
}

func newTemplateCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print a blank import file header",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.LoadOffline)
			if err != nil {
				return err
			}
			app, err := application.Build(cfg, store.NewMemory(), application.ModeDryRun)
			if err != nil {
				return err
			}
			header := schema.TemplateHeader()
			if sch, err := app.Service.Schema(c.Context()); err == nil {
				header = append(header, sch.Keys()...)
			} else {
				slog.Warn("template without descriptive keys", "error", err)
			}
			w := csv.NewWriter(stdout)
			if err := w.Write(header); err != nil {
				return err
			}
			w.Flush()
			return w.Error()
		},
	}
}

func newMigrateCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the records table and its indexes",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Load)
			if err != nil {
				return err
			}
			pool, err := openPool(c.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := store.Migrate(c.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "records table ready")
			return nil
		},
	}
}

func loadConfig(load func() (*config.Config, error)) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
