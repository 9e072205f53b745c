package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sumandas0/notionmbse/config"
	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/integration"
)

var (
	// Build-time variables (set via ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mbse",
		Short:         "Model-based systems engineering records on a document store or a Notion workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(
		newVersionCommand(),
		newMigrateCommand(),
		newSchemaCommand(),
		newSyncSchemaCommand(),
		newImportCommand(),
		newExportCommand(),
		newServeCommand(),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mbse\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		},
	}
}

// setup loads the configuration and builds the application around it.
// The returned cleanup closes both.
func setup(cmd *cobra.Command) (*integration.App, func(), error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tracing := cfg.Tracing
	tracing.Environment = cfg.Environment
	obs, err := integration.NewObservabilityManager(tracing, cfg.Logging, cfg.Metrics, integration.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := integration.NewApp(cfg, obs)
	cleanup := func() {
		if err := app.Close(); err != nil {
			logger := obs.Logger()
			logger.Error().Err(err).Msg("Failed to close application")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(ctx)
	}
	return app, cleanup, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ran, err := app.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger := app.Logger()
			logger.Info().
				Str("backend", app.Config().Backend.Type).
				Strs("applied", ran).
				Msg("Database migrations completed")
			return nil
		},
	}
}

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <model>",
		Short: "Print the page type a model maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ops, err := integration.OpsFor(args[0])
			if err != nil {
				return err
			}
			pt, err := ops.PageType(app)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			return encode(cmd.OutOrStdout(), format, map[string]any{
				"name":       pt.Name(),
				"title":      pt.Title().Name,
				"properties": pt.Properties(),
			})
		},
	}
	cmd.Flags().String("format", "json", "Output format (json or yaml)")
	return cmd
}

func newSyncSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-schema <model>",
		Short: "Bind a model to the columns of a Notion database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ops, err := integration.OpsFor(args[0])
			if err != nil {
				return err
			}
			createMissing, _ := cmd.Flags().GetBool("create-missing")
			threshold, _ := cmd.Flags().GetInt("threshold")
			databaseID, _ := cmd.Flags().GetString("database")

			result, err := ops.SyncSchema(cmd.Context(), app, databaseID, controller.SyncOptions{
				CreateMissing: createMissing,
				Threshold:     threshold,
			})
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), "json", result)
		},
	}
	cmd.Flags().Bool("create-missing", false, "Create a column for every unmatched field")
	cmd.Flags().Int("threshold", 0, "Similarity a column name must exceed to be reused")
	cmd.Flags().String("database", "", "Notion database id (defaults to notion.database_id)")
	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Create records from a JSON or YAML array",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ops, err := integration.OpsFor(args[0])
			if err != nil {
				return err
			}
			records, err := readRecords(args[1])
			if err != nil {
				return err
			}

			target, _ := cmd.Flags().GetString("target")
			databaseID, _ := cmd.Flags().GetString("database")
			n, err := ops.Import(cmd.Context(), app, integration.Target{Backend: target, DatabaseID: databaseID}, records)
			logger := app.Logger()
			logger.Info().Str("model", ops.Name()).Str("target", target).Int("created", n).Msg("Import finished")
			return err
		},
	}
	cmd.Flags().String("target", integration.TargetCollection, "Backend to write to (collection or notion)")
	cmd.Flags().String("database", "", "Notion database id (defaults to notion.database_id)")
	return cmd
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Write every record of a model as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ops, err := integration.OpsFor(args[0])
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("source")
			databaseID, _ := cmd.Flags().GetString("database")
			records, err := ops.Export(cmd.Context(), app, integration.Target{Backend: source, DatabaseID: databaseID})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			format, _ := cmd.Flags().GetString("format")
			return encode(out, format, records)
		},
	}
	cmd.Flags().String("source", integration.TargetCollection, "Backend to read from (collection or notion)")
	cmd.Flags().String("database", "", "Notion database id (defaults to notion.database_id)")
	cmd.Flags().String("format", "json", "Output format (json or yaml)")
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve elements and page types over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return serve(cmd.Context(), app)
		},
	}
}

func serve(ctx context.Context, app *integration.App) error {
	cfg := app.Config()
	logger := app.Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker, err := app.HealthChecker(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize health checker: %w", err)
	}
	app.StartBackground(ctx, checker)

	router, err := app.Router(ctx, checker)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverChan := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.GetServerAddress()).
			Str("backend", cfg.Backend.Type).
			Str("version", version).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverChan:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	logger.Info().Msg("Server shutdown completed")
	return nil
}

// readRecords decodes a JSON or YAML array of objects. The extension picks
// the decoder; YAML is a superset of JSON so anything else is read as YAML.
func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &records)
	default:
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAML(v)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// toYAML round trips v through JSON so struct values are written with
// their json field names.
func toYAML(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
