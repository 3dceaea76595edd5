package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/metrics"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labdesk-server",
		Short: "Pathology lab billing and reporting API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(reportsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// connect loads the configuration and opens the database pool. The caller
// closes the pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationsFor returns the migration directory that applies to schema.
func migrationsFor(root, schema string) string {
	if schema == db.SharedSchema {
		return filepath.Join(root, "shared")
	}
	return filepath.Join(root, "tenant")
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply pending migrations to the shared schema and every tenant schema, or to one schema with --schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas := []string{schema}
			if schema == "" {
				tenants, err := db.ListTenantSchemas(ctx, pool)
				if err != nil {
					return err
				}
				schemas = []string{db.SharedSchema}
				for _, t := range tenants {
					schemas = append(schemas, db.SchemaName(t))
				}
			}

			for _, s := range schemas {
				migrator := db.NewMigrator(pool, migrationsFor(cfg.MigrationsDir, s))
				n, err := migrator.Up(ctx, s)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", s, err)
				}
				fmt.Printf("%s: applied %d migration(s)\n", s, n)
			}
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (default: shared and all tenant schemas)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationsFor(cfg.MigrationsDir, schema))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return err
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SharedSchema, "Schema to inspect")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply tenant migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.NewTenantProvisioner(pool, migrationsFor(cfg.MigrationsDir, db.SchemaName(name))).Provision(ctx, name); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (letters, digits, underscore)")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenant schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := db.ListTenantSchemas(ctx, pool)
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Println(t)
			}
			return nil
		},
	})

	return cmd
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Report maintenance",
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Create missing reports for bills that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg.Env)
			tenants := []string{tenant}
			if tenant == "" {
				if tenants, err = db.ListTenantSchemas(ctx, pool); err != nil {
					return err
				}
			}

			svc := newServices(cfg, pool, logger, nil)
			for _, t := range tenants {
				tctx, release, err := db.AcquireTenantConn(ctx, pool, t)
				if err != nil {
					return err
				}
				n, err := svc.billing.ReconcileReports(tctx)
				release()
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", t, err)
				}
				fmt.Printf("%s: created %d report(s)\n", t, n)
			}
			return nil
		},
	}
	reconcileCmd.Flags().String("tenant", "", "Tenant to reconcile (default: all tenants)")
	cmd.AddCommand(reconcileCmd)

	return cmd
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)
	for _, w := range cfg.Validate() {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := buildServer(cfg, pool, logger, metrics.New())

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
