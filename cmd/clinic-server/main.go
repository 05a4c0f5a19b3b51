package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/reflexo/clinic/internal/backfill"
	"github.com/reflexo/clinic/internal/config"
	"github.com/reflexo/clinic/internal/domain/appointment"
	"github.com/reflexo/clinic/internal/domain/catalog"
	"github.com/reflexo/clinic/internal/domain/history"
	"github.com/reflexo/clinic/internal/domain/medicalrecord"
	"github.com/reflexo/clinic/internal/domain/patient"
	"github.com/reflexo/clinic/internal/domain/tenant"
	"github.com/reflexo/clinic/internal/domain/therapist"
	"github.com/reflexo/clinic/internal/domain/user"
	"github.com/reflexo/clinic/internal/platform/auth"
	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/middleware"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Multi-tenant clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// connect loads config and opens the pool; every subcommand starts here.
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
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, cfg.MigrationsDir).UpTo(ctx, to)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "apply migrations up to this version (0 = all)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, cfg.MigrationsDir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
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
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			domain, _ := cmd.Flags().GetString("domain")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			t := &tenant.Tenant{Name: name, Domain: domain}
			if err := tenant.NewService(tenant.NewRepoPG(pool)).Create(ctx, t); err != nil {
				return err
			}
			fmt.Printf("Tenant %d (%s) created.\n", t.ID, t.Name)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant name")
	createCmd.Flags().String("domain", "", "Tenant domain")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, total, err := tenant.NewService(tenant.NewRepoPG(pool)).List(ctx, 1000, 0)
			if err != nil {
				return err
			}
			fmt.Printf("%-6s %-30s %s\n", "ID", "NAME", "DOMAIN")
			for _, t := range tenants {
				fmt.Printf("%-6d %-30s %s\n", t.ID, t.Name, t.Domain)
			}
			fmt.Printf("%d tenant(s).\n", total)
			return nil
		},
	})

	return cmd
}

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "One-off data repair passes",
	}

	newRunner := func(ctx context.Context) (*backfill.Runner, *pgxpool.Pool, error) {
		_, pool, err := connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		return backfill.NewRunner(pool, tenant.NewRepoPG(pool), newLogger()), pool, nil
	}

	// tenantFlag reads an optional --tenant into a *int64.
	tenantFlag := func(cmd *cobra.Command) *int64 {
		if !cmd.Flags().Changed("tenant") {
			return nil
		}
		v, _ := cmd.Flags().GetInt64("tenant")
		return &v
	}

	assignCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Adopt a table's orphan rows into a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			tenantID, _ := cmd.Flags().GetInt64("tenant")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if table == "" {
				return fmt.Errorf("--table is required")
			}
			if !cmd.Flags().Changed("tenant") {
				return fmt.Errorf("--tenant is required")
			}

			ctx := context.Background()
			runner, pool, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := runner.AssignTenant(ctx, table, tenantID, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("[dry run] would assign %d row(s) of %s to tenant %d\n", res.Assigned, res.Table, res.TenantID)
				if len(res.Sample) > 0 {
					fmt.Printf("[dry run] first affected ids: %v\n", res.Sample)
				}
			} else {
				fmt.Printf("Assigned %d row(s) of %s to tenant %d.\n", res.Assigned, res.Table, res.TenantID)
			}
			return nil
		},
	}
	assignCmd.Flags().String("table", "", "Target table")
	assignCmd.Flags().Int64("tenant", 0, "Tenant to adopt orphan rows into")
	assignCmd.Flags().Bool("dry-run", false, "Report changes without committing")
	cmd.AddCommand(assignCmd)

	parentCmd := &cobra.Command{
		Use:   "parent-tenant",
		Short: "Copy tenants onto child rows from their parent rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if table == "" {
				return fmt.Errorf("--table is required")
			}

			ctx := context.Background()
			runner, pool, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := runner.CopyTenantFromParent(ctx, table, dryRun)
			if err != nil {
				return err
			}
			prefix := ""
			if dryRun {
				prefix = "[dry run] "
			}
			fmt.Printf("%sUpdated %d row(s) of %s from parent tenants.\n", prefix, res.Updated, res.Table)
			return nil
		},
	}
	parentCmd.Flags().String("table", "", "Child table to fill")
	parentCmd.Flags().Bool("dry-run", false, "Report changes without committing")
	cmd.AddCommand(parentCmd)

	localCmd := &cobra.Command{
		Use:   "local-ids",
		Short: "Renumber per-tenant local ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			onlyMissing, _ := cmd.Flags().GetBool("only-missing")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if table == "" {
				return fmt.Errorf("--table is required")
			}

			ctx := context.Background()
			runner, pool, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			results, err := runner.FillLocalIDs(ctx, table, tenantFlag(cmd), onlyMissing, dryRun)
			if err != nil {
				return err
			}
			printRenumberResults(results, dryRun)
			return nil
		},
	}
	localCmd.Flags().String("table", "", "Target table")
	localCmd.Flags().Int64("tenant", 0, "Limit the pass to one tenant")
	localCmd.Flags().Bool("only-missing", false, "Only fill rows with no local id")
	localCmd.Flags().Bool("dry-run", false, "Report changes without committing")
	cmd.AddCommand(localCmd)

	ticketsCmd := &cobra.Command{
		Use:   "tickets",
		Short: "Renumber per-tenant ticket numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			ctx := context.Background()
			runner, pool, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			results, err := runner.RenumberTicketNumbers(ctx, tenantFlag(cmd), dryRun)
			if err != nil {
				return err
			}
			printRenumberResults(results, dryRun)
			return nil
		},
	}
	ticketsCmd.Flags().Int64("tenant", 0, "Limit the pass to one tenant")
	ticketsCmd.Flags().Bool("dry-run", false, "Report changes without committing")
	cmd.AddCommand(ticketsCmd)

	return cmd
}

func printRenumberResults(results []tenancy.RenumberResult, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry run] "
	}
	for _, r := range results {
		fmt.Printf("%stenant %d: examined %d, updated %d, skipped %d\n",
			prefix, r.TenantID, r.Examined, r.Updated, r.Skipped)
	}
	fmt.Printf("%s%d tenant(s) processed.\n", prefix, len(results))
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := cfg.Validate(); err != nil {
				return err
			}

			svc := user.NewService(user.NewRepoPG(pool), []byte(cfg.JWTSecret))
			token, err := svc.MintToken(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().Int64("user", 0, "User id to mint the token for")
	return cmd
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tx := db.NewTransactor(pool)

	userRepo := user.NewRepoPG(pool)
	resolver := tenancy.NewResolver(userRepo, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() && cfg.JWTSecret == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apiV1 := e.Group("/api/v1")

	// Public routes: login only.
	userSvc := user.NewService(userRepo, []byte(cfg.JWTSecret))
	userHandler := user.NewHandler(userSvc)
	userHandler.RegisterPublicRoutes(apiV1)

	// Everything else requires a principal.
	protected := apiV1.Group("", auth.RequireAuthenticated())
	userHandler.RegisterRoutes(protected)

	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo, resolver, tx)
	patient.NewHandler(patientSvc).RegisterRoutes(protected)

	therapistRepo := therapist.NewRepoPG(pool)
	therapistSvc := therapist.NewService(therapistRepo, resolver, tx)
	therapist.NewHandler(therapistSvc).RegisterRoutes(protected)

	historyRepo := history.NewRepoPG(pool)
	historySvc := history.NewService(historyRepo, resolver, tx)
	history.NewHandler(historySvc).RegisterRoutes(protected)

	apptRepo := appointment.NewRepoPG(pool)
	ticketRepo := appointment.NewTicketRepoPG(pool)
	apptSvc := appointment.NewService(apptRepo, ticketRepo, patientSvc, therapistSvc, historySvc, resolver, tx)
	appointment.NewHandler(apptSvc).RegisterRoutes(protected)

	refRepos := map[string]catalog.RefRepository{
		catalog.TableDocumentTypes:       catalog.NewRefRepoPG(pool, catalog.TableDocumentTypes),
		catalog.TablePaymentTypes:        catalog.NewRefRepoPG(pool, catalog.TablePaymentTypes),
		catalog.TablePaymentStatuses:     catalog.NewRefRepoPG(pool, catalog.TablePaymentStatuses),
		catalog.TableAppointmentStatuses: catalog.NewRefRepoPG(pool, catalog.TableAppointmentStatuses),
	}
	catalogSvc := catalog.NewService(refRepos, catalog.NewDiagnosisRepoPG(pool), catalog.NewPriceRepoPG(pool), resolver)
	catalogHandler := catalog.NewHandler(catalogSvc)
	catalogHandler.RegisterReadRoutes(protected)

	recordRepo := medicalrecord.NewRepoPG(pool)
	recordSvc := medicalrecord.NewService(recordRepo, patientSvc, catalogSvc, resolver, tx)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(protected)

	// Global-only surface: tenant administration and catalog writes.
	global := apiV1.Group("", auth.RequireGlobal(resolver))
	tenantSvc := tenant.NewService(tenant.NewRepoPG(pool))
	tenant.NewHandler(tenantSvc).RegisterRoutes(global)
	catalogHandler.RegisterWriteRoutes(global)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
