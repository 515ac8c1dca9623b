package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/domain/eligibility"
	"github.com/bloodbank/bloodbank/internal/domain/scheduling"
	"github.com/bloodbank/bloodbank/internal/platform/cache"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bloodbank-server",
		Short: "Blood donation eligibility and unit qualification service",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(scheduleCmd())
	return root
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
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
			migrator, schema, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, schema, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
		c.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, string, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, "", nil, err
	}
	schema, _ := cmd.Flags().GetString("schema")
	if schema == "" {
		schema = cfg.DBSchema
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, "", nil, err
	}
	return db.NewMigrator(pool, os.DirFS(dir)), schema, pool.Close, nil
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Donation slot schedules",
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the slot tokens for a donation window without storing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			duration, _ := cmd.Flags().GetInt("duration")
			rest, _ := cmd.Flags().GetInt("rest")
			if date == "" {
				date = time.Now().Format(scheduling.DateLayout)
			}

			svc := scheduling.NewService(nil, nil, scheduling.Defaults{}, zerolog.Nop())
			sched, err := svc.Preview(date, scheduling.WindowRequest{
				Start:           start,
				End:             end,
				DurationMinutes: &duration,
				RestMinutes:     &rest,
			})
			if err != nil {
				return err
			}
			printTokens(cmd.OutOrStdout(), sched)
			return nil
		},
	}
	previewCmd.Flags().String("date", "", "Schedule day as YYYY-MM-DD (defaults to today)")
	previewCmd.Flags().String("start", "09:00", "Window start (HH:MM)")
	previewCmd.Flags().String("end", "17:00", "Window end (HH:MM)")
	previewCmd.Flags().Int("duration", 15, "Donation duration in minutes")
	previewCmd.Flags().Int("rest", 5, "Rest between donations in minutes")
	cmd.AddCommand(previewCmd)
	return cmd
}

func printTokens(w io.Writer, sched *scheduling.FacilitySchedule) {
	fmt.Fprintf(w, "%s: %d token(s)\n", sched.Date, len(sched.Tokens))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTART\tEND")
	for _, t := range sched.Tokens {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.Sequence, t.Start.Format("15:04"), t.End.Format("15:04"))
	}
	tw.Flush()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	redisCache, err := cache.New(ctx, cfg.RedisURL, "bloodbank:")
	if err != nil {
		return err
	}
	var scheduleCache scheduling.Cache
	if redisCache != nil {
		defer redisCache.Close()
		scheduleCache = redisCache
		logger.Info().Msg("schedule cache enabled")
	}

	txRunner := db.NewTxRunner(pool)

	eligibilitySvc := eligibility.NewService(eligibility.NewScreeningRepoPG(pool), cfg.HemoglobinCutoffGL, logger)

	unitSvc := bloodunit.NewService(bloodunit.NewUnitRepoPG(pool), cfg.HemoglobinCutoffGL, logger)
	unitSvc.SetTxRunner(txRunner)

	scheduleSvc := scheduling.NewService(scheduling.NewScheduleRepoPG(pool), scheduleCache, scheduling.Defaults{
		DurationMinutes: cfg.DefaultDonationMinutes,
		RestMinutes:     cfg.DefaultRestMinutes,
		Location:        loc,
		CacheTTL:        cfg.ScheduleCacheTTL,
	}, logger)
	scheduleSvc.SetTxRunner(txRunner)

	e := newRouter(cfg, logger, services{
		eligibility: eligibilitySvc,
		units:       unitSvc,
		schedules:   scheduleSvc,
	}, db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
