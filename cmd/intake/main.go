package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/complaint"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/terminology"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/middleware"
	"github.com/ehr/intake/internal/platform/queue"
	"github.com/ehr/intake/migrations"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "intake",
		Short:        "Pre-hospital patient intake and chief-complaint coding",
		SilenceUsage: true,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	rootCmd.AddCommand(formCmd())
	rootCmd.AddCommand(consumeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(localCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

// setup loads and validates config and builds the process logger. Logs go to
// stderr so they never interleave with operator prompts on stdout.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(cfg, os.Stderr), nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(cfg.Level())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func formCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Run one interactive intake session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			broker, err := queue.DialAMQP(cfg.AMQPURL, cfg.QueueDurable, logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signalContext()
			defer stop()
			return runForm(ctx, cfg, logger, broker, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runForm drives a single session. Operator cancellation is a clean exit;
// an interrupt aborts the session without committing and is returned.
func runForm(ctx context.Context, cfg *config.Config, logger zerolog.Logger, broker queue.Broker, in io.Reader, out io.Writer) error {
	publisher := complaint.NewPublisher(broker, cfg.QueueName, out, logger)
	registry := intake.NewRegistry()
	session := intake.NewSession(
		intake.NewConsolePrompter(in, out), out, publisher, registry,
		intake.WithMaxAttempts(cfg.MaxInputAttempts),
		intake.WithLogger(logger),
	)

	rec, err := session.Run(ctx)
	switch {
	case errors.Is(err, intake.ErrCancelled):
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		fmt.Fprintln(out, "\nInterrupted")
		logger.Warn().Str("session_id", session.ID.String()).Msg("intake session interrupted")
		return fmt.Errorf("intake session: %w", err)
	case err != nil:
		logger.Error().Err(err).Str("session_id", session.ID.String()).Msg("intake session aborted")
		return err
	}
	logger.Debug().
		Str("session_id", rec.SessionID.String()).
		Str("level_of_service", string(rec.LevelOfService)).
		Msg("record committed")
	return nil
}

// components bundles what the consumer side needs.
type components struct {
	search   *terminology.Client
	coder    *terminology.Coder
	repo     complaint.OutcomeRepository
	pool     *pgxpool.Pool
	consumer *complaint.Consumer
}

func (c *components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func buildConsumer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, broker queue.Broker, out io.Writer) (*components, error) {
	comp := &components{}
	comp.search = terminology.NewClient(cfg.LookupURL, terminology.WithTimeout(cfg.LookupTimeout))
	comp.coder = terminology.NewCoder(comp.search, logger.With().Str("component", "coder").Logger())

	if cfg.HasDatabase() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		comp.pool = pool
		comp.repo = complaint.NewPGOutcomeRepo(pool)
		logger.Info().Msg("recording coding outcomes in postgres")
	} else {
		comp.repo = complaint.NewMemoryOutcomeRepo()
	}

	comp.consumer = complaint.NewConsumer(broker, cfg.QueueName, comp.coder, comp.repo, out,
		logger.With().Str("component", "consumer").Logger())
	return comp, nil
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Code chief complaints from the queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			broker, err := queue.DialAMQP(cfg.AMQPURL, cfg.QueueDurable, logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			comp, err := buildConsumer(ctx, cfg, logger, broker, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer comp.Close()

			return comp.consumer.Run(ctx)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the consumer together with the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			broker, err := queue.DialAMQP(cfg.AMQPURL, cfg.QueueDurable, logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			comp, err := buildConsumer(ctx, cfg, logger, broker, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer comp.Close()

			return runServer(ctx, cfg, logger, comp)
		},
	}
}

func newServer(logger zerolog.Logger, comp *components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if comp.pool != nil {
		e.GET("/health/db", db.PoolHealthHandler(comp.pool))
	}

	apiV1 := e.Group("/api/v1")
	complaint.NewHandler(comp.repo).RegisterRoutes(apiV1)
	terminology.NewHandler(comp.coder, comp.search).RegisterRoutes(apiV1)
	return e
}

// runServer runs the HTTP API and the consumer until ctx is done or either
// one fails.
func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, comp *components) error {
	e := newServer(logger.With().Str("component", "http").Logger(), comp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return comp.consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	logger.Info().Msg("server stopped")
	return err
}

func localCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Run a form session and the coder in one process, without a broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return runLocal(ctx, cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// localDrainTimeout bounds how long runLocal waits for the in-flight
// complaint to be coded after the form ends.
const localDrainTimeout = 30 * time.Second

// runLocal wires the form and consumer through an in-memory queue. After the
// form ends it waits for the published complaint to be coded before
// stopping the consumer.
func runLocal(ctx context.Context, cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) error {
	out = &lockedWriter{w: out}
	broker := queue.NewMemoryBroker(logger)
	defer broker.Close()

	comp, err := buildConsumer(ctx, cfg, logger, broker, out)
	if err != nil {
		return err
	}
	defer comp.Close()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	done := make(chan error, 1)
	go func() { done <- comp.consumer.Run(consumerCtx) }()

	counter := &countingBroker{Broker: broker}
	formErr := runForm(ctx, cfg, logger, counter, in, out)

	waitForOutcomes(ctx, comp.repo, counter.published, localDrainTimeout)
	stopConsumer()
	if err := <-done; err != nil && formErr == nil {
		return err
	}
	return formErr
}

// lockedWriter serialises writes from the form and the consumer goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// countingBroker counts successful publishes so runLocal knows how many
// outcomes to wait for.
type countingBroker struct {
	queue.Broker
	published int
}

func (b *countingBroker) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := b.Broker.Publish(ctx, queueName, body); err != nil {
		return err
	}
	b.published++
	return nil
}

func waitForOutcomes(ctx context.Context, repo complaint.OutcomeRepository, want int, timeout time.Duration) {
	if want == 0 {
		return
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, total, err := repo.List(ctx, 1, 0); err == nil && total >= want {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the coding outcome ledger schema",
	}

	withMigrator := func(run func(ctx context.Context, m *db.Migrator, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return errors.New("DATABASE_URL is required for migrations")
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, db.NewMigrator(pool, migrations.FS), cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, out io.Writer) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, out io.Writer) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(out, statuses)
			return nil
		}),
	})

	return cmd
}

func printMigrationStatus(out io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
