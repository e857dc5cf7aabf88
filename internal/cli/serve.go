package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/notify"
	"github.com/lazypower/keepstreak/internal/reminder"
	"github.com/lazypower/keepstreak/internal/server"
	"github.com/lazypower/keepstreak/internal/tracker"
)

var serveNoCron bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the scan schedule and the notification worker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoCron, "no-cron", false, "Do not schedule scans; only POST /api/scan triggers them")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repo, err := openRepo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	events, err := newEventQueue(cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer events.close()

	n, err := newNotifier(ctx, repo, cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	sc := newScanner(repo, events.pub, cfg, logger)
	worker := notify.NewWorker(events.cons, n.dispatcher, logger)

	srv := server.New(repo, tracker.New(repo, cfg.Scan.FreezeCap, logger), sc, logger,
		server.WithVersion(VersionString()),
		server.WithJWTSecret(cfg.Server.JWTSecret),
		server.WithLocation(loc),
	)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *cron.Cron
	if !serveNoCron {
		cl := cronLogger{s: logger.Sugar()}
		sched = cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		)
		_, err := sched.AddFunc(cfg.Scan.Schedule, func() {
			// Run logs the report and any failure itself; the next tick
			// retries, so both results are dropped here.
			_, _ = sc.Run(ctx, date.Today(loc))
		})
		if err != nil {
			return fmt.Errorf("schedule %q: %w", cfg.Scan.Schedule, err)
		}

		rem := reminder.New(repo, events.pub, logger)
		if _, err := sched.AddFunc(reminder.Schedule, func() {
			// Failures are logged by Run. A missed minute is not replayed.
			_, _ = rem.Run(ctx, time.Now().In(loc))
		}); err != nil {
			return fmt.Errorf("schedule reminders: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("keepstreak serving",
			zap.String("addr", httpServer.Addr),
			zap.String("db", cfg.Database.Driver),
			zap.String("queue", cfg.Queue.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if sched != nil {
		sched.Start()
		logger.Info("scan scheduled", zap.String("schedule", cfg.Scan.Schedule), zap.String("tz", loc.String()))
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if sched != nil {
			<-sched.Stop().Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
