package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/notify"
	"github.com/lazypower/keepstreak/internal/queue"
	"github.com/lazypower/keepstreak/internal/scanner"
)

var (
	scanDate       string
	scanNoDispatch bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle now",
	Long: "Run one scan cycle for today (or --date), then dispatch the events it raised. " +
		"Intended for an external scheduler such as cron or a systemd timer.",
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanDate, "date", "", "Reference date (YYYY-MM-DD), defaults to today")
	scanCmd.Flags().BoolVar(&scanNoDispatch, "no-dispatch", false, "Report events without sending notifications")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	day, err := today(cfg, scanDate)
	if err != nil {
		return err
	}

	repo, err := openRepo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	events := queue.NewMemory(cfg.Queue.BufferSize, logger)

	// Events are printed in the report either way; with --no-dispatch they
	// are consumed and discarded.
	handle := queue.Handler(func(context.Context, habit.Event) error { return nil })
	if !scanNoDispatch {
		n, err := newNotifier(ctx, repo, cfg, logger)
		if err != nil {
			return err
		}
		defer n.Close()
		handle = notify.NewWorker(events, n.dispatcher, logger).Handle
	}

	res, err := runCycle(ctx, newScanner(repo, events, cfg, logger), events, day, handle)
	if res.report != nil {
		printReport(res.report)
	}
	if !scanNoDispatch && res.handled > 0 {
		fmt.Printf("\n%d notification(s) dispatched\n", res.handled-len(res.failed))
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(res.failed) > 0 {
		return fmt.Errorf("dispatch: %w", errors.Join(res.failed...))
	}
	return nil
}

type cycleResult struct {
	report  *scanner.Report
	handled int
	failed  []error
}

// runCycle runs one scan while handle consumes the events it publishes, so
// the scanner never waits on a full buffer. events is closed before
// returning. Events published before a scan failure are still handled.
func runCycle(ctx context.Context, sc *scanner.Scanner, events *queue.Memory, day date.Date, handle queue.Handler) (cycleResult, error) {
	var (
		res cycleResult
		g   errgroup.Group
	)
	g.Go(func() error {
		return events.Consume(ctx, func(ctx context.Context, ev habit.Event) error {
			res.handled++
			err := handle(ctx, ev)
			if err != nil {
				res.failed = append(res.failed, err)
			}
			return err
		})
	})

	report, err := sc.Run(ctx, day)
	events.Close()
	consumeErr := g.Wait()

	res.report = report
	if err != nil {
		return res, err
	}
	return res, consumeErr
}

func printReport(r *scanner.Report) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Printf("Scan %s (cycle %s)\n", r.Today, r.CycleID)
	if len(r.Habits) == 0 {
		fmt.Println("No habits to scan.")
		return
	}

	for _, h := range r.Habits {
		var status string
		switch h.Final {
		case scanner.StateAbortCycle:
			status = red.Sprint("inactive")
		case scanner.StateEnd:
			if h.Event != nil {
				status = yellow.Sprint("freeze used")
			} else {
				status = green.Sprint("ok")
			}
		default:
			status = red.Sprint("failed")
		}
		fmt.Printf("  %-24s %s", h.Name, status)
		details := []string{"freeze: " + string(h.Freeze)}
		if h.Reset {
			details = append(details, "allowance reset")
		}
		if h.Window != nil && h.Window.Flagged {
			details = append(details, fmt.Sprintf("no entries %s..%s", h.Window.From, h.Window.To))
		}
		fmt.Printf("  (%s)\n", strings.Join(details, ", "))
	}

	if r.Aborted && r.Skipped > 0 {
		yellow.Fprintf(os.Stdout, "  %d habit(s) not evaluated this cycle\n", r.Skipped)
	}
}
