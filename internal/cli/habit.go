package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/tracker"
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var (
	habitTarget      int
	habitUnit        string
	habitSchedule    string
	habitDescription string
	habitRemind      string

	statsFrom string
	statsTo   string

	completeDate  string
	completeValue int
	undoDate      string
)

var habitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, tr *tracker.Tracker, _ habit.Repository, args []string) error {
		h, err := tr.CreateHabit(ctx, tracker.HabitInput{
			Name:         args[0],
			TargetValue:  habitTarget,
			Unit:         habitUnit,
			ScheduleType: habitSchedule,
			Description:  habitDescription,
			ReminderTime: habitRemind,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created habit %d: %s\n", h.ID, h.Name)
		return nil
	}),
}

var habitEditCmd = &cobra.Command{
	Use:   "edit <id> [name]",
	Short: "Edit a habit's name, target, schedule or reminder",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tr *tracker.Tracker, repo habit.Repository, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := repo.GetHabit(ctx, id)
			if err != nil {
				return err
			}
			in := tracker.HabitInput{
				Name:         h.Name,
				TargetValue:  h.TargetValue,
				Unit:         h.Unit,
				ScheduleType: h.ScheduleType,
				Description:  h.Description,
				ReminderTime: h.ReminderTime,
			}
			if len(args) == 2 {
				in.Name = args[1]
			}
			flags := cmd.Flags()
			if flags.Changed("target") {
				in.TargetValue = habitTarget
			}
			if flags.Changed("unit") {
				in.Unit = habitUnit
			}
			if flags.Changed("schedule") {
				in.ScheduleType = habitSchedule
			}
			if flags.Changed("description") {
				in.Description = habitDescription
			}
			if flags.Changed("remind") {
				in.ReminderTime = habitRemind
			}
			h, err = tr.UpdateHabit(ctx, id, in)
			if err != nil {
				return err
			}
			fmt.Printf("Updated habit %d: %s\n", h.ID, h.Name)
			return nil
		})(cmd, args)
	},
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits with their streaks",
	Args:  cobra.NoArgs,
	RunE: withTracker(func(ctx context.Context, _ *tracker.Tracker, repo habit.Repository, _ []string) error {
		habits, err := repo.ListHabits(ctx)
		if err != nil {
			return err
		}
		if len(habits) == 0 {
			fmt.Println("No habits yet. Add one with: keepstreak habit add <name>")
			return nil
		}
		bold := color.New(color.Bold)
		bold.Printf("%-4s %-24s %8s %6s %8s %6s  %s\n", "ID", "NAME", "STREAK", "BEST", "FREEZES", "REMIND", "LAST DONE")
		for _, h := range habits {
			last := "-"
			if !h.LastCompletedDate.IsZero() {
				last = h.LastCompletedDate.String()
			}
			streak := fmt.Sprintf("%8d", h.CurrentStreak)
			if h.CurrentStreak > 0 {
				streak = color.GreenString("%s", streak)
			}
			remind := "-"
			if h.ReminderTime != "" {
				remind = h.ReminderTime
			}
			fmt.Printf("%-4d %-24s %s %6d %8d %6s  %s\n", h.ID, h.Name, streak, h.BestStreak, h.MonthlyFreezeCount, remind, last)
		}
		return nil
	}),
}

var habitRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a habit and its history",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, tr *tracker.Tracker, _ habit.Repository, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := tr.DeleteHabit(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted habit %d\n", id)
		return nil
	}),
}

var habitStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show completion statistics for a habit",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, tr *tracker.Tracker, _ habit.Repository, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		from, err := optionalDate(statsFrom)
		if err != nil {
			return err
		}
		to, err := optionalDate(statsTo)
		if err != nil {
			return err
		}
		st, err := tr.Stats(ctx, id, from, to)
		if err != nil {
			return err
		}
		fmt.Printf("Current streak:  %d\n", st.CurrentStreak)
		fmt.Printf("Best streak:     %d\n", st.BestStreak)
		fmt.Printf("Completed:       %d total, %d in range\n", st.TotalCompleted, st.CompletedInRange)
		fmt.Printf("Freezes left:    %d\n", st.MonthlyFreezeCount)
		return nil
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Log a habit as done for today (or --date)",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, tr *tracker.Tracker, _ habit.Repository, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		now, err := today(cfg, "")
		if err != nil {
			return err
		}
		day := now
		if completeDate != "" {
			if day, err = date.Parse(completeDate); err != nil {
				return err
			}
		}
		res, err := tr.Complete(ctx, id, day, now, completeValue)
		if err != nil {
			return err
		}
		if res.AlreadyLogged {
			color.Yellow("%s already has an entry for %s", res.Habit.Name, day)
			return nil
		}
		color.Green("%s done for %s. Streak: %d (best %d)", res.Habit.Name, day, res.Habit.CurrentStreak, res.Habit.BestStreak)
		return nil
	}),
}

var undoCmd = &cobra.Command{
	Use:   "undo <id>",
	Short: "Remove the entry for today (or --date) and lower the streak",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, tr *tracker.Tracker, _ habit.Repository, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		day, err := today(cfg, undoDate)
		if err != nil {
			return err
		}
		h, err := tr.Undo(ctx, id, day)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s entry for %s. Streak: %d\n", h.Name, day, h.CurrentStreak)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{habitAddCmd, habitEditCmd} {
		c.Flags().IntVarP(&habitTarget, "target", "t", 1, "Target value per day")
		c.Flags().StringVarP(&habitUnit, "unit", "u", "", "Unit of the target value")
		c.Flags().StringVar(&habitSchedule, "schedule", "daily", "Schedule type: daily or weekly")
		c.Flags().StringVarP(&habitDescription, "description", "d", "", "Free-form description")
		c.Flags().StringVar(&habitRemind, "remind", "", `Daily reminder time (HH:MM), "" to disable`)
	}
	habitStatsCmd.Flags().StringVar(&statsFrom, "from", "", "Start of range (YYYY-MM-DD)")
	habitStatsCmd.Flags().StringVar(&statsTo, "to", "", "End of range (YYYY-MM-DD)")

	completeCmd.Flags().StringVar(&completeDate, "date", "", "Day to log (YYYY-MM-DD), defaults to today")
	completeCmd.Flags().IntVarP(&completeValue, "value", "v", 0, "Actual value, defaults to the habit target")
	undoCmd.Flags().StringVar(&undoDate, "date", "", "Day to undo (YYYY-MM-DD), defaults to today")

	habitCmd.AddCommand(habitAddCmd)
	habitCmd.AddCommand(habitEditCmd)
	habitCmd.AddCommand(habitListCmd)
	habitCmd.AddCommand(habitRmCmd)
	habitCmd.AddCommand(habitStatsCmd)
}

// withTracker opens the configured store for the duration of fn.
func withTracker(fn func(ctx context.Context, tr *tracker.Tracker, repo habit.Repository, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repo, err := openRepo(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		return fn(ctx, tracker.New(repo, cfg.Scan.FreezeCap, logger), repo, args)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func optionalDate(s string) (date.Date, error) {
	if s == "" {
		return date.Date{}, nil
	}
	return date.Parse(s)
}
