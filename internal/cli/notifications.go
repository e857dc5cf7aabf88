package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/tracker"
)

var notificationsLimit int

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Show notification history",
	Args:    cobra.NoArgs,
	RunE: withTracker(func(ctx context.Context, _ *tracker.Tracker, repo habit.Repository, _ []string) error {
		list, err := repo.ListNotifications(ctx, notificationsLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		unread, err := repo.UnreadCount(ctx)
		if err != nil {
			return err
		}
		color.New(color.Bold).Printf("%d unread\n\n", unread)
		for _, n := range list {
			marker := " "
			if !n.IsRead {
				marker = color.CyanString("*")
			}
			fmt.Printf("%s %4d  %s  %-13s %s\n", marker, n.ID, n.Timestamp.Local().Format("2006-01-02 15:04"), n.Type, n.Title)
			fmt.Printf("         %s\n", n.Message)
		}
		return nil
	}),
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: withTracker(func(ctx context.Context, _ *tracker.Tracker, repo habit.Repository, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := repo.MarkRead(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Marked notification %d as read\n", id)
		return nil
	}),
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: withTracker(func(ctx context.Context, _ *tracker.Tracker, repo habit.Repository, _ []string) error {
		n, err := repo.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d notification(s) as read\n", n)
		return nil
	}),
}

func init() {
	notificationsCmd.Flags().IntVarP(&notificationsLimit, "limit", "n", 20, "Maximum number of notifications")
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
}
