package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/theme"
)

const cliTimeout = 30 * time.Second

var (
	listPage int
	listSize int
	readAll  bool
)

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print the number of unread notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		n, err := client.UnreadCount(ctx)
		if err != nil {
			return fmt.Errorf("fetching unread count: %w", err)
		}
		fmt.Println(n)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of notifications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPage < 0 || listSize <= 0 {
			return errors.New("--page must be >= 0 and --size > 0")
		}
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		page, err := client.ListNotifications(ctx, listPage, listSize)
		if err != nil {
			return fmt.Errorf("listing notifications: %w", err)
		}
		if len(page.Content) == 0 {
			fmt.Println("No notifications.")
			return nil
		}

		fmt.Println(renderNotifications(page.Content, time.Now()))
		if page.HasMore(listSize) {
			fmt.Printf("More available: notifier list --page %d --size %d\n", listPage+1, listSize)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark a notification, or all of them with --all, as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if readAll == (len(args) == 1) {
			return errors.New("pass exactly one of <id> or --all")
		}
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		if readAll {
			if err := client.MarkAllRead(ctx); err != nil {
				return fmt.Errorf("marking all read: %w", err)
			}
			fmt.Println("✓ All notifications marked as read.")
			return nil
		}
		if err := client.MarkRead(ctx, model.ID(args[0])); err != nil {
			return fmt.Errorf("marking %s read: %w", args[0], err)
		}
		fmt.Printf("✓ Notification %s marked as read.\n", args[0])
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <eventId>",
	Short: "Receive notifications about an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		if err := client.SubscribeEvent(ctx, args[0]); err != nil {
			return fmt.Errorf("subscribing to event %s: %w", args[0], err)
		}
		fmt.Printf("✓ Subscribed to event %s.\n", args[0])
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <eventId>",
	Short: "Stop notifications about an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		if err := client.UnsubscribeEvent(ctx, args[0]); err != nil {
			return fmt.Errorf("unsubscribing from event %s: %w", args[0], err)
		}
		fmt.Printf("✓ Unsubscribed from event %s.\n", args[0])
		return nil
	},
}

// renderNotifications formats a page as a table.
func renderNotifications(ns []model.Notification, now time.Time) string {
	rows := make([][]string, 0, len(ns))
	for _, n := range ns {
		state := "unread"
		if n.IsRead() {
			state = "read"
		}
		rows = append(rows, []string{
			string(n.ID),
			theme.TypeIcon(n.NotificationType) + " " + n.NotificationType.Label(),
			n.Title,
			n.Age(now),
			state,
			n.Link(),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "TYPE", "TITLE", "AGE", "STATE", "LINK").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if row >= 0 && row < len(ns) && !ns[row].IsRead() {
				return s.Bold(true)
			}
			return s.Foreground(theme.ColorGray)
		}).
		String()
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 0, "zero-based page number")
	listCmd.Flags().IntVar(&listSize, "size", 10, "page size")
	readCmd.Flags().BoolVar(&readAll, "all", false, "mark every notification as read")
}
