package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/preference"
	"github.com/nhle/campus-notifier/internal/theme"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show notification preferences per type and channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		r := preference.NewReconciler(client)
		if err := r.Load(ctx); err != nil {
			return err
		}
		fmt.Println(renderPreferences(r.Draft()))
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <TYPE> <email|push|inApp> <on|off>",
	Short: "Change one channel for one notification type",
	Example: `  notifier prefs set EVENT_REMINDER email off
  notifier prefs set VENUE_CHANGE push on`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := model.NotificationType(strings.ToUpper(args[0]))
		c, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		var value bool
		switch strings.ToLower(args[2]) {
		case "on", "true", "yes":
			value = true
		case "off", "false", "no":
			value = false
		default:
			return fmt.Errorf("value must be on or off, got %q", args[2])
		}

		client, _, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		// The gateway replaces the whole set, so load it before editing.
		r := preference.NewReconciler(client)
		if err := r.Load(ctx); err != nil {
			return err
		}
		if err := r.SetChannel(t, c, value); err != nil {
			return err
		}
		if err := r.Save(ctx); err != nil {
			return err
		}

		fmt.Printf("✓ %s %s notifications turned %s.\n", t.Label(), c.Label(), args[2])
		return nil
	},
}

func parseChannel(s string) (model.Channel, error) {
	for _, c := range model.Channels {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q (want email, push or inApp)", s)
}

func renderPreferences(prefs []model.Preference) string {
	headers := []string{"TYPE"}
	for _, c := range model.Channels {
		headers = append(headers, strings.ToUpper(c.Label()))
	}

	rows := make([][]string, 0, len(prefs))
	for _, p := range prefs {
		row := []string{string(p.NotificationType)}
		for _, c := range model.Channels {
			mark := "off"
			if p.Enabled(c) {
				mark = "on"
			}
			row = append(row, mark)
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col > 0 && row >= 0 && row < len(rows) && rows[row][col] == "off" {
				return s.Foreground(theme.ColorGray)
			}
			return s
		}).
		String()
}

func init() {
	prefsCmd.AddCommand(prefsSetCmd)
}
