package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	notificationsUnread  bool
	notificationsReadAll bool
	notificationsRead    string
)

var notificationsCmd = &cobra.Command{
	Use:               "notifications",
	Aliases:           []string{"inbox"},
	Short:             "Show your notifications",
	PersistentPreRunE: requireAuth,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switch {
		case notificationsReadAll:
			if err := app.api.MarkAllRead(ctx); err != nil {
				return err
			}
		case notificationsRead != "":
			id, err := parseID(notificationsRead, "notification")
			if err != nil {
				return err
			}
			if err := app.api.MarkRead(ctx, id); err != nil {
				return err
			}
		}

		items, err := app.api.Notifications(ctx, notificationsUnread, 1, 50)
		if err != nil {
			return err
		}
		unread, err := app.api.UnreadCount(ctx)
		if err != nil {
			return err
		}

		tw := newTable(cmd.OutOrStdout(), "", "ID", "WHEN", "MESSAGE")
		for _, n := range items {
			mark := " "
			if !n.IsRead {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, n.ID, n.CreatedAt.Local().Format(timeLayout), n.Message)
		}
		tw.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", unread)
		return nil
	},
}

func init() {
	f := notificationsCmd.Flags()
	f.BoolVar(&notificationsUnread, "unread", false, "only unread notifications")
	f.BoolVar(&notificationsReadAll, "read-all", false, "mark everything read first")
	f.StringVar(&notificationsRead, "read", "", "mark one notification read first")
}
