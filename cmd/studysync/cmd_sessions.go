package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fkhayef/studysync/internal/session"
	"github.com/fkhayef/studysync/internal/studysync"
)

var (
	sessionsAll     bool
	newSession      session.CreateSessionRequest
	sessionStart    string
	sessionEnd      string
	sessionLocation string
	sessionDesc     string
	attendeesWatch  bool
)

var sessionsCmd = &cobra.Command{
	Use:               "sessions",
	Aliases:           []string{"session"},
	Short:             "Schedule study sessions and RSVP",
	PersistentPreRunE: requireAuth,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list <group-id>",
	Short: "List a group's upcoming sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		rows, err := app.api.ListSessions(cmd.Context(), groupID, !sessionsAll)
		if err != nil {
			return err
		}
		items := make([]session.Session, len(rows))
		for i, s := range rows {
			items[i] = *s
		}
		printSessions(cmd, items)
		return nil
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create <group-id>",
	Short: "Schedule a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		req := newSession
		if req.StartTime, err = parseTime(sessionStart); err != nil {
			return err
		}
		if req.EndTime, err = parseTime(sessionEnd); err != nil {
			return err
		}
		if sessionLocation != "" {
			req.Location = &sessionLocation
		}
		if sessionDesc != "" {
			req.Description = &sessionDesc
		}
		if err := studysync.ValidateSchedule(&req); err != nil {
			return err
		}

		v := studysync.NewScheduleView(app.api, app.realtime, groupID, true, studysync.Hooks[session.Session]{}, app.logger)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()
		s, err := v.Schedule(cmd.Context(), &req)
		if err != nil {
			return fmt.Errorf("%s", describe(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %q (%s) on %s\n", s.Title, s.ID, s.StartTime.Local().Format(timeLayout))
		return nil
	},
}

var sessionsRSVPCmd = &cobra.Command{
	Use:       "rsvp <session-id> <confirmed|tentative|declined>",
	Short:     "Set your attendance for a session",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(session.StatusConfirmed), string(session.StatusTentative), string(session.StatusDeclined)},
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID(args[0], "session")
		if err != nil {
			return err
		}
		v := newAttendanceView(cmd, sessionID, false)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()

		if err := v.RSVP(cmd.Context(), session.AttendanceStatus(args[1])); err != nil {
			return fmt.Errorf("%s", describe(err))
		}
		status, _ := v.Mine()
		fmt.Fprintf(cmd.OutOrStdout(), "You are %s\n", status)
		return nil
	},
}

var sessionsAttendeesCmd = &cobra.Command{
	Use:   "attendees <session-id>",
	Short: "List RSVPs for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID(args[0], "session")
		if err != nil {
			return err
		}
		v := newAttendanceView(cmd, sessionID, attendeesWatch)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()
		if !attendeesWatch {
			printAttendees(cmd, v.Items())
			return nil
		}
		return waitUntilDone(cmd)
	},
}

var sessionsWatchCmd = &cobra.Command{
	Use:   "watch <group-id>",
	Short: "Print the group's schedule whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		v := studysync.NewScheduleView(app.api, app.realtime, groupID, !sessionsAll, studysync.Hooks[session.Session]{
			OnChange: func(items []session.Session) {
				fmt.Fprintln(cmd.OutOrStdout())
				printSessions(cmd, items)
			},
			OnWarning: warnTo(cmd),
		}, app.logger)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()
		return waitUntilDone(cmd)
	},
}

func init() {
	sessionsListCmd.Flags().BoolVar(&sessionsAll, "all", false, "include past sessions")
	sessionsWatchCmd.Flags().BoolVar(&sessionsAll, "all", false, "include past sessions")

	f := sessionsCreateCmd.Flags()
	f.StringVar(&newSession.Title, "title", "", "session title")
	f.StringVar(&sessionStart, "start", "", `start time, RFC 3339 or "2006-01-02 15:04" local`)
	f.StringVar(&sessionEnd, "end", "", "end time, same formats as --start")
	f.StringVar(&sessionLocation, "location", "", "where, or a meeting link")
	f.StringVar(&sessionDesc, "description", "", "description")
	_ = sessionsCreateCmd.MarkFlagRequired("title")
	_ = sessionsCreateCmd.MarkFlagRequired("start")
	_ = sessionsCreateCmd.MarkFlagRequired("end")

	sessionsAttendeesCmd.Flags().BoolVar(&attendeesWatch, "watch", false, "keep printing RSVPs as they change")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsCreateCmd, sessionsRSVPCmd, sessionsAttendeesCmd, sessionsWatchCmd)
}

func newAttendanceView(cmd *cobra.Command, sessionID uuid.UUID, watch bool) *studysync.AttendanceView {
	hooks := studysync.Hooks[session.Attendance]{OnWarning: warnTo(cmd)}
	if watch {
		hooks.OnChange = func(items []session.Attendance) {
			fmt.Fprintln(cmd.OutOrStdout())
			printAttendees(cmd, items)
		}
	}
	return studysync.NewAttendanceView(app.api, app.realtime, app.session, app.profiles, sessionID, hooks, app.logger)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

func printSessions(cmd *cobra.Command, items []session.Session) {
	tw := newTable(cmd.OutOrStdout(), "ID", "TITLE", "START", "END", "WHERE")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Title,
			s.StartTime.Local().Format(timeLayout), s.EndTime.Local().Format("15:04"), deref(s.Location))
	}
	tw.Flush()
}

func printAttendees(cmd *cobra.Command, items []session.Attendance) {
	tw := newTable(cmd.OutOrStdout(), "NAME", "STATUS", "SINCE")
	for _, a := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Status, a.UpdatedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}
