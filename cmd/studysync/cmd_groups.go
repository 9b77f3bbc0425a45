package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/studysync"
)

var (
	groupsPage     int
	groupsPerPage  int
	newGroup       group.CreateGroupRequest
	newGroupCap    int
	newGroupPublic bool
	newGroupTags   []string
	joinCode       string
)

var groupsCmd = &cobra.Command{
	Use:               "groups",
	Aliases:           []string{"group"},
	Short:             "Find, create and join study groups",
	PersistentPreRunE: requireAuth,
}

var groupsListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "Search public groups by name, subject or tag",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := ""
		if len(args) == 1 {
			q = args[0]
		}
		groups, total, err := app.api.SearchGroups(cmd.Context(), q, groupsPage, groupsPerPage)
		if err != nil {
			return err
		}
		printGroups(cmd, groups)
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d groups\n", len(groups), total)
		return nil
	},
}

var groupsMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List the groups you belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := app.api.MyGroups(cmd.Context())
		if err != nil {
			return err
		}
		printGroups(cmd, groups)
		return nil
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a group; you become its admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newGroup
		if cmd.Flags().Changed("capacity") {
			req.Capacity = &newGroupCap
		}
		req.IsPublic = &newGroupPublic
		req.SubjectTags = newGroupTags
		g, err := app.api.CreateGroup(cmd.Context(), &req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", g.Name, g.ID)
		if g.InvitationCode != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Invitation code: %s\n", *g.InvitationCode)
		}
		return nil
	},
}

var groupsJoinCmd = &cobra.Command{
	Use:   "join <group-id>",
	Short: "Join a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		m, err := app.api.JoinGroup(cmd.Context(), id, joinCode)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Joined as %s\n", m.Role)
		return nil
	},
}

var groupsLeaveCmd = &cobra.Command{
	Use:   "leave <group-id>",
	Short: "Leave a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		if err := app.api.LeaveGroup(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Left the group")
		return nil
	},
}

var groupsMembersCmd = &cobra.Command{
	Use:   "members <group-id>",
	Short: "List members; --watch keeps following joins and leaves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		watch, _ := cmd.Flags().GetBool("watch")
		v := studysync.NewMemberView(app.api, app.realtime, app.profiles, id, studysync.Hooks[group.GroupMember]{
			OnChange: func(items []group.GroupMember) {
				if watch {
					printMembers(cmd, items)
				}
			},
			OnWarning: warnTo(cmd),
		}, app.logger)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()
		if !watch {
			printMembers(cmd, v.Items())
			return nil
		}
		return waitUntilDone(cmd)
	},
}

func init() {
	groupsListCmd.Flags().IntVar(&groupsPage, "page", 1, "page number")
	groupsListCmd.Flags().IntVar(&groupsPerPage, "per-page", 20, "results per page")

	f := groupsCreateCmd.Flags()
	f.StringVar(&newGroup.Name, "name", "", "group name")
	f.StringVar(&newGroup.Subject, "subject", "", "subject")
	f.StringVar(&newGroup.Description, "description", "", "description")
	f.IntVar(&newGroupCap, "capacity", group.DefaultCapacity, fmt.Sprintf("member limit (%d-%d)", group.MinCapacity, group.MaxCapacity))
	f.BoolVar(&newGroupPublic, "public", true, "listed in search; private groups need an invitation code")
	f.StringSliceVar(&newGroupTags, "tag", nil, "subject tag (repeatable)")
	_ = groupsCreateCmd.MarkFlagRequired("name")
	_ = groupsCreateCmd.MarkFlagRequired("subject")

	groupsJoinCmd.Flags().StringVar(&joinCode, "code", "", "invitation code of a private group")
	groupsMembersCmd.Flags().Bool("watch", false, "keep printing the member list as it changes")

	groupsCmd.AddCommand(groupsListCmd, groupsMineCmd, groupsCreateCmd, groupsJoinCmd, groupsLeaveCmd, groupsMembersCmd)
}

func printGroups(cmd *cobra.Command, groups []*group.GroupResponse) {
	tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "SUBJECT", "MEMBERS", "TAGS")
	for _, g := range groups {
		members := "?"
		if g.MemberCount != nil {
			members = fmt.Sprintf("%d/%d", *g.MemberCount, g.Capacity)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, g.Subject, members, strings.Join(g.SubjectTags, ","))
	}
	tw.Flush()
}

func printMembers(cmd *cobra.Command, members []group.GroupMember) {
	tw := newTable(cmd.OutOrStdout(), "NAME", "ROLE", "JOINED")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Role, m.JoinedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}
