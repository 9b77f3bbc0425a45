package main

import (
	"bufio"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fkhayef/studysync/internal/studysync"
)

var chatHistory int

var chatCmd = &cobra.Command{
	Use:               "chat <group-id>",
	Short:             "Join a group's chat: history, live messages, and a prompt to send",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: requireAuth,
	RunE:              runChat,
}

func init() {
	chatCmd.Flags().IntVar(&chatHistory, "history", 50, "number of past messages to load")
}

func runChat(cmd *cobra.Command, args []string) error {
	groupID, err := parseID(args[0], "group")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var (
		mu      sync.Mutex
		printed = make(map[uuid.UUID]bool)
	)
	onChange := func(items []studysync.ChatMessage) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range items {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.AuthorName, m.Content)
		}
	}

	v := studysync.NewChatView(app.api, app.realtime, app.profiles, groupID, chatHistory,
		studysync.Hooks[studysync.ChatMessage]{OnChange: onChange, OnWarning: warnTo(cmd)}, app.logger)
	if err := v.Open(cmd.Context()); err != nil {
		return err
	}
	defer v.Close()

	ctx := cmd.Context()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if _, err := v.Send(ctx, line); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "not sent:", describe(err))
			}
		}
	}
}
