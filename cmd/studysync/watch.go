package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// warnTo prints view warnings on stderr
func warnTo(cmd *cobra.Command) func(error) {
	return func(err error) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", describe(err))
	}
}

// waitUntilDone blocks until the command is interrupted or the user signs out
func waitUntilDone(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	app.session.OnSignOut(cancel)
	<-ctx.Done()
	return nil
}

// requireAuth is the PersistentPreRunE of command groups that need a session
func requireAuth(cmd *cobra.Command, args []string) error {
	if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
		return err
	}
	return signedIn()
}
