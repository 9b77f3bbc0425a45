package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/pkg/response"
)

var (
	authEmail    string
	authPassword string
	authName     string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}
		name := authName
		if name == "" {
			if name, err = prompt(cmd, "Name: "); err != nil {
				return err
			}
		}
		s, err := app.api.SignUp(cmd.Context(), email, password, name)
		if err != nil {
			if client.IsCode(err, response.CodeConflict) {
				return errors.New("an account with that email already exists")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", s.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}
		s, err := app.api.SignIn(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s until %s\n", s.Email, s.ExpiresAt.Local().Format(timeLayout))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.session.SignOut(cmd.Context()); err != nil {
			// The local session is gone either way.
			app.logger.Warn("server sign-out failed", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(); err != nil {
			return err
		}
		if _, err := app.api.FetchSession(cmd.Context()); err != nil {
			return err
		}
		prof, err := app.api.MyProfile(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", prof.Name, prof.Email)
		fmt.Fprintf(out, "id:     %s\n", prof.ID)
		fmt.Fprintf(out, "server: %s\n", app.api.BaseURL())
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{signupCmd, loginCmd} {
		cmd.Flags().StringVar(&authEmail, "email", "", "account email")
		cmd.Flags().StringVar(&authPassword, "password", "", "account password (prompted when empty)")
	}
	signupCmd.Flags().StringVar(&authName, "name", "", "display name")
}

func promptCredentials(cmd *cobra.Command) (string, string, error) {
	email, password := authEmail, authPassword
	var err error
	if email == "" {
		if email, err = prompt(cmd, "Email: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = prompt(cmd, "Password: "); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

// input is shared so buffered lines are not lost between prompts
var input *bufio.Reader

func prompt(cmd *cobra.Command, label string) (string, error) {
	if input == nil {
		input = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(strings.ToLower(label), ": "))
	}
	return line, nil
}
