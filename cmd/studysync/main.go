// Command studysync is the terminal client for a StudySync server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/internal/logging"
	"github.com/fkhayef/studysync/internal/studysync"
)

const defaultServer = "http://localhost:8080"

var (
	// Global flags
	serverURL       string
	credentialsPath string
	logLevel        string
	logFormat       string

	app *appState
)

// appState is built once per invocation by the root command
type appState struct {
	logger   *zap.Logger
	api      *client.Client
	realtime *client.Realtime
	session  *studysync.Session
	profiles *studysync.Profiles
	creds    *credentials
}

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "Study groups, chat, shared resources and sessions from the terminal",
	Long: `studysync talks to a StudySync server.

Sign in once with "studysync login"; the session is kept in a YAML
credentials file and reused by later commands. The watch and chat
commands stay connected and print changes as they happen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		creds, err := loadCredentials(credentialsPath)
		if err != nil {
			return err
		}

		server := serverURL
		if server == "" {
			server = creds.Server
		}
		if server == "" {
			server = defaultServer
		}
		creds.Server = server

		api := client.New(server, client.WithLogger(logger.Named("client")))
		if creds.Session != nil && !creds.Session.Expired(time.Now()) {
			api.Restore(creds.Session)
		}
		api.OnAuthStateChange(func(event client.AuthEvent, s *client.Session) {
			if event == client.AuthRestored {
				return
			}
			creds.Session = s
			if err := creds.save(credentialsPath); err != nil {
				logger.Warn("credentials not saved", zap.Error(err))
			}
		})

		app = &appState{
			logger:   logger,
			api:      api,
			realtime: api.Realtime(),
			session:  studysync.NewSession(api),
			profiles: studysync.NewProfiles(api),
			creds:    creds,
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app == nil {
			return
		}
		app.session.Close()
		_ = app.realtime.Close()
		_ = app.logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("STUDYSYNC_SERVER"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", defaultCredentialsPath(), "credentials file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(groupsCmd, chatCmd, resourcesCmd, sessionsCmd, notificationsCmd)
}

// signedIn fails with a hint when there is no usable session
func signedIn() error {
	if _, err := app.session.UserID(); err != nil {
		return fmt.Errorf("%w: run \"studysync login\" first", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
