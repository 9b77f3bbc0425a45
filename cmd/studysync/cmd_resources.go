package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fkhayef/studysync/internal/studysync"
)

var (
	uploadTitle       string
	uploadDescription string
	uploadTags        []string
	uploadType        string
)

var resourcesCmd = &cobra.Command{
	Use:               "resources",
	Aliases:           []string{"res"},
	Short:             "Share files with a group",
	PersistentPreRunE: requireAuth,
}

var resourcesListCmd = &cobra.Command{
	Use:   "list <group-id>",
	Short: "List a group's shared files, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		rows, err := app.api.ListResources(cmd.Context(), groupID)
		if err != nil {
			return err
		}
		uploaders := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			uploaders[i] = r.UserID
		}
		names, err := app.profiles.Resolve(cmd.Context(), uploaders)
		if err != nil {
			return err
		}
		items := make([]studysync.SharedResource, len(rows))
		for i, r := range rows {
			items[i] = studysync.SharedResource{Resource: *r}
			if p := names[r.UserID]; p != nil {
				items[i].UploaderName = p.Name
			}
		}
		printResources(cmd, items)
		return nil
	},
}

var resourcesUploadCmd = &cobra.Command{
	Use:   "upload <group-id> <file>",
	Short: "Upload a file and share it with the group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		contentType := uploadType
		if contentType == "" {
			contentType, err = detectType(f, args[1])
			if err != nil {
				return err
			}
		}
		title := uploadTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
		}
		var description *string
		if uploadDescription != "" {
			description = &uploadDescription
		}

		v := studysync.NewResourceView(app.api, app.realtime, app.profiles, groupID, studysync.Hooks[studysync.SharedResource]{}, app.logger)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()

		res, err := v.Upload(cmd.Context(), &studysync.Upload{
			Title:       title,
			Description: description,
			Tags:        uploadTags,
			ContentType: contentType,
			Size:        info.Size(),
			Body:        f,
		})
		if err != nil {
			return fmt.Errorf("%s", describe(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Shared %q (%s)\n%s\n", res.Title, res.ID, res.FileURL)
		return nil
	},
}

var resourcesRmCmd = &cobra.Command{
	Use:   "rm <group-id> <resource-id>",
	Short: "Delete a shared file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		id, err := parseID(args[1], "resource")
		if err != nil {
			return err
		}
		v := studysync.NewResourceView(app.api, app.realtime, app.profiles, groupID, studysync.Hooks[studysync.SharedResource]{}, app.logger)
		if err := v.Open(cmd.Context()); err != nil {
			return err
		}
		defer v.Close()

		if err := v.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("%s", describe(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
		return nil
	},
}

var resourcesWatchCmd = &cobra.Command{
	Use:   "watch <group-id>",
	Short: "Print the group's files whenever they change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0], "group")
		if err != nil {
			return err
		}
		v := studysync.NewResourceView(app.api, app.realtime, app.profiles, groupID, studysync.Hooks[studysync.SharedResource]{
			OnChange: func(items []studysync.SharedResource) {
				fmt.Fprintln(cmd.OutOrStdout())
				printResources(cmd, items)
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
	f := resourcesUploadCmd.Flags()
	f.StringVar(&uploadTitle, "title", "", "title (defaults to the file name)")
	f.StringVar(&uploadDescription, "description", "", "description")
	f.StringSliceVar(&uploadTags, "tag", nil, "tag (repeatable)")
	f.StringVar(&uploadType, "type", "", "content type (detected when empty)")

	resourcesCmd.AddCommand(resourcesListCmd, resourcesUploadCmd, resourcesRmCmd, resourcesWatchCmd)
}

// detectType guesses from the extension, then from the first bytes
func detectType(f *os.File, name string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t, nil
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func printResources(cmd *cobra.Command, items []studysync.SharedResource) {
	tw := newTable(cmd.OutOrStdout(), "ID", "TITLE", "TYPE", "BY", "SHARED", "TAGS")
	for _, r := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.FileType, r.UploaderName,
			r.CreatedAt.Local().Format(timeLayout), strings.Join(r.Tags, ","))
	}
	tw.Flush()
}
