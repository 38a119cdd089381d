package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/app"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/conversation"
)

func newSessionsCmd() *cobra.Command {
	var owner string

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect conversation sessions",
	}
	sessionsCmd.PersistentFlags().StringVar(&owner, "owner", "", "owner id (required)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				if owner == "" {
					return fmt.Errorf("--owner is required")
				}
				sessions, err := a.Store.Sessions(cmd.Context(), owner, 100, 0)
				if err != nil {
					return fmt.Errorf("listing sessions: %w", err)
				}
				if len(sessions) == 0 {
					fmt.Println("no sessions")
					return nil
				}
				for _, s := range sessions {
					title := s.Title
					if title == "" {
						title = "(untitled)"
					}
					fmt.Printf("%s  %-30s  %d messages  updated %s\n",
						s.ID, title, s.MessageCount, formatTime(s.UpdatedAt))
				}
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				sessionID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid session id %q: %w", args[0], err)
				}
				session, err := a.Store.Session(cmd.Context(), sessionID)
				if err != nil {
					return fmt.Errorf("loading session: %w", err)
				}
				messages, err := a.Store.Messages(cmd.Context(), sessionID, 1000, 0)
				if err != nil {
					return fmt.Errorf("loading messages: %w", err)
				}

				fmt.Printf("Session: %s\n", session.ID)
				fmt.Printf("Owner: %s\n", session.OwnerID)
				fmt.Printf("Documents: %v\n", session.ContextDocumentIDs)
				fmt.Printf("Messages: %d\n\n", len(messages))
				for _, m := range messages {
					marker := ""
					if m.Recovered {
						marker = " (recovered)"
					}
					fmt.Printf("%s%s> %s\n\n", roleLabel(m.Role), marker, m.Content)
				}
				return nil
			})
		},
	}

	sessionsCmd.AddCommand(list)
	sessionsCmd.AddCommand(show)
	return sessionsCmd
}

// withApp builds the application for a one-shot command and tears it down
// afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	logger := initLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := app.Setup(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func roleLabel(role string) string {
	if role == conversation.RoleAssistant {
		return "quill"
	}
	return "you"
}

// formatTime formats time in a human-readable format.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
