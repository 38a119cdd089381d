package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/app"
	"github.com/quillhq/quill/internal/config"
)

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair [session-id]",
		Short: "Close orphaned exchanges left by a crashed process",
		Long: `Repair scans for sessions whose last message is an unanswered question
and closes each one with a recovered answer built from the passages that
were retrieved before the crash. With a session id it repairs only that
session; without one it sweeps every session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ctx := cmd.Context()
			if len(args) == 1 {
				sessionID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid session id %q: %w", args[0], err)
				}
				recovered, err := a.Integrity.RepairSession(ctx, sessionID)
				if err != nil {
					return fmt.Errorf("repairing session: %w", err)
				}
				if recovered == nil {
					fmt.Println("session is healthy, nothing to repair")
					return nil
				}
				fmt.Printf("recovered answer %s\n", recovered.ID)
				return nil
			}

			repaired, err := a.Integrity.RepairAll(ctx)
			if err != nil {
				return fmt.Errorf("sweeping sessions: %w", err)
			}
			fmt.Printf("repaired %d session(s)\n", repaired)
			return nil
		},
	}
}
