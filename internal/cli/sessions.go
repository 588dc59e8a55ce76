package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/store"
)

func NewSessionsCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := NewFormatter(cmd.OutOrStdout())

			st, err := openStore(deps.Config)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Sessions().List(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				formatter.Info("No sessions found")
				return nil
			}

			formatter.Header("Sessions:")
			for _, s := range sessions {
				formatter.SessionItem(s)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list (0 for all)")
	cmd.AddCommand(newSessionsDeleteCmd(deps))

	return cmd
}

func newSessionsDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded session and its photo records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(deps.Config)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Sessions().Delete(args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("session %s not found", args[0])
				}
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Success("Deleted session " + args[0])
			return nil
		},
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}
