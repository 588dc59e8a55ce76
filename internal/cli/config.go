package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/handbooth/internal/config"
)

func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := deps.Config.TOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(newConfigKeysCmd())
	cmd.AddCommand(newConfigSetCmd(deps))

	return cmd
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List settable keys and their environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, key := range config.Keys() {
				fmt.Fprintf(w, "%s\t%s\n", key, config.EnvName(key))
			}
			return w.Flush()
		},
	}
}

// newConfigSetCmd stores an override in the database. It takes effect the
// next time the kiosk starts.
func newConfigSetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a configuration override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			candidate := *deps.Config
			if err := candidate.Set(key, value); err != nil {
				return err
			}
			if err := candidate.Validate(); err != nil {
				return err
			}

			st, err := openStore(deps.Config)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Settings().Set(key, value); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Success(fmt.Sprintf("%s = %s (restart to apply)", key, value))
			return nil
		},
	}
}
