// Package cli wires the handbooth commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/version"
)

// Dependencies are shared by every command. Config is loaded from ConfigPath
// before a command runs unless it is already set.
type Dependencies struct {
	ConfigPath string
	Config     *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "handbooth",
		Short:         "Gesture-driven photo booth",
		Long:          "A photo kiosk driven by hand gestures: hold two fingers up to start a session, an OK sign to finish.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if deps.Config != nil {
				return nil
			}
			cfg, err := config.Load(deps.ConfigPath)
			if err != nil {
				return err
			}
			deps.Config = cfg
			return nil
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.PersistentFlags().StringVarP(&deps.ConfigPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/handbooth/config.toml)")

	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewSessionsCmd(deps))
	rootCmd.AddCommand(NewConfigCmd(deps))
	rootCmd.AddCommand(NewPluginsCmd(deps))

	return rootCmd
}
