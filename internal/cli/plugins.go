package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/handbooth/internal/plugin"
)

func NewPluginsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List discovered delivery plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := NewFormatter(cmd.OutOrStdout())

			if deps.Config.PluginDir == "" {
				formatter.Info("Plugins are disabled (plugin_dir is empty)")
				return nil
			}

			manager := plugin.NewManager(deps.Config.PluginDir, nil)
			if err := manager.Discover(); err != nil {
				return err
			}

			plugins := manager.List()
			if len(plugins) == 0 {
				formatter.Info("No plugins found in " + deps.Config.PluginDir)
				return nil
			}

			formatter.Header("Plugins:")
			for _, p := range plugins {
				formatter.PluginItem(p)
			}
			return nil
		},
	}
}
