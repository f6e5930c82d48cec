package main

import (
	"fmt"

	"github.com/marmos91/baza/pkg/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Long: `Write a configuration file with every option set to its default value.

Without --config the file is written to $XDG_CONFIG_HOME/baza/config.yaml
(~/.config/baza/config.yaml when XDG_CONFIG_HOME is unset).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path, _ := cmd.Flags().GetString("config")

		if path == "" {
			var err error
			if path, err = config.InitConfig(force); err != nil {
				return err
			}
		} else if err := config.InitConfigToPath(path, force); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
	initCmd.Flags().StringP("config", "c", "", "Path of the configuration file to write")
	rootCmd.AddCommand(initCmd)
}
