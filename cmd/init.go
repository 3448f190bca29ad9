package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tlex/generate"
)

var forceInit bool

// initCmd: tlex init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new generator configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile, forceInit)
		if err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")
}

func initConfigurationFile(configurationPath string, force bool) (string, error) {
	if configurationPath == "" {
		configurationPath = generate.ConfigFile
	}
	if !force {
		if _, err := os.Stat(configurationPath); err == nil {
			return configurationPath, fmt.Errorf("%s already exists", configurationPath)
		}
	}
	return configurationPath, generate.WriteConfig(configurationPath, generate.DefaultConfig())
}
