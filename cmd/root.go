package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:              "tlex [files...]",
	Short:            "tlex - a table driven scanner generator",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			return cmd.Help()
		}
		// Format: tlex [file1 file2 ...] => behaves like the gen subcommand
		return runGen(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file (default .tlex.yaml if present)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Timeout for one run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every generator stage")
	addOptionFlags(rootCmd)

	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
}
