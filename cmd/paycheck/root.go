package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "paycheck",
		Short:         "Pay for tournaments and scrims through PhonePe checkout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = setupLogger(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	cobra.OnFinalize(a.close)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load before the environment")

	root.AddCommand(
		newPayCmd(a),
		newResumeCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newPendingCmd(a),
		newWatchCmd(a),
		newEventsCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
		newTokenCmd(a),
	)
	return root
}
