package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync",
	Long: `Runs a single incremental sync pass: resolves the cursor against the
source and destination, extracts new inspection records in batches,
classifies their drill-map images, persists the results and sends PPM
alert mail for records over their control limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSync(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Runner.Run(ctx); err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Println("Sync complete")
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the sync on a fixed interval",
	Long: `Runs the incremental sync repeatedly on the configured interval until
interrupted. Overlapping runs are skipped: if a sync is still going when
the next tick fires, the tick is dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "schedule"))

		env, err := initSync(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return runSchedule(ctx, log, env)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(scheduleCmd)
}
