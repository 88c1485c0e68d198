package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pcbflow/drillsync/internal/api"
	"github.com/pcbflow/drillsync/internal/pipeline"
)

var servePort int
var serveWithSync bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status API",
	Long: `Serves run history, persisted drill records and the criteria table over
HTTP. With --with-sync the scheduled sync loop runs in the same process,
so /health reports the live runner state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		if !serveWithSync {
			st, err := storePool(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := api.NewServer(st, pipeline.NewRunLog(st.Pool()), nil)
			return srv.ListenAndServe(ctx, port)
		}

		env, err := initSync(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := api.NewServer(env.Store, env.RunLog, env.Runner)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, port)
		})
		g.Go(func() error {
			log := zap.L().With(zap.String("command", "serve"))
			return runSchedule(gctx, log, env)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithSync, "with-sync", false, "also run the scheduled sync loop")
	rootCmd.AddCommand(serveCmd)
}
