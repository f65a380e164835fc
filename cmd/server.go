package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.loamdb.org/loam/cmd/providers"
	"go.loamdb.org/loam/pkg/dispatch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var serverCmd = cobra.Command{
	Use:   "server",
	Short: "Run compaction dispatch server",
	Long: "Runs the HTTP server that hands queued compaction jobs to remote\n" +
		"compactors and reports queue summaries to the coordinator.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(
			cmd,
			fx.Provide(newServerFlags),
			fx.Invoke(runServer),
		)
		app.Run()
	},
}

func init() {
	flags := serverCmd.Flags()
	flags.String("bind", ":8402", "Server bind")

	rootCmd.AddCommand(&serverCmd)
}

type serverFlags struct {
	bind string
}

func newServerFlags(cmd *cobra.Command) *serverFlags {
	flags := cmd.Flags()
	bind, err := flags.GetString("bind")
	if err != nil {
		panic(err)
	}
	return &serverFlags{
		bind: bind,
	}
}

func runServer(
	lc fx.Lifecycle,
	log *zap.Logger,
	flags *serverFlags,
	server *dispatch.Server,
) error {
	promHandler, err := providers.SetupPrometheus()
	if err != nil {
		return err
	}
	mux := chi.NewRouter()
	mux.Mount("/", server.Router())
	mux.Method(http.MethodGet, "/metrics", promHandler)
	httpServer := &http.Server{
		Addr:    flags.bind,
		Handler: mux,
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				log.Info("Starting server", zap.String("bind", flags.bind))
				err := httpServer.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("Server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
	return nil
}
