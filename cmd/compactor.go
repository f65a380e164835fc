package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.loamdb.org/loam/pkg/compaction"
	"go.loamdb.org/loam/pkg/compactor"
	"go.loamdb.org/loam/pkg/dispatch"
	"go.uber.org/zap"
)

var compactorCmd = cobra.Command{
	Use:   "compactor",
	Short: "Run compaction worker",
	Long: "Polls a dispatch server for reserved compaction jobs.\n" +
		"Jobs below the configured minimum priority are never taken.",
	Args: cobra.NoArgs,
	Run:  runCompactor,
}

func init() {
	flags := compactorCmd.Flags()
	flags.String("server", "http://localhost:8402", "Dispatch server base URL")
	flags.String("queue", "", "Queue to poll")
	flags.String("worker", "", "Worker ID to reserve under")
	flags.Int64("min-priority", 0, "Lowest job priority to accept")

	rootCmd.AddCommand(&compactorCmd)
}

func runCompactor(cmd *cobra.Command, _ []string) {
	flags := cmd.Flags()
	server, err := flags.GetString("server")
	if err != nil {
		panic(err)
	}
	queue, err := flags.GetString("queue")
	if err != nil {
		panic(err)
	}
	worker, err := flags.GetString("worker")
	if err != nil {
		panic(err)
	}
	minPriority, err := flags.GetInt64("min-priority")
	if err != nil {
		panic(err)
	}
	if queue == "" {
		log.Fatal("Empty --queue")
	}
	if worker == "" {
		log.Fatal("Empty --worker")
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	poller := &compactor.Poller{
		Client:       &dispatch.Client{Base: server},
		Queue:        compaction.QueueID(queue),
		Worker:       worker,
		MinPriority:  minPriority,
		IdleWait:     viper.GetDuration(ConfCompactorIdleWait),
		RetryStart:   viper.GetDuration(ConfRetryStartWait),
		RetryMaxWait: viper.GetDuration(ConfRetryMaxWait),
		MaxRetries:   viper.GetInt(ConfRetryMaxRetries),
		Log:          log.Named("poller"),
	}
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Compactor failed", zap.Error(err))
	}
}
