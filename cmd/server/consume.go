package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/image-tattoo/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append image events from RabbitMQ to the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("log-dir")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = queue.StartAuditConsumer(ctx, cfg.RabbitMQURL, dir)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
	consumeCmd.Flags().String("log-dir", "logs", "directory receiving "+queue.AuditLogName)
}
