package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/dispatch"
	"github.com/ArthurBabkin/ai-sales/handoff"
	"github.com/ArthurBabkin/ai-sales/internal/logutil"
	"github.com/ArthurBabkin/ai-sales/internal/telegram"
)

func newDispatcherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatcher",
		Short: "Run the operator Telegram bot that hands leads to sellers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := storeFromViper(ctx)
			if err != nil {
				return err
			}
			token := viper.GetString("telegram.token")
			if token == "" {
				return fmt.Errorf("telegram.token is required (env %s_TELEGRAM_TOKEN)", envPrefix)
			}

			d := &dispatch.Dispatcher{
				API:          telegram.New(nil, viper.GetString("telegram.base_url"), token),
				Handoff:      handoff.New(db, catalog.New(db), 0),
				Logger:       logger,
				PollInterval: viper.GetDuration("dispatch.poll_interval"),
			}
			logger.Info("dispatcher started")
			err = d.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
