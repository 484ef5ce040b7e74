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
	"github.com/ArthurBabkin/ai-sales/convo"
	"github.com/ArthurBabkin/ai-sales/dialogue"
	"github.com/ArthurBabkin/ai-sales/handoff"
	"github.com/ArthurBabkin/ai-sales/internal/greenapi"
	"github.com/ArthurBabkin/ai-sales/internal/logutil"
	"github.com/ArthurBabkin/ai-sales/reminder"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the WhatsApp assistant and the forgotten-chat reminder",
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
			llmClient, err := llmFromViper()
			if err != nil {
				return err
			}
			items, err := retrieverFromViper(llmClient)
			if err != nil {
				return err
			}

			instanceID := viper.GetString("greenapi.instance_id")
			token := viper.GetString("greenapi.token")
			if instanceID == "" || token == "" {
				return fmt.Errorf("greenapi.instance_id and greenapi.token are required")
			}
			wa := greenapi.New(nil, viper.GetString("greenapi.base_url"), instanceID, token)

			conversations := convo.NewStore(db)
			cat := catalog.New(db)
			coordinator := handoff.New(db, cat, 0)

			engine := &dialogue.Engine{
				Convo:    conversations,
				Catalog:  cat,
				Items:    items,
				LLM:      llmClient,
				Model:    viper.GetString("llm.model"),
				Matcher:  dialogue.SubstringMatcher{},
				Triggers: coordinator,
				Sender:   wa,
				Logger:   logger,
			}

			scheduler := &reminder.Scheduler{
				Convo:    conversations,
				Catalog:  cat,
				LLM:      llmClient,
				Model:    viper.GetString("llm.model"),
				Sender:   wa,
				Logger:   logger,
				Interval: viper.GetDuration("reminder.interval"),
			}
			go scheduler.Run(ctx)

			bot := &greenapi.Bot{API: wa, Handler: engine, Logger: logger}
			logger.Info("whatsapp bot started", "instance", instanceID)
			err = bot.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
