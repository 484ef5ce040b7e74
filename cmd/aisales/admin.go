package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ArthurBabkin/ai-sales/admin"
	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/internal/logutil"
	"github.com/ArthurBabkin/ai-sales/session"
)

func newAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Run the management panel JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			db, err := storeFromViper(cmd.Context())
			if err != nil {
				return err
			}
			llmClient, err := llmFromViper()
			if err != nil {
				return err
			}
			index, err := pineconeFromViper()
			if err != nil {
				return err
			}

			srv := admin.New(admin.Config{
				Sessions:   session.NewManager(db, 0),
				Catalog:    catalog.New(db),
				Embedder:   llmClient,
				Index:      index,
				EmbedModel: viper.GetString("llm.embed_model"),
				Namespace:  viper.GetString("pinecone.namespace"),
				Logger:     logger,
			})
			return srv.Listen(viper.GetString("admin.addr"))
		},
	}
}
