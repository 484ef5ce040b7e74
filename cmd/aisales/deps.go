package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/providers/openai"
	"github.com/ArthurBabkin/ai-sales/providers/pinecone"
	"github.com/ArthurBabkin/ai-sales/retriever"
	"github.com/ArthurBabkin/ai-sales/store"
)

func storeFromViper(ctx context.Context) (store.Store, error) {
	databaseURL := viper.GetString("firebase.database_url")
	if databaseURL == "" {
		return nil, fmt.Errorf("firebase.database_url is required (env %s_FIREBASE_DATABASE_URL)", envPrefix)
	}
	return store.NewFirebase(ctx, store.FirebaseConfig{
		DatabaseURL:     databaseURL,
		CredentialsFile: viper.GetString("firebase.credentials_file"),
	})
}

func llmFromViper() (*openai.Client, error) {
	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("llm.api_key is required (env %s_LLM_API_KEY)", envPrefix)
	}
	return openai.New(viper.GetString("llm.base_url"), apiKey), nil
}

func pineconeFromViper() (*pinecone.Client, error) {
	host := viper.GetString("pinecone.host")
	if host == "" {
		return nil, fmt.Errorf("pinecone.host is required (env %s_PINECONE_HOST)", envPrefix)
	}
	apiKey := viper.GetString("pinecone.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone.api_key is required (env %s_PINECONE_API_KEY)", envPrefix)
	}
	return pinecone.New(host, apiKey), nil
}

func retrieverFromViper(embedder llm.Embedder) (*retriever.Retriever, error) {
	index, err := pineconeFromViper()
	if err != nil {
		return nil, err
	}
	return &retriever.Retriever{
		Embedder:  embedder,
		Index:     index,
		Model:     viper.GetString("llm.embed_model"),
		Namespace: viper.GetString("pinecone.namespace"),
	}, nil
}
