package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// Firebase adapts the Realtime Database admin client to the Store
// contract. The admin SDK exposes exactly the four primitives the
// contract needs (Get/Set/Update/Delete on a ref).
type Firebase struct {
	client *db.Client
}

type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
}

func NewFirebase(ctx context.Context, cfg FirebaseConfig) (*Firebase, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("store: firebase database URL is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: init firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: init realtime database client: %w", err)
	}
	return &Firebase{client: client}, nil
}

var jsonNull = []byte("null")

func (f *Firebase) Get(ctx context.Context, path string, out any) (bool, error) {
	if _, err := splitPath(path); err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return false, fmt.Errorf("store: get %s: %w", path, err)
	}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (f *Firebase) Set(ctx context.Context, path string, v any) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	if err := f.client.NewRef(path).Set(ctx, v); err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return nil
}

func (f *Firebase) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := f.client.NewRef(path).Update(ctx, fields); err != nil {
		return fmt.Errorf("store: update %s: %w", path, err)
	}
	return nil
}

func (f *Firebase) Remove(ctx context.Context, path string) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	if err := f.client.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}
