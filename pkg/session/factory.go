package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// FileConfig configures a FileStore.
type FileConfig struct {
	Dir string `json:"dir"`
}

// NewStoreFromConfig creates a Store from a store kind and its JSON config.
// An empty kind is a file store in the default directory.
func NewStoreFromConfig(ctx context.Context, kind string, raw json.RawMessage) (Store, error) {
	switch kind {
	case "", "file":
		var cfg FileConfig
		if err := unmarshalConfig(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse file store config: %w", err)
		}
		return NewFileStore(cfg.Dir), nil
	case "postgres":
		var cfg PostgresConfig
		if err := unmarshalConfig(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse postgres store config: %w", err)
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "s3":
		var cfg S3Config
		if err := unmarshalConfig(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse s3 store config: %w", err)
		}
		return NewS3Store(ctx, cfg)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store: %s", kind)
	}
}

func unmarshalConfig(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
