package filestore

import (
	"context"
	"fmt"

	"studyrag/internal/config"
)

// Open builds the store selected by cfg.FileStore.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.FileStore {
	case "", "local":
		s, err := NewLocalStore(cfg.DataInRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		s, err := NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown file store %q", cfg.FileStore)
	}
}
