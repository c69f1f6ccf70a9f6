package storage

import (
	"context"
	"fmt"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
	"hospitalsync/infrastructure/storage/adapters/fs"
	"hospitalsync/infrastructure/storage/adapters/s3"
)

// Factory builds the output storage selected by cfg.Adapters.Storage
type Factory struct {
	logger  ports.Logger
	metrics ports.Metrics
}

func NewFactory(logger ports.Logger, metrics ports.Metrics) *Factory {
	if logger == nil || metrics == nil {
		panic("logger and metrics are required for storage factory")
	}
	return &Factory{
		logger:  logger,
		metrics: metrics,
	}
}

func (f *Factory) Create(ctx context.Context, cfg *config.Config) (ports.Storage, error) {
	switch cfg.Adapters.Storage {
	case "s3":
		f.logger.Info("Creating S3 storage adapter",
			"bucket", cfg.Storage.BucketOrPath,
			"region", cfg.Storage.S3.Region)
		client, err := s3.New(ctx, &cfg.Storage, cfg.HTTP.MaxRetries, f.logger, f.metrics)
		if err != nil {
			return nil, err
		}
		return client, nil

	case "filesystem":
		f.logger.Info("Creating filesystem storage adapter",
			"path", cfg.Storage.BucketOrPath)
		storage, err := fs.NewStorage(cfg.Storage.BucketOrPath, f.logger, f.metrics)
		if err != nil {
			return nil, err
		}
		return storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Adapters.Storage)
	}
}
