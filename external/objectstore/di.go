package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/objectstore"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/samber/do/v2"
)

const awsConfigLoadTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (objectstore.ObjectStore, error) {
		cfg := do.MustInvoke[config.StorageConfig](i)
		return New(cfg)
	})
	do.Provide(injector, func(i do.Injector) (*snapshot.Store, error) {
		return snapshot.New(do.MustInvoke[objectstore.ObjectStore](i)), nil
	})
}

// New builds the object store selected by cfg.Backend.
func New(cfg config.StorageConfig) (objectstore.ObjectStore, error) {
	switch cfg.Backend {
	case config.ObjectStoreLocal:
		return NewLocalStore(cfg.LocalObjectDir)
	case config.ObjectStoreS3:
		client, err := newS3Client(cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.BucketName), nil
	default:
		return nil, fmt.Errorf("unsupported object store backend: %q", cfg.Backend)
	}
}

func newS3Client(cfg config.StorageConfig) (*s3.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), awsConfigLoadTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	}), nil
}
