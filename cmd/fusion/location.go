package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/fusion"
	"github.com/hupe1980/fusion/blobstore/minio"
	"github.com/hupe1980/fusion/blobstore/s3"
	"github.com/hupe1980/fusion/internal/config"
)

type location struct {
	scheme string
	bucket string
	key    string
}

// parseLocation splits scheme://bucket/key. Anything without a known
// scheme is a local path.
func parseLocation(loc string) (location, error) {
	for _, scheme := range []string{"s3", "minio"} {
		rest, ok := strings.CutPrefix(loc, scheme+"://")
		if !ok {
			continue
		}
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return location{}, fmt.Errorf("invalid location %q: expected %s://bucket/key", loc, scheme)
		}
		return location{scheme: scheme, bucket: bucket, key: key}, nil
	}
	return location{key: loc}, nil
}

// resolveSource maps a command line location to a fusion.Source.
func resolveSource(ctx context.Context, cfg *config.Config, loc string) (fusion.Source, error) {
	l, err := parseLocation(loc)
	if err != nil {
		return fusion.Source{}, err
	}

	switch l.scheme {
	case "s3":
		opts := []s3.Option{s3.WithPrefix(cfg.S3.Prefix)}
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.S3.Endpoint))
		}
		store, err := s3.New(ctx, l.bucket, opts...)
		if err != nil {
			return fusion.Source{}, err
		}
		return fusion.Remote(store, l.key), nil
	case "minio":
		if !cfg.HasMinIO() {
			return fusion.Source{}, fmt.Errorf("%s: no minio endpoint configured", loc)
		}
		store, err := minio.New(cfg.MinIOStoreConfig(l.bucket))
		if err != nil {
			return fusion.Source{}, err
		}
		return fusion.Remote(store, l.key), nil
	default:
		path, err := config.ExpandPath(l.key)
		if err != nil {
			return fusion.Source{}, err
		}
		return fusion.Local(path), nil
	}
}

// openModel resolves loc and opens it with the shared options.
func openModel(ctx context.Context, loc string, extra ...fusion.Option) (*fusion.Model, error) {
	src, err := resolveSource(ctx, globalConfig, loc)
	if err != nil {
		return nil, err
	}
	return fusion.Open(ctx, src, modelOptions(extra...)...)
}

// saveModel resolves loc and writes m to it.
func saveModel(ctx context.Context, m *fusion.Model, loc string, extra ...fusion.Option) error {
	dst, err := resolveSource(ctx, globalConfig, loc)
	if err != nil {
		return err
	}
	return m.Save(ctx, dst, extra...)
}
