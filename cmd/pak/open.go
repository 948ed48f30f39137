package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dbuckler300/o3de/s3reader"
	"github.com/dbuckler300/o3de/zipdir"
)

// openCache opens the archive named by path, which is either a local file or
// an s3://bucket/key URI.
func openCache(ctx context.Context, f *zipdir.Factory, path string) (*zipdir.Cache, error) {
	if !strings.HasPrefix(path, "s3://") {
		return f.Open(path)
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 URI %q", path)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config error: %w", err)
	}

	src, err := s3reader.New(s3.NewFromConfig(cfg), bucket, key, func(o *s3reader.Options) {
		o.CtxFn = func() context.Context { return ctx }
	})
	if err != nil {
		return nil, fmt.Errorf("open s3://%s/%s error: %w", bucket, key, err)
	}

	return f.OpenReader(src)
}
