package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dbuckler300/o3de/internal"
	"github.com/dbuckler300/o3de/zipdir"
)

type ExtractCommand struct {
	Dir  string `short:"d" long:"dir" description:"output directory" default:"."`
	Args struct {
		Path string `positional-arg-name:"pak" description:"local path or s3://bucket/key" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ExtractCommand) Execute([]string) error {
	ctx := context.Background()

	cache, err := openCache(ctx, zipdir.NewFactory(zipdir.InitDefault, zipdir.FlagReadOnly), c.Args.Path)
	if err != nil {
		return err
	}
	defer cache.Close()

	var total int64
	_ = cache.Walk(func(_ string, e *zipdir.FileEntry) error {
		total += int64(e.UncompressedSize)
		return nil
	})

	bar := internal.DefaultBytes(total, "extracting")
	defer func() {
		_ = bar.Finish()
	}()

	i, n := 0, cache.Count()
	return cache.Walk(func(path string, e *zipdir.FileEntry) error {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i, n, path))
		i++

		data, err := cache.ReadFile(e)
		if err != nil {
			internal.MustLogger(ctx).Printf("read error: %v", err)
			return err
		}

		dst := filepath.Join(c.Dir, filepath.FromSlash(path))
		if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create parent directories (path=%s) error: %w", dst, err)
		}

		if err = os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("write file (path=%s) error: %w", dst, err)
		}

		_ = bar.Add64(int64(len(data)))
		return nil
	})
}
