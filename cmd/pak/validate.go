package main

import (
	"context"
	"fmt"

	"github.com/dbuckler300/o3de/internal"
	"github.com/dbuckler300/o3de/zipdir"
)

type ValidateCommand struct {
	Args struct {
		Path string `positional-arg-name:"pak" description:"local path or s3://bucket/key" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ValidateCommand) Execute([]string) error {
	bar := internal.DefaultCount(-1, "validating")

	f := zipdir.NewFactory(zipdir.InitValidate, zipdir.FlagReadOnly, func(o *zipdir.Options) {
		o.EntryHook = func(string) {
			_ = bar.Add(1)
		}
	})

	cache, err := openCache(context.Background(), f, c.Args.Path)
	_ = bar.Finish()
	if err != nil {
		return err
	}
	defer cache.Close()

	fmt.Printf("%s: %d entries validated\n", c.Args.Path, cache.Count())
	return nil
}
