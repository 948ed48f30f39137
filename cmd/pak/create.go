package main

import (
	"fmt"

	"github.com/dbuckler300/o3de/zipdir"
)

type CreateCommand struct {
	Args struct {
		Path string `positional-arg-name:"pak" description:"local path of the archive to create" required:"yes"`
	} `positional-args:"yes"`
}

func (c *CreateCommand) Execute([]string) error {
	cache, err := zipdir.NewFactory(zipdir.InitDefault, zipdir.FlagCreateNew).Open(c.Args.Path)
	if err != nil {
		return err
	}
	defer cache.Close()

	if err = cache.WriteEmptyArchive(); err != nil {
		return err
	}

	fmt.Printf("%s: created empty archive\n", c.Args.Path)
	return nil
}
