package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/dbuckler300/o3de/zipdir"
	"github.com/dbuckler300/o3de/zipfile"
)

type ListCommand struct {
	Full bool `short:"f" long:"full" description:"resolve data offsets from the CDR without reading local headers"`
	Args struct {
		Path string `positional-arg-name:"pak" description:"local path or s3://bucket/key" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ListCommand) Execute([]string) error {
	method := zipdir.InitDefault
	if c.Full {
		method = zipdir.InitFull
	}

	cache, err := openCache(context.Background(), zipdir.NewFactory(method, zipdir.FlagReadOnly), c.Args.Path)
	if err != nil {
		return err
	}
	defer cache.Close()

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SIZE\tPACKED\tMETHOD\tMODIFIED\tNAME")

	var size, packed uint64
	_ = cache.Walk(func(path string, e *zipdir.FileEntry) error {
		size += uint64(e.UncompressedSize)
		packed += uint64(e.CompressedSize)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.IBytes(uint64(e.UncompressedSize)),
			humanize.IBytes(uint64(e.CompressedSize)),
			methodName(e.Method),
			e.Modified.Format("2006-01-02 15:04:05"),
			path)
		return nil
	})
	if err = w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d files, %s (%s packed), encryption %s, signing %s\n",
		cache.Count(), humanize.IBytes(size), humanize.IBytes(packed), cache.Encryption(), cache.Signing())
	return nil
}

func methodName(m uint16) string {
	switch m {
	case zipfile.MethodStore:
		return "store"
	case zipfile.MethodDeflate:
		return "deflate"
	case zipfile.MethodDeflateAndEncrypt:
		return "deflate+encrypt"
	case zipfile.MethodDeflateAndStreamcipher:
		return "deflate+streamcipher"
	case zipfile.MethodStoreAndStreamcipherKeytable:
		return "store+keytable"
	case zipfile.MethodDeflateAndStreamcipherKeytable:
		return "deflate+keytable"
	default:
		return fmt.Sprintf("method(%d)", m)
	}
}
