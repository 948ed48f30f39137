package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

var opts struct {
	List     ListCommand     `command:"list" alias:"ls" description:"list the contents of a pak archive"`
	Validate ValidateCommand `command:"validate" alias:"v" description:"decompress and CRC-check every entry of a pak archive"`
	Extract  ExtractCommand  `command:"extract" alias:"x" description:"extract files from a pak archive"`
	Create   CreateCommand   `command:"create" alias:"c" description:"create a new empty pak archive"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
