package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/kbupload/internal/flagx"
)

var globalFlags = flagx.Known{
	Valued: []string{
		"-a", "-t", "-k", "-n", "-b", "-l", "-d",
		"-c", "-config", "--config",
	},
}

// parseFlags applies the global flags found anywhere in args and returns the
// remaining arguments.
//
//	-a string   base URL of the document service API
//	-t string   transport: http or s3
//	-k string   bearer token
//	-n int      max files uploading at once
//	-b int      chunk size in bytes
//	-l string   log level
//	-d string   journal database path
func parseFlags(cfg *Config, args []string) ([]string, error) {
	known, rest := flagx.Split(args, globalFlags)

	fs := flag.NewFlagSet("kbupload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the document service API")
	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport: http or s3")
	fs.StringVar(&cfg.Token, "k", cfg.Token, "bearer token")
	fs.IntVar(&cfg.MaxConcurrent, "n", cfg.MaxConcurrent, "max files uploading at once")
	fs.Int64Var(&cfg.ChunkSize, "b", cfg.ChunkSize, "chunk size in bytes")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "journal database path")

	// Consumed by parseFile already.
	var ignored string
	fs.StringVar(&ignored, "c", "", "config file")
	fs.StringVar(&ignored, "config", "", "config file")

	if err := fs.Parse(known); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return rest, nil
}
