package config

import (
	"flag"
	"os"
	"time"

	"github.com/dbrusnev/notelock/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend HTTP API
//	-k string   SQLite DSN of the local key cache
//	-e string   URL of the PDF rendering service
//	-t int      request timeout in seconds
//
// os.Args is filtered to the flags handled here (flagx.FilterArgs) to avoid
// interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-e", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the backend server")
	fs.StringVar(&cfg.KeyStoreDSN, "k", cfg.KeyStoreDSN, "local key store DSN")
	fs.StringVar(&cfg.ExportEndpointAddr, "e", cfg.ExportEndpointAddr, "PDF rendering service URL")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
