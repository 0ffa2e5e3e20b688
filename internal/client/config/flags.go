package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   address and port of the backend server
//	-db string  path of the local state database
//	-t int      request timeout in seconds
//	-l string   location reported on login
//
// os.Args is filtered with flagx.FilterArgs so flags of other components
// (e.g. -c) do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-db", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.StateDBPath, "db", cfg.StateDBPath, "path of the local state database")
	fs.StringVar(&cfg.Location, "l", cfg.Location, "location reported on login")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
