// Package config loads the CLI client configuration: defaults first, then an
// optional JSON or YAML file given with -c/-config, then command-line flags.
package config
