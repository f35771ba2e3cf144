// Command redhub-serve runs a Redis-protocol server backed either by an
// in-memory key/value engine or by a transparent proxy toward a real
// upstream Redis.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "redhub-serve",
	Short: "Run a Redis-protocol server",
	Long: "redhub-serve speaks the Redis serialization protocol (RESP) to its clients,\n" +
		"either answering commands from its own in-memory store (the \"local\" subcommand)\n" +
		"or transparently proxying them to a real upstream Redis (the \"proxy\" subcommand).",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "path to a rotating log file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
