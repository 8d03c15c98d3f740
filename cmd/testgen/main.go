// Command testgen runs the test-generation gateway and its sandbox worker.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/tbourn/go-testgen-gateway/docs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "testgen",
	Short:         "LLM test generation gateway and sandbox worker",
	Long:          "testgen streams generated unit tests to authenticated users, meters them with tokens and runs them in an isolated sandbox.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("testgen failed")
		os.Exit(1)
	}
}
