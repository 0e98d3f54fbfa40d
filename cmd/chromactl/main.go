package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var rootCmd = &cobra.Command{
	Use:   "chromactl",
	Short: "Chroma control-plane CLI",
	Long:  `chromactl runs and operates the SysDB catalog, record log, and compaction loop.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&LogJSON, "log-json", false, "emit structured JSON logs instead of the console format")
	rootCmd.AddCommand(runCmd, copyCmd, profileCmd, dbCmd)
}

func main() {
	configureLogger()
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}

	if err := rootCmd.Execute(); err != nil {
		var ce *cliError
		if errors.As(err, &ce) {
			os.Exit(ce.code)
		}
		os.Exit(exitUserError)
	}
}
