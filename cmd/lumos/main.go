package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/getlumos/lumos-sub002/pkg/cli"
)

func main() {
	// Create root command
	rootCmd := cli.NewRootCommand()

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		// Commands that already printed their result return a bare exit
		// error; the status code is the whole message.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}
