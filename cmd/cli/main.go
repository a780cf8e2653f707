package main

import (
	"fmt"
	"os"

	"github.com/crucial707/adhoc-web/cmd/cli/config"
	"github.com/crucial707/adhoc-web/cmd/cli/root"
	"github.com/crucial707/adhoc-web/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()
	users.InitUsers(rootCmd, config.Open)

	// Execute the root Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
