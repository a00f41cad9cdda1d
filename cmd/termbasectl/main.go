package main

import (
	"context"
	"fmt"
	"os"

	"termbase/api/internal/cli"
	"termbase/api/internal/config"
)

func main() {
	cmd := cli.NewRootCommand(config.Load())
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
