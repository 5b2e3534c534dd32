package main

import (
	"os"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
