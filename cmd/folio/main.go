package main

import (
	_ "embed"
	"strings"

	"github.com/seuros/folio/internal/cli"
	"github.com/seuros/folio/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	return executeCLI(strings.TrimSpace(versionFile))
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("folio execution failed", "error", err)
	}
}
