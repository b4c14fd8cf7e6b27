package main

import (
	"fmt"
	"os"

	"github.com/tphakala/quotedesk/cmd"
	"github.com/tphakala/quotedesk/internal/buildinfo"
	"github.com/tphakala/quotedesk/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	settings := &conf.Settings{}
	build := &buildinfo.Context{Version: version, BuildDate: buildDate}

	rootCmd := cmd.RootCommand(settings, build)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
