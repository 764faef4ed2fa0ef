package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `help:"Path to config file" type:"path"`
	LogLevel string `default:"info" help:"Log level"`

	Serve ServeCmd `cmd:"" default:"1" help:"Start the conversation server (default)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("burrow"),
		kong.Description("Streaming agent conversation server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
