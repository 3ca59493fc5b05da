package main

import (
	"context"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug logging." env:"DEBUG"`
		Version kong.VersionFlag `help:"Print version and exit."`
		Serve   ServeCmd         `cmd:"" default:"withargs" help:"Start the auth HTTP server"`
	}
)

// Globals are flags shared by every command.
type Globals struct {
	Debug   bool
	Version string
}

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("portfolio-backend"),
		kong.Description("Cookie-session OIDC backend."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
