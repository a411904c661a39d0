package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the game server"`
	Seed    SeedCmd          `cmd:"" help:"Create a demo group with four users"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("doko"),
		kong.Description("Doppelkopf turn-sequencing and notification server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
