package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Server    ServerCmd        `cmd:"" help:"Run the game server"`
	Snapshots SnapshotsCmd     `cmd:"" help:"List exported sessions from a SQLite store"`
	Token     TokenCmd         `cmd:"" help:"Issue a signed identity token"`
	NewCode   NewCodeCmd       `cmd:"new-code" help:"Print a fresh session code"`
	Bot       BotCmd           `cmd:"" help:"Connect bots to a session"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("voterps"),
		kong.Description("Rock-paper-scissors duels with an audience that votes the deck"),
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
