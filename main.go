package main

import (
	"github.com/alecthomas/kong"
)

const version = "0.1.0"

var CLI struct {
	Config string `name:"config" short:"c" help:"Path to the configuration file" default:"oi-config.json" type:"path"`

	Start   StartCmd   `cmd:"" default:"withargs" help:"Watch the directory tree and resolve markers as files change"`
	Scan    ScanCmd    `cmd:"" help:"List the markers found in a file without dispatching them"`
	Tree    TreeCmd    `cmd:"" help:"Print the watched tree with ignore rules applied"`
	History HistoryCmd `cmd:"" help:"Print journaled generations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("goinlineai"),
		kong.Description("Resolve inline //> ... </ and /*> ... </*/ instructions with a code generation backend"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
