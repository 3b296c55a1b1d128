package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cardamom-sync/cardamom/internal/clicmd"
)

func main() {
	app := &cli.Command{
		Name:  "cardamom",
		Usage: "three-way CardDAV address book synchronization",
		Commands: []*cli.Command{
			clicmd.CmdSync,
			clicmd.CmdDiscover,
			clicmd.CmdVersion,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
