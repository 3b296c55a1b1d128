package clicmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version is set at build time via -ldflags "-X ...clicmd.Version=...".
var Version = "dev"

var CmdVersion = &cli.Command{
	Name:  "version",
	Usage: "print the cardamom version",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		fmt.Println("cardamom " + Version)
		return nil
	},
}
