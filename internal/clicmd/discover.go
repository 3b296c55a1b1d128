package clicmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// CmdDiscover runs the CardDAV discovery chain (current-user-principal ->
// addressbook-home-set -> addressbook) against the configured server and
// prints the resolved addressbook path, without touching the local sync
// directory. Useful for validating a new server/account before the first
// real sync.
var CmdDiscover = &cli.Command{
	Name:  "discover",
	Usage: "resolve and print the server's addressbook path",
	Flags: []cli.Flag{
		configFlag,
	},
	Action: runDiscover,
}

func runDiscover(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadAndValidate(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	client, err := dialClient(ctx, cfg)
	if err != nil {
		return err
	}

	path, err := client.AddressbookPath()
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	fmt.Println(path)
	return nil
}
