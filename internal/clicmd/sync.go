// Package clicmd defines cardamom's command-line surface: sync,
// discover, and version, each a urfave/cli/v3 Command wired to the
// sync engine's dependencies.
package clicmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/cardamom-sync/cardamom/internal/logging"
	"github.com/cardamom-sync/cardamom/internal/platform"
	"github.com/cardamom-sync/cardamom/internal/syncengine"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Value:   defaultConfigPath(),
	Usage:   "path to the YAML configuration file",
}

var dryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Value: false,
	Usage: "compute and log the patch without applying it",
}

// defaultConfigPath resolves the platform-appropriate config file path,
// falling back to a bare relative name if the OS can't tell us the
// user's home directory.
func defaultConfigPath() string {
	paths, err := platform.GetPaths()
	if err != nil {
		return "cardamom.yaml"
	}
	return paths.ConfigFilePath()
}

// CmdSync runs one three-way sync between the local directory and the
// configured CardDAV server.
var CmdSync = &cli.Command{
	Name:  "sync",
	Usage: "synchronize local address book against the CardDAV server",
	Flags: []cli.Flag{
		configFlag,
		dryRunFlag,
	},
	Action: runSync,
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadAndValidate(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	log := logging.WithComponent("cli")

	client, err := dialClient(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := openRemoteStore(client)
	if err != nil {
		return err
	}

	engine := syncengine.New(cfg.Sync.Dir, store)
	result, err := engine.Run(syncengine.Options{DryRun: cmd.Bool("dry-run")})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	log.Info().
		Int("hunks", len(result.Hunks)).
		Str("dir", cfg.Sync.Dir).
		Bool("dry_run", cmd.Bool("dry-run")).
		Msg("sync complete")
	return nil
}
