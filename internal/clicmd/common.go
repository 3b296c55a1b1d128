package clicmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/cardamom-sync/cardamom/internal/carddav"
	"github.com/cardamom-sync/cardamom/internal/config"
	"github.com/cardamom-sync/cardamom/internal/execpasswd"
	"github.com/cardamom-sync/cardamom/internal/logging"
	"github.com/cardamom-sync/cardamom/internal/remotestore"
)

func loadAndValidate(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging translates config's plain Level/Format pair into the
// teacher zerolog wrapper's richer Config and initializes the global
// logger. Console output is on for "console" format and off (stderr
// only, structured) otherwise -- cardamom is a CLI run from a terminal
// or a cron job, never a long-lived daemon with a separate log file.
func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Format == "console",
	})
}

func dialClient(ctx context.Context, cfg *config.Config) (*carddav.Client, error) {
	password, err := execpasswd.Resolve(ctx, cfg.Credentials.PasswdCmd)
	if err != nil {
		return nil, fmt.Errorf("resolve password: %w", err)
	}
	client, err := carddav.NewClient(cfg.Server.Host, cfg.Server.Port, cfg.Credentials.Login, password)
	if err != nil {
		return nil, fmt.Errorf("build carddav client: %w", err)
	}
	return client, nil
}

func openRemoteStore(client *carddav.Client) (*remotestore.Store, error) {
	store, err := remotestore.Open(client)
	if err != nil {
		return nil, fmt.Errorf("discover addressbook: %w", err)
	}
	return store, nil
}
