package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/daemon"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(config.AllRoles...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := daemon.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("Component close failed", logfields.Error(err))
		}
	}()

	return daemon.New(c).Run(ctx)
}
