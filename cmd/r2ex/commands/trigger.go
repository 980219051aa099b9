package commands

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/daemon"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

// TriggerCmd implements the 'trigger' command.
type TriggerCmd struct {
	Event kong.FileContentFlag `arg:"" optional:"" help:"Reference update event JSON file (default stdin)"`
}

func (t *TriggerCmd) Run(g *Global, root *CLI) error {
	data, err := readEvent(g, t.Event)
	if err != nil {
		return err
	}
	update, err := ingress.DecodeReferenceUpdate(data)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig(config.RoleTrigger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := daemon.Build(ctx, cfg, config.RoleTrigger)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.Trigger.Handle(ctx, update)
	if err != nil {
		return err
	}
	return writeJSON(g, res)
}
