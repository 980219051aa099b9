package commands

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/daemon"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

// NotifyCmd implements the 'notify' command.
type NotifyCmd struct {
	Event kong.FileContentFlag `arg:"" optional:"" help:"Pipeline execution state change event JSON file (default stdin)"`
}

func (n *NotifyCmd) Run(g *Global, root *CLI) error {
	data, err := readEvent(g, n.Event)
	if err != nil {
		return err
	}
	outcome, err := ingress.DecodePipelineOutcome(data)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig(config.RoleNotifier)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := daemon.Build(ctx, cfg, config.RoleNotifier)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	delivery, err := c.Notifier.Handle(ctx, outcome)
	if err != nil {
		return err
	}
	return writeJSON(g, delivery)
}
