package commands

import (
	"fmt"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
)

// ConfigCmd groups configuration commands.
type ConfigCmd struct {
	Check ConfigCheckCmd `cmd:"" help:"Validate configuration for the given roles"`
}

// ConfigCheckCmd implements 'config check'.
type ConfigCheckCmd struct {
	Roles []string `name:"role" help:"Roles to check (default all)" enum:"trigger,dispatcher,workflow,notifier"`
}

// CheckOutput summarizes a valid configuration.
type CheckOutput struct {
	Roles         []string `json:"roles"`
	QueueBackend  string   `json:"queue_backend"`
	MailTransport string   `json:"mail_transport"`
	LedgerBackend string   `json:"ledger_backend"`
	Snapshot      string   `json:"snapshot"`
}

func (c *ConfigCheckCmd) Run(g *Global, root *CLI) error {
	roles := config.AllRoles
	if len(c.Roles) > 0 {
		roles = make([]config.Role, 0, len(c.Roles))
		for _, r := range c.Roles {
			roles = append(roles, config.Role(r))
		}
	}
	cfg, err := root.loadConfig(roles...)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	if err := writeJSON(g, CheckOutput{
		Roles:         names,
		QueueBackend:  string(cfg.Queue.Backend),
		MailTransport: string(cfg.Mail.Transport),
		LedgerBackend: string(cfg.Ledger.Backend),
		Snapshot:      cfg.Snapshot(),
	}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
