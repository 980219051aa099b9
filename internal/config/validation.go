package config

import (
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Role names a unit of work whose settings must be present at startup.
type Role string

const (
	RoleTrigger    Role = "trigger"
	RoleDispatcher Role = "dispatcher"
	RoleWorkflow   Role = "workflow"
	RoleNotifier   Role = "notifier"
)

// AllRoles is what the daemon serves.
var AllRoles = []Role{RoleTrigger, RoleDispatcher, RoleWorkflow, RoleNotifier}

// Require checks that every setting the roles depend on is present. The
// returned error is a fatal ConfigurationError listing all missing keys.
func (c *Config) Require(roles ...Role) error {
	var missing []string
	seen := make(map[string]bool)
	need := func(key string, ok bool) {
		if !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}

	for _, r := range roles {
		switch r {
		case RoleTrigger:
			need("BRANCH_KEY", len(c.BranchKeys) > 0)
			need("PIPELINE_NAME", c.PipelineName != "")
			c.requireQueue(need)
		case RoleDispatcher:
			need("SSM_DOCUMENT_NAME", c.Command.DocumentName != "")
			c.requireQueue(need)
		case RoleWorkflow:
			need("SSM_DOCUMENT_NAME", c.Command.DocumentName != "")
			need("BUILDER_INSTANCE_ID", c.Command.InstanceID != "")
			c.requireQueue(need)
		case RoleNotifier:
			need("S3_BUCKET", c.Reports.Bucket != "")
			need("SENDER_EMAIL", c.Mail.Sender != "")
			c.requireQueue(need)
			if c.Mail.Transport == MailTransportGraph {
				need("SECRET_MANAGER_ARN_GRAPH_API", c.Mail.SecretARN != "" || c.Mail.SecretFile != "")
				if c.Mail.SecretFile != "" {
					need("SECRET_IDENTITY", c.Mail.SecretIdentity != "")
				}
			}
			if c.Source.Backend == CommitSourceGit {
				need("GIT_MIRROR_DIR", c.Source.MirrorDir != "")
			}
		}
	}
	if c.Ledger.Backend == LedgerBackendDynamoDB && c.Queue.ConsumerDedup {
		need("LEDGER_TABLE", c.Ledger.Table != "")
	}

	if len(missing) == 0 {
		return nil
	}
	return ferrors.ConfigurationError("missing required configuration").
		WithContext("missing", missing).
		Build()
}

func (c *Config) requireQueue(need func(string, bool)) {
	switch c.Queue.Backend {
	case QueueBackendSQS:
		need("SQS_QUEUE_URL_R2EX", c.Queue.URL != "")
	case QueueBackendJetStream:
		need("NATS_URL", c.Queue.NATSURL != "")
	}
}
