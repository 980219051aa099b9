// Package daemon wires the configured components into one long-running
// process: HTTP and Kafka ingress, the event bus and its handlers, the
// workflow runner, and housekeeping jobs.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/awsclients"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/classifier"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/jetstream"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/memqueue"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/sqsqueue"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/eventstore"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/jobapi"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ledger"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/logresolve"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/mail"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/secrets"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/retry"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/source"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/trigger"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/worker"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/workflow"
)

// Consumer names under which the dedup ledger records claims.
const (
	ConsumerDispatcher = "dispatcher"
	ConsumerNotifier   = "notifier"
)

// executionHistory bounds the in-memory execution projection.
const executionHistory = 500

// Components are the units of work built from one configuration.
type Components struct {
	Config     *config.Config
	Rules      classifier.RuleSet
	Classifier *classifier.Classifier
	Trigger    *trigger.Handler
	Dispatcher *jobapi.Dispatcher
	Notifier   *notify.Notifier
	Workflow   *workflow.Orchestrator
	Journal    *eventstore.Journal
	Ledger     correlation.Ledger
	Registry   *prom.Registry
	Recorder   metrics.Recorder

	closers []func() error
}

// MetricsHandler exposes the component registry.
func (c *Components) MetricsHandler() http.Handler { return metrics.HTTPHandler(c.Registry) }

// Close releases stores and connections in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Build constructs the components serving roles, or all of them when roles
// is empty. Handlers for other roles stay nil. On error anything already
// opened is closed.
func Build(ctx context.Context, cfg *config.Config, roles ...config.Role) (_ *Components, err error) {
	if len(roles) == 0 {
		roles = config.AllRoles
	}
	serves := func(r config.Role) bool { return slices.Contains(roles, r) }

	c := &Components{Config: cfg, Registry: prom.NewRegistry()}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()
	c.Recorder = metrics.NewPrometheusRecorder(c.Registry)

	c.Rules = classifier.DefaultRules(cfg.BranchKeys)
	if cfg.RulesFile != "" {
		if c.Rules, err = classifier.LoadRules(cfg.RulesFile, c.Rules); err != nil {
			return nil, err
		}
	}
	if c.Classifier, err = classifier.New(c.Rules, cfg.PipelineName); err != nil {
		return nil, err
	}

	aws, err := awsclients.Load(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	queue, err := c.openQueue(ctx, aws)
	if err != nil {
		return nil, err
	}
	if err := c.openLedger(aws); err != nil {
		return nil, err
	}

	store, err := eventstore.NewSQLiteStore(cfg.StateDB)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, store.Close)
	projection := eventstore.NewExecutionProjection(store, executionHistory)
	if err := projection.Rebuild(ctx); err != nil {
		return nil, err
	}
	c.Journal = eventstore.NewJournal(store, projection)

	catalog := pipeline.NewCodePipelineCatalog(aws.CodePipeline)

	if serves(config.RoleTrigger) {
		c.Trigger = trigger.New(c.Classifier, c.routes(queue, ""), catalog, c.Recorder)
	}
	if serves(config.RoleDispatcher) || serves(config.RoleWorkflow) {
		c.Dispatcher = jobapi.New(c.routes(queue, ConsumerDispatcher), catalog, command.NewSSMService(aws.SSM), c.Recorder, jobapi.Settings{
			DocumentName:  cfg.Command.DocumentName,
			ReceiveWait:   cfg.Queue.ReceiveWait,
			AckOnDispatch: cfg.Queue.AckOnDispatch,
		})
	}
	if serves(config.RoleNotifier) {
		if err := c.buildNotifier(aws, queue, catalog); err != nil {
			return nil, err
		}
	}
	if serves(config.RoleWorkflow) {
		c.Workflow = workflow.New(worker.NewEC2Controller(aws.EC2), c.Dispatcher, catalog, c.Journal, c.Recorder, workflow.Settings{
			Timeout:         cfg.Workflow.Timeout,
			Poll:            retry.FromConfig(cfg.Workflow),
			ReleaseBuilder:  cfg.Workflow.ReleaseBuilder,
			CompletionGrace: cfg.Workflow.CompletionGrace,
		})
	}
	return c, nil
}

func (c *Components) buildNotifier(aws *awsclients.Bundle, queue correlation.Queue, catalog pipeline.Catalog) error {
	cfg := c.Config
	transport, err := c.mailTransport(aws)
	if err != nil {
		return err
	}
	skew, err := config.ParseUTCOffset(cfg.Reports.UTCOffset)
	if err != nil {
		return ferrors.ConfigurationError("invalid report utc offset").WithCause(err).Build()
	}
	resolver := logresolve.NewResolver(
		logresolve.NewS3Store(aws.S3, aws.S3Presign, cfg.Reports.Bucket),
		cfg.Reports.LogPrefix,
		cfg.Reports.LinkExpiry,
		logresolve.WithCutoffSkew(skew),
	)
	c.Notifier = notify.New(notify.Deps{
		Pipelines: catalog,
		Queues:    c.routes(queue, ConsumerNotifier),
		Variants:  c.Classifier,
		Commits:   c.commitSource(aws),
		Logs:      resolver,
		Mail:      transport,
		Recorder:  c.Recorder,
	}, notify.Settings{
		Project:     cfg.Project,
		Sender:      cfg.Mail.Sender,
		CC:          cfg.Mail.CC,
		ReceiveWait: cfg.Queue.ReceiveWait,
		LinkExpiry:  cfg.Reports.LinkExpiry,
	})
	return nil
}

func (c *Components) openQueue(ctx context.Context, aws *awsclients.Bundle) (correlation.Queue, error) {
	q := c.Config.Queue
	switch q.Backend {
	case config.QueueBackendJetStream:
		js, err := jetstream.Connect(ctx, jetstream.Config{
			URL:               q.NATSURL,
			Stream:            q.Stream,
			VisibilityTimeout: q.VisibilityTimeout,
			DedupWindow:       q.DedupWindow,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, js.Close)
		return js, nil
	case config.QueueBackendMemory:
		slog.Warn("Using in-memory correlation queue; records do not survive a restart")
		return memqueue.New(strings.ToLower(q.Stream),
			memqueue.WithVisibilityTimeout(q.VisibilityTimeout),
			memqueue.WithDedupWindow(q.DedupWindow)), nil
	default:
		return sqsqueue.New(aws.SQS, q.URL, q.VisibilityTimeout), nil
	}
}

func (c *Components) openLedger(aws *awsclients.Bundle) error {
	if !c.Config.Queue.ConsumerDedup {
		return nil
	}
	switch c.Config.Ledger.Backend {
	case config.LedgerBackendDynamoDB:
		c.Ledger = ledger.NewDynamoLedger(aws.DynamoDB, c.Config.Ledger.Table, c.Config.Ledger.Retention)
	default:
		l, err := ledger.NewSQLiteLedger(LedgerPath(c.Config.StateDB))
		if err != nil {
			return err
		}
		c.closers = append(c.closers, l.Close)
		c.Ledger = l
	}
	return nil
}

// routes binds the configured pipeline token to q. A non-empty consumer gets
// its own deduplicating view when consumer dedup is enabled.
func (c *Components) routes(q correlation.Queue, consumer string) correlation.Routes {
	if consumer != "" && c.Ledger != nil {
		opts := []correlation.DedupOption{correlation.WithDedupRecorder(c.Recorder)}
		if c.acksDuplicates(consumer) {
			opts = append(opts, correlation.AckDuplicates())
		}
		q = correlation.NewDeduplicating(q, c.Ledger, consumer, opts...)
	}
	return correlation.Routes{{Token: c.Config.Queue.PipelineToken, Queue: q}}
}

// acksDuplicates reports whether consumer may delete records it has already
// seen. The dispatcher reads without acknowledging unless ACK_ON_DISPATCH is
// set, so a record it sees again still belongs to the notifier.
func (c *Components) acksDuplicates(consumer string) bool {
	switch consumer {
	case ConsumerNotifier:
		return true
	case ConsumerDispatcher:
		return c.Config.Queue.AckOnDispatch
	default:
		return false
	}
}

func (c *Components) mailTransport(aws *awsclients.Bundle) (mail.Transport, error) {
	m := c.Config.Mail
	if m.Transport == config.MailTransportSES {
		return mail.NewSESTransport(aws.SESv2), nil
	}
	var creds secrets.Source
	switch {
	case m.SecretFile != "":
		creds = secrets.NewAgeFileSource(m.SecretFile, m.SecretIdentity)
	case m.SecretARN != "":
		creds = secrets.NewSecretsManagerSource(aws.SecretsManager, m.SecretARN)
	default:
		return nil, ferrors.ConfigurationError("graph mail transport needs credentials").
			WithContext("missing", []string{"SECRET_MANAGER_ARN_GRAPH_API"}).
			Build()
	}
	tokens := mail.NewClientCredentialsTokens(secrets.NewCached(creds))
	return mail.NewGraphTransport(tokens, nil, ""), nil
}

func (c *Components) commitSource(aws *awsclients.Bundle) source.Provider {
	if c.Config.Source.Backend == config.CommitSourceGit {
		return source.NewGitMirrorProvider(c.Config.Source.MirrorDir)
	}
	return source.NewCodeCommitProvider(aws.CodeCommit)
}

// LedgerPath places the SQLite ledger next to the state database so the two
// stores never contend for one file lock.
func LedgerPath(stateDB string) string {
	if stateDB == "" || stateDB == ":memory:" || strings.HasPrefix(stateDB, "file:") {
		return ":memory:"
	}
	ext := filepath.Ext(stateDB)
	return strings.TrimSuffix(stateDB, ext) + ".ledger" + ext
}

func logClose(name string, fn func() error) {
	if err := fn(); err != nil {
		slog.Warn("Close failed", slog.String("component", name), logfields.Error(err))
	}
}
