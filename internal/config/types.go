package config

import (
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
)

// QueueBackend selects the correlation queue transport.
type QueueBackend string

const (
	QueueBackendSQS       QueueBackend = "sqs"
	QueueBackendJetStream QueueBackend = "jetstream"
	QueueBackendMemory    QueueBackend = "memory"
)

var queueBackendNormalizer = foundation.NewNormalizer(map[string]QueueBackend{
	"sqs":       QueueBackendSQS,
	"jetstream": QueueBackendJetStream,
	"nats":      QueueBackendJetStream,
	"memory":    QueueBackendMemory,
}, QueueBackendSQS)

// LedgerBackend selects the consumer-side dedup ledger store.
type LedgerBackend string

const (
	LedgerBackendSQLite   LedgerBackend = "sqlite"
	LedgerBackendDynamoDB LedgerBackend = "dynamodb"
)

var ledgerBackendNormalizer = foundation.NewNormalizer(map[string]LedgerBackend{
	"sqlite":   LedgerBackendSQLite,
	"dynamodb": LedgerBackendDynamoDB,
	"dynamo":   LedgerBackendDynamoDB,
}, LedgerBackendSQLite)

// MailTransport selects how reports are delivered.
type MailTransport string

const (
	MailTransportGraph MailTransport = "graph"
	MailTransportSES   MailTransport = "ses"
)

var mailTransportNormalizer = foundation.NewNormalizer(map[string]MailTransport{
	"graph": MailTransportGraph,
	"ses":   MailTransportSES,
}, MailTransportGraph)

// CommitSource selects where commit metadata is read from.
type CommitSource string

const (
	CommitSourceCodeCommit CommitSource = "codecommit"
	CommitSourceGit        CommitSource = "git"
)

var commitSourceNormalizer = foundation.NewNormalizer(map[string]CommitSource{
	"codecommit": CommitSourceCodeCommit,
	"git":        CommitSourceGit,
}, CommitSourceCodeCommit)

// PollBackoffMode enumerates delay growth strategies for workflow polling.
type PollBackoffMode string

const (
	PollBackoffFixed       PollBackoffMode = "fixed"
	PollBackoffLinear      PollBackoffMode = "linear"
	PollBackoffExponential PollBackoffMode = "exponential"
)

var pollBackoffNormalizer = foundation.NewNormalizer(map[string]PollBackoffMode{
	"fixed":       PollBackoffFixed,
	"linear":      PollBackoffLinear,
	"exponential": PollBackoffExponential,
}, PollBackoffFixed)

// NormalizePollBackoff converts user input into a mode, falling back to fixed.
func NormalizePollBackoff(raw string) PollBackoffMode {
	return pollBackoffNormalizer.Normalize(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = foundation.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = foundation.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// Config is the process configuration. It is built once and injected into
// every component; nothing reads the environment after Load returns.
type Config struct {
	Project      string   `yaml:"project"`
	PipelineName string   `yaml:"pipeline_name"`
	BranchKeys   []string `yaml:"branch_keys"`
	RulesFile    string   `yaml:"rules_file,omitempty"`
	StateDB      string   `yaml:"state_db"`
	Region       string   `yaml:"region,omitempty"`

	Queue    QueueConfig    `yaml:"queue"`
	Command  CommandConfig  `yaml:"command"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Reports  ReportConfig   `yaml:"reports"`
	Mail     MailConfig     `yaml:"mail"`
	Source   SourceConfig   `yaml:"source"`
	HTTP     HTTPConfig     `yaml:"http"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// QueueConfig describes the correlation queue.
type QueueConfig struct {
	Backend QueueBackend `yaml:"backend"`
	URL     string       `yaml:"url"`
	NATSURL string       `yaml:"nats_url,omitempty"`
	Stream  string       `yaml:"stream,omitempty"`
	// PipelineToken must appear in a pipeline name for that pipeline to consume this queue.
	PipelineToken     string        `yaml:"pipeline_token"`
	ReceiveWait       time.Duration `yaml:"receive_wait"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	DedupWindow       time.Duration `yaml:"dedup_window"`
	AckOnDispatch     bool          `yaml:"ack_on_dispatch"`
	ConsumerDedup     bool          `yaml:"consumer_dedup"`
}

// CommandConfig describes the remote command service.
type CommandConfig struct {
	DocumentName string `yaml:"document_name"`
	InstanceID   string `yaml:"instance_id,omitempty"`
}

// WorkflowConfig bounds orchestrator executions.
type WorkflowConfig struct {
	Timeout         time.Duration   `yaml:"timeout"`
	PollInterval    time.Duration   `yaml:"poll_interval"`
	PollMaxInterval time.Duration   `yaml:"poll_max_interval"`
	PollBackoff     PollBackoffMode `yaml:"poll_backoff"`
	ReleaseBuilder  bool            `yaml:"release_builder"`
	Concurrency     int             `yaml:"concurrency"`
	CompletionGrace time.Duration   `yaml:"completion_grace"`
}

// LedgerConfig describes the consumer-side dedup ledger.
type LedgerConfig struct {
	Backend   LedgerBackend `yaml:"backend"`
	Table     string        `yaml:"table,omitempty"`
	Retention time.Duration `yaml:"retention"`
}

// ReportConfig locates build logs and shapes the report.
type ReportConfig struct {
	Bucket     string        `yaml:"bucket"`
	LogPrefix  string        `yaml:"log_prefix"`
	LinkExpiry time.Duration `yaml:"link_expiry"`
	UTCOffset  string        `yaml:"utc_offset"`
}

// MailConfig describes report delivery.
type MailConfig struct {
	Transport      MailTransport `yaml:"transport"`
	Sender         string        `yaml:"sender"`
	CC             []string      `yaml:"cc,omitempty"`
	SecretARN      string        `yaml:"secret_arn,omitempty"`
	SecretFile     string        `yaml:"secret_file,omitempty"`
	SecretIdentity string        `yaml:"secret_identity,omitempty"`
}

// SourceConfig selects the commit metadata source.
type SourceConfig struct {
	Backend   CommitSource `yaml:"backend"`
	MirrorDir string       `yaml:"mirror_dir,omitempty"`
}

// HTTPConfig configures the ingress server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// KafkaConfig configures the optional ingress stream. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
	GroupID string   `yaml:"group_id,omitempty"`
}

// Enabled reports whether a Kafka ingress consumer should run.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 && k.Topic != "" }

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}
