package config

import (
	"strings"
	"time"
)

const (
	DefaultProject           = "DTDJ"
	DefaultPipelineToken     = "digital-twin"
	DefaultStream            = "R2EX"
	DefaultReceiveWait       = 20 * time.Second
	DefaultVisibilityTimeout = 30 * time.Second
	DefaultDedupWindow       = 5 * time.Minute
	DefaultWorkflowTimeout   = 300 * time.Second
	DefaultPollInterval      = 5 * time.Second
	DefaultPollMaxInterval   = 30 * time.Second
	DefaultCompletionGrace   = 15 * time.Second
	DefaultLedgerRetention   = 24 * time.Hour
	DefaultLogPrefix         = "DTDJ/SOC/"
	DefaultLinkExpiry        = 5 * 24 * time.Hour
	DefaultUTCOffset         = "+05:30"
	DefaultStateDB           = "r2ex.db"
	DefaultHTTPAddr          = ":8080"
	DefaultKafkaGroupID      = "r2ex"
)

// applyDefaults fills zero values and canonicalizes enumerations.
func applyDefaults(cfg *Config) {
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}
	if cfg.StateDB == "" {
		cfg.StateDB = DefaultStateDB
	}

	q := &cfg.Queue
	q.Backend = queueBackendNormalizer.Normalize(string(q.Backend))
	if q.Stream == "" {
		q.Stream = DefaultStream
	}
	if q.PipelineToken == "" {
		q.PipelineToken = DefaultPipelineToken
	}
	if q.ReceiveWait <= 0 {
		q.ReceiveWait = DefaultReceiveWait
	}
	if q.VisibilityTimeout <= 0 {
		q.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if q.DedupWindow <= 0 {
		q.DedupWindow = DefaultDedupWindow
	}

	w := &cfg.Workflow
	if w.Timeout <= 0 {
		w.Timeout = DefaultWorkflowTimeout
	}
	if w.PollInterval <= 0 {
		w.PollInterval = DefaultPollInterval
	}
	if w.PollMaxInterval <= 0 {
		w.PollMaxInterval = DefaultPollMaxInterval
	}
	w.PollBackoff = pollBackoffNormalizer.Normalize(string(w.PollBackoff))
	if w.Concurrency <= 0 {
		w.Concurrency = 2
	}
	if w.CompletionGrace <= 0 {
		w.CompletionGrace = DefaultCompletionGrace
	}

	cfg.Ledger.Backend = ledgerBackendNormalizer.Normalize(string(cfg.Ledger.Backend))
	if cfg.Ledger.Retention <= 0 {
		cfg.Ledger.Retention = DefaultLedgerRetention
	}

	r := &cfg.Reports
	if r.LogPrefix == "" {
		r.LogPrefix = DefaultLogPrefix
	}
	if !strings.HasSuffix(r.LogPrefix, "/") {
		r.LogPrefix += "/"
	}
	if r.LinkExpiry <= 0 {
		r.LinkExpiry = DefaultLinkExpiry
	}
	if r.UTCOffset == "" {
		r.UTCOffset = DefaultUTCOffset
	}

	cfg.Mail.Transport = mailTransportNormalizer.Normalize(string(cfg.Mail.Transport))
	cfg.Source.Backend = commitSourceNormalizer.Normalize(string(cfg.Source.Backend))

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	cfg.Logging.Level = logLevelNormalizer.Normalize(string(cfg.Logging.Level))
	cfg.Logging.Format = logFormatNormalizer.Normalize(string(cfg.Logging.Format))
}

// Defaults returns a configuration holding only default values.
func Defaults() *Config {
	cfg := &Config{Queue: QueueConfig{ConsumerDedup: true}}
	applyDefaults(cfg)
	return cfg
}
