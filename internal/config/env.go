package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LookupFunc resolves an environment key.
type LookupFunc func(key string) (string, bool)

// envFiles are loaded in order; existing process variables always win.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads every env file that exists and returns the names loaded.
func loadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, fmt.Errorf("load %s: %w", name, err)
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

type binding struct {
	key   string
	apply func(cfg *Config, raw string) error
}

func str(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		set(cfg, strings.TrimSpace(raw))
		return nil
	}
}

func list(set func(*Config, []string)) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		set(cfg, splitList(raw))
		return nil
	}
}

func dur(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

func boolean(set func(*Config, bool)) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", raw)
		}
		set(cfg, b)
		return nil
	}
}

func integer(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("expected integer, got %q", raw)
		}
		set(cfg, n)
		return nil
	}
}

// releaseMode accepts enabled/disabled as well as boolean spellings.
func releaseMode(cfg *Config, raw string) error {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "enabled", "on":
		cfg.Workflow.ReleaseBuilder = true
		return nil
	case "disabled", "off", "":
		cfg.Workflow.ReleaseBuilder = false
		return nil
	}
	return boolean(func(c *Config, b bool) { c.Workflow.ReleaseBuilder = b })(cfg, raw)
}

var bindings = []binding{
	{"PROJECT", str(func(c *Config, v string) { c.Project = v })},
	{"PIPELINE_NAME", str(func(c *Config, v string) { c.PipelineName = v })},
	{"BRANCH_KEY", list(func(c *Config, v []string) { c.BranchKeys = v })},
	{"RULES_FILE", str(func(c *Config, v string) { c.RulesFile = v })},
	{"STATE_DB", str(func(c *Config, v string) { c.StateDB = v })},
	{"AWS_REGION", str(func(c *Config, v string) { c.Region = v })},

	{"QUEUE_BACKEND", str(func(c *Config, v string) { c.Queue.Backend = QueueBackend(v) })},
	{"SQS_QUEUE_URL_R2EX", str(func(c *Config, v string) { c.Queue.URL = v })},
	{"NATS_URL", str(func(c *Config, v string) { c.Queue.NATSURL = v })},
	{"QUEUE_STREAM", str(func(c *Config, v string) { c.Queue.Stream = v })},
	{"QUEUE_PIPELINE_TOKEN", str(func(c *Config, v string) { c.Queue.PipelineToken = v })},
	{"QUEUE_RECEIVE_WAIT", dur(func(c *Config, d time.Duration) { c.Queue.ReceiveWait = d })},
	{"QUEUE_VISIBILITY_TIMEOUT", dur(func(c *Config, d time.Duration) { c.Queue.VisibilityTimeout = d })},
	{"QUEUE_DEDUP_WINDOW", dur(func(c *Config, d time.Duration) { c.Queue.DedupWindow = d })},
	{"ACK_ON_DISPATCH", boolean(func(c *Config, b bool) { c.Queue.AckOnDispatch = b })},
	{"CONSUMER_DEDUP", boolean(func(c *Config, b bool) { c.Queue.ConsumerDedup = b })},

	{"SSM_DOCUMENT_NAME", str(func(c *Config, v string) { c.Command.DocumentName = v })},
	{"BUILDER_INSTANCE_ID", str(func(c *Config, v string) { c.Command.InstanceID = v })},

	{"WORKFLOW_TIMEOUT", dur(func(c *Config, d time.Duration) { c.Workflow.Timeout = d })},
	{"WORKFLOW_POLL_INTERVAL", dur(func(c *Config, d time.Duration) { c.Workflow.PollInterval = d })},
	{"WORKFLOW_POLL_MAX_INTERVAL", dur(func(c *Config, d time.Duration) { c.Workflow.PollMaxInterval = d })},
	{"WORKFLOW_POLL_BACKOFF", str(func(c *Config, v string) { c.Workflow.PollBackoff = PollBackoffMode(v) })},
	{"WORKFLOW_CONCURRENCY", integer(func(c *Config, n int) { c.Workflow.Concurrency = n })},
	{"WORKFLOW_COMPLETION_GRACE", dur(func(c *Config, d time.Duration) { c.Workflow.CompletionGrace = d })},
	{"RELEASE_BUILDER", releaseMode},

	{"LEDGER_BACKEND", str(func(c *Config, v string) { c.Ledger.Backend = LedgerBackend(v) })},
	{"LEDGER_TABLE", str(func(c *Config, v string) { c.Ledger.Table = v })},
	{"LEDGER_RETENTION", dur(func(c *Config, d time.Duration) { c.Ledger.Retention = d })},

	{"S3_BUCKET", str(func(c *Config, v string) { c.Reports.Bucket = v })},
	{"LOG_PREFIX", str(func(c *Config, v string) { c.Reports.LogPrefix = v })},
	{"LOG_LINK_EXPIRY", dur(func(c *Config, d time.Duration) { c.Reports.LinkExpiry = d })},
	{"REPORT_UTC_OFFSET", str(func(c *Config, v string) { c.Reports.UTCOffset = v })},

	{"MAIL_TRANSPORT", str(func(c *Config, v string) { c.Mail.Transport = MailTransport(v) })},
	{"SENDER_EMAIL", str(func(c *Config, v string) { c.Mail.Sender = v })},
	{"CC_RECIPIENT_EMAIL", list(func(c *Config, v []string) { c.Mail.CC = v })},
	{"SECRET_MANAGER_ARN_GRAPH_API", str(func(c *Config, v string) { c.Mail.SecretARN = v })},
	{"SECRET_FILE", str(func(c *Config, v string) { c.Mail.SecretFile = v })},
	{"SECRET_IDENTITY", str(func(c *Config, v string) { c.Mail.SecretIdentity = v })},

	{"COMMIT_SOURCE", str(func(c *Config, v string) { c.Source.Backend = CommitSource(v) })},
	{"GIT_MIRROR_DIR", str(func(c *Config, v string) { c.Source.MirrorDir = v })},

	{"HTTP_ADDR", str(func(c *Config, v string) { c.HTTP.Addr = v })},
	{"KAFKA_BROKERS", list(func(c *Config, v []string) { c.Kafka.Brokers = v })},
	{"KAFKA_TOPIC", str(func(c *Config, v string) { c.Kafka.Topic = v })},
	{"KAFKA_GROUP_ID", str(func(c *Config, v string) { c.Kafka.GroupID = v })},

	{"LOG_LEVEL", str(func(c *Config, v string) { c.Logging.Level = LogLevel(v) })},
	{"LOG_FORMAT", str(func(c *Config, v string) { c.Logging.Format = LogFormat(v) })},
}

// applyEnv overlays environment values onto cfg and returns the keys whose
// values could not be parsed.
func applyEnv(cfg *Config, lookup LookupFunc) map[string]string {
	invalid := make(map[string]string)
	for _, b := range bindings {
		raw, ok := lookup(b.key)
		if !ok {
			continue
		}
		if err := b.apply(cfg, raw); err != nil {
			invalid[b.key] = err.Error()
		}
	}
	return invalid
}

// splitList splits a comma list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDuration accepts Go durations and bare integers as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("expected duration, got %q", raw)
	}
	return d, nil
}

// ParseUTCOffset converts "+05:30" style offsets to a duration.
func ParseUTCOffset(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "Z" {
		return 0, nil
	}
	sign := time.Duration(1)
	switch raw[0] {
	case '+':
		raw = raw[1:]
	case '-':
		sign = -1
		raw = raw[1:]
	}
	hh, mm, found := strings.Cut(raw, ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid utc offset %q", raw)
	}
	m := 0
	if found {
		if m, err = strconv.Atoi(mm); err != nil {
			return 0, fmt.Errorf("invalid utc offset %q", raw)
		}
	}
	if h > 14 || m > 59 {
		return 0, fmt.Errorf("invalid utc offset %q", raw)
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}
