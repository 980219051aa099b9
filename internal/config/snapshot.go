package config

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Snapshot returns a stable fingerprint of the behavior-affecting settings.
// Secrets and addresses are excluded; list fields are order-insensitive.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := blake3.New()
	w := func(parts ...string) {
		_, _ = h.Write([]byte(strings.Join(parts, "=")))
		_, _ = h.Write([]byte{0})
	}
	keys := append([]string(nil), c.BranchKeys...)
	sort.Strings(keys)

	w("pipeline", c.PipelineName)
	w("branch_keys", strings.Join(keys, ","))
	w("rules_file", c.RulesFile)
	w("queue.backend", string(c.Queue.Backend))
	w("queue.pipeline_token", c.Queue.PipelineToken)
	w("queue.receive_wait", c.Queue.ReceiveWait.String())
	w("queue.visibility_timeout", c.Queue.VisibilityTimeout.String())
	w("queue.dedup_window", c.Queue.DedupWindow.String())
	w("queue.ack_on_dispatch", boolString(c.Queue.AckOnDispatch))
	w("queue.consumer_dedup", boolString(c.Queue.ConsumerDedup))
	w("workflow.timeout", c.Workflow.Timeout.String())
	w("workflow.poll_interval", c.Workflow.PollInterval.String())
	w("workflow.poll_backoff", string(c.Workflow.PollBackoff))
	w("workflow.release_builder", boolString(c.Workflow.ReleaseBuilder))
	w("reports.log_prefix", c.Reports.LogPrefix)
	w("reports.link_expiry", c.Reports.LinkExpiry.String())
	w("reports.utc_offset", c.Reports.UTCOffset)
	w("mail.transport", string(c.Mail.Transport))
	w("source.backend", string(c.Source.Backend))
	return hex.EncodeToString(h.Sum(nil))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
