package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyExecutionID = "execution_id"
	KeyPipeline    = "pipeline"
	KeyVariant     = "variant"
	KeyVariantType = "variant_type"
	KeyBranch      = "branch"
	KeyRepo        = "repository"
	KeyCommit      = "commit_id"
	KeyCommandID   = "command_id"
	KeyInstanceID  = "instance_id"
	KeyPhase       = "phase"
	KeyState       = "state"
	KeyStatus      = "status"
	KeyQueue       = "queue"
	KeyMessageID   = "message_id"
	KeyDedupID     = "dedup_id"
	KeyObjectKey   = "object_key"
	KeyRecipient   = "recipient"
	KeyDurationMS  = "duration_ms"
	KeyAttempt     = "attempt"
	KeyPath        = "path"
	KeyMethod      = "method"
	KeyError       = "error"
)

func ExecutionID(id string) slog.Attr  { return slog.String(KeyExecutionID, id) }
func Pipeline(name string) slog.Attr   { return slog.String(KeyPipeline, name) }
func Variant(v string) slog.Attr       { return slog.String(KeyVariant, v) }
func VariantType(v string) slog.Attr   { return slog.String(KeyVariantType, v) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Commit(id string) slog.Attr       { return slog.String(KeyCommit, id) }
func CommandID(id string) slog.Attr    { return slog.String(KeyCommandID, id) }
func InstanceID(id string) slog.Attr   { return slog.String(KeyInstanceID, id) }
func Phase(p string) slog.Attr         { return slog.String(KeyPhase, p) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Status(s string) slog.Attr        { return slog.String(KeyStatus, s) }
func Queue(q string) slog.Attr         { return slog.String(KeyQueue, q) }
func MessageID(id string) slog.Attr    { return slog.String(KeyMessageID, id) }
func DedupID(id string) slog.Attr      { return slog.String(KeyDedupID, id) }
func ObjectKey(k string) slog.Attr     { return slog.String(KeyObjectKey, k) }
func Recipient(addr string) slog.Attr  { return slog.String(KeyRecipient, addr) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
