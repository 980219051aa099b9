// Package jetstream implements the correlation queue on NATS JetStream.
//
// Mapping: one work-queue stream per queue; each group id is published on its
// own subject; the dedup id travels as Nats-Msg-Id so the stream's duplicate
// window is the dedup window; a single durable pull consumer with explicit
// acks uses AckWait as the visibility timeout and MaxAckPending=1 so only one
// record is in flight at a time. The receipt token is the message's reply
// subject, so any process connected to the server can acknowledge it.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/blake3"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

const (
	headerGroup = "R2ex-Group-Id"
	headerDedup = "R2ex-Dedup-Id"
	ackPayload  = "+ACK"
)

// Config describes the stream and consumer.
type Config struct {
	URL               string
	Stream            string
	Consumer          string
	VisibilityTimeout time.Duration
	DedupWindow       time.Duration
}

// Queue is a correlation.Queue backed by JetStream.
type Queue struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	cfg      Config
}

// Connect dials the server and ensures the stream and consumer exist.
func Connect(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Stream == "" {
		return nil, ferrors.ConfigurationError("jetstream stream name is required").Build()
	}
	if cfg.Consumer == "" {
		cfg.Consumer = strings.ToLower(cfg.Stream) + "-consumer"
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("r2ex"))
	if err != nil {
		return nil, ferrors.QueueUnavailable(cfg.Stream, fmt.Errorf("failed to connect to NATS: %w", err))
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.QueueUnavailable(cfg.Stream, fmt.Errorf("failed to create JetStream context: %w", err))
	}

	q := &Queue{conn: conn, js: js, cfg: cfg}
	if err := q.ensure(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("JetStream correlation queue ready",
		"url", cfg.URL,
		logfields.Queue(cfg.Stream),
		"consumer", cfg.Consumer)
	return q, nil
}

func (q *Queue) ensure(ctx context.Context) error {
	stream, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        q.cfg.Stream,
		Description: "Branch correlation records",
		Subjects:    []string{q.cfg.Stream + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Duplicates:  q.cfg.DedupWindow,
	})
	if err != nil {
		return ferrors.QueueUnavailable(q.cfg.Stream, fmt.Errorf("failed to create stream: %w", err))
	}
	q.consumer, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       q.cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.VisibilityTimeout,
		MaxAckPending: 1,
		FilterSubject: q.cfg.Stream + ".>",
	})
	if err != nil {
		return ferrors.QueueUnavailable(q.cfg.Stream, fmt.Errorf("failed to create consumer: %w", err))
	}
	return nil
}

func (q *Queue) Name() string { return q.cfg.Stream }

// Subject returns the subject a group id is published on. Group ids are
// branch names, which may contain characters subjects cannot.
func Subject(stream, groupID string) string {
	sum := blake3.Sum256([]byte(groupID))
	return fmt.Sprintf("%s.group.%x", stream, sum[:12])
}

func (q *Queue) Enqueue(ctx context.Context, rec correlation.Record, groupID, dedupID string) (correlation.EnqueueResult, error) {
	if groupID == "" {
		return correlation.EnqueueResult{}, ferrors.ValidationError("group id is required").Build()
	}
	msg := nats.NewMsg(Subject(q.cfg.Stream, groupID))
	msg.Data = []byte(rec.Encode())
	msg.Header.Set(headerGroup, groupID)
	msg.Header.Set(headerDedup, dedupID)

	var opts []jetstream.PublishOpt
	if dedupID != "" {
		opts = append(opts, jetstream.WithMsgID(dedupID))
	}
	ack, err := q.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		return correlation.EnqueueResult{}, ferrors.QueueUnavailable(q.cfg.Stream, err)
	}
	return correlation.EnqueueResult{
		MessageID: strconv.FormatUint(ack.Sequence, 10),
		Duplicate: ack.Duplicate,
	}, nil
}

func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (foundation.Option[correlation.Message], error) {
	if wait <= 0 {
		wait = time.Millisecond
	}
	batch, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return foundation.None[correlation.Message](), nil
		}
		return foundation.None[correlation.Message](), ferrors.QueueUnavailable(q.cfg.Stream, err)
	}
	if m, ok := <-batch.Messages(); ok && m != nil {
		return foundation.Some(toMessage(m)), nil
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return foundation.None[correlation.Message](), ferrors.QueueUnavailable(q.cfg.Stream, err)
	}
	if err := ctx.Err(); err != nil {
		return foundation.None[correlation.Message](), err
	}
	return foundation.None[correlation.Message](), nil
}

func toMessage(m jetstream.Msg) correlation.Message {
	out := correlation.Message{
		Receipt: m.Reply(),
		Body:    string(m.Data()),
		GroupID: m.Headers().Get(headerGroup),
		DedupID: m.Headers().Get(headerDedup),
	}
	if md, err := m.Metadata(); err == nil {
		out.ID = strconv.FormatUint(md.Sequence.Stream, 10)
		out.ReceiveCount = int(md.NumDelivered)
		out.SentAt = md.Timestamp
	}
	return out
}

// Acknowledge publishes an ack to the delivery's reply subject.
func (q *Queue) Acknowledge(ctx context.Context, receipt string) error {
	if !strings.HasPrefix(receipt, "$JS.ACK.") {
		return ferrors.ValidationError("receipt is not valid").WithContext("queue", q.cfg.Stream).Build()
	}
	if _, err := q.conn.RequestWithContext(ctx, receipt, []byte(ackPayload)); err != nil {
		return ferrors.QueueUnavailable(q.cfg.Stream, err)
	}
	return nil
}

// Close drains the connection.
func (q *Queue) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Drain()
}

var _ correlation.Queue = (*Queue)(nil)
