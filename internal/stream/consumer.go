// Package stream consumes ingress events from a Kafka topic and hands them to
// the event bus. Offsets are committed only after the bus accepted the event.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/events"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// KindHeader names the message header that selects the event kind.
const KindHeader = "event-kind"

// Detail types emitted by the cloud event bus.
const (
	DetailTypeReference = "CodeCommit Repository State Change"
	DetailTypeOutcome   = "CodePipeline Pipeline Execution State Change"
)

const commitTimeout = 3 * time.Second

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// Publisher hands decoded events to their handlers.
type Publisher interface {
	Publish(ctx context.Context, evt any) error
}

// Config addresses the topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader opens a group reader with manual commits.
func NewReader(cfg Config) *kgo.Reader {
	return kgo.NewReader(kgo.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// Consumer pumps messages from a Reader into the bus.
type Consumer struct {
	reader Reader
	bus    Publisher
	topic  string
}

// NewConsumer creates a Consumer.
func NewConsumer(reader Reader, bus Publisher, topic string) *Consumer {
	return &Consumer{reader: reader, bus: bus, topic: topic}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed and
// dropped. A publish failure stops the consumer without committing, so the
// message is redelivered to the group.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("Kafka reader close failed", logfields.Error(err))
		}
	}()
	slog.Info("Kafka consumer started", slog.String("topic", c.topic))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return ferrors.WrapError(err, ferrors.CategoryNetwork, "kafka fetch failed").
				WithContext("topic", c.topic).
				Build()
		}

		evt, err := Decode(m, time.Now())
		if err != nil {
			slog.Warn("Dropping undecodable stream message",
				slog.String("topic", m.Topic),
				slog.Int("partition", m.Partition),
				slog.Int64("offset", m.Offset),
				logfields.Error(err))
			if cerr := c.commit(ctx, m); cerr != nil {
				return cerr
			}
			continue
		}

		if err := c.bus.Publish(ctx, evt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.commit(ctx, m); err != nil {
			return err
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kgo.Message) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := c.reader.CommitMessages(cctx, m); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "kafka commit failed").
			WithContext("topic", m.Topic).
			WithContext("offset", m.Offset).
			Build()
	}
	return nil
}

// Decode turns a message into a bus event. The kind comes from KindHeader,
// or from the envelope detail-type when the header is absent.
func Decode(m kgo.Message, receivedAt time.Time) (events.Event, error) {
	kind, err := kindOf(m)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ingress.KindReferenceUpdate:
		u, err := ingress.DecodeReferenceUpdate(m.Value)
		if err != nil {
			return nil, err
		}
		return events.ReferenceUpdated{Update: u, Source: "kafka", ReceivedAt: receivedAt}, nil
	case ingress.KindPipelineOutcome:
		o, err := ingress.DecodePipelineOutcome(m.Value)
		if err != nil {
			return nil, err
		}
		return events.PipelineFinished{Outcome: o, Source: "kafka", ReceivedAt: receivedAt}, nil
	default:
		req, err := ingress.DecodeJobRequest(m.Value)
		if err != nil {
			return nil, err
		}
		id := string(m.Key)
		return events.ExecutionRequested{ExecutionID: id, Request: req, Source: "kafka", ReceivedAt: receivedAt}, nil
	}
}

func kindOf(m kgo.Message) (ingress.Kind, error) {
	for _, h := range m.Headers {
		if h.Key != KindHeader {
			continue
		}
		switch k := ingress.Kind(h.Value); k {
		case ingress.KindReferenceUpdate, ingress.KindPipelineOutcome, ingress.KindJobRequest:
			return k, nil
		default:
			return "", ferrors.ValidationError("unknown event kind").WithContext("kind", string(h.Value)).Build()
		}
	}

	var probe struct {
		DetailType string `json:"detail-type"`
	}
	if err := json.Unmarshal(m.Value, &probe); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "malformed event").Build()
	}
	switch probe.DetailType {
	case DetailTypeReference:
		return ingress.KindReferenceUpdate, nil
	case DetailTypeOutcome:
		return ingress.KindPipelineOutcome, nil
	default:
		return "", ferrors.ValidationError("unrecognised event").WithContext("detail_type", probe.DetailType).Build()
	}
}
