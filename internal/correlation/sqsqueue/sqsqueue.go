// Package sqsqueue implements the correlation queue on an SQS FIFO queue.
package sqsqueue

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// maxWait is the longest long-poll SQS accepts.
const maxWait = 20 * time.Second

// API is the subset of the SQS client the queue uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue is a correlation.Queue backed by SQS.
type Queue struct {
	api        API
	url        string
	visibility time.Duration
}

// New creates a queue for url. A zero visibility keeps the queue's own setting.
func New(api API, url string, visibility time.Duration) *Queue {
	return &Queue{api: api, url: url, visibility: visibility}
}

func (q *Queue) Name() string { return q.url }

func (q *Queue) Enqueue(ctx context.Context, rec correlation.Record, groupID, dedupID string) (correlation.EnqueueResult, error) {
	if groupID == "" {
		return correlation.EnqueueResult{}, ferrors.ValidationError("group id is required").Build()
	}
	in := &sqs.SendMessageInput{
		QueueUrl:       aws.String(q.url),
		MessageBody:    aws.String(rec.Encode()),
		MessageGroupId: aws.String(groupID),
	}
	if dedupID != "" {
		in.MessageDeduplicationId = aws.String(dedupID)
	}
	out, err := q.api.SendMessage(ctx, in)
	if err != nil {
		return correlation.EnqueueResult{}, ferrors.QueueUnavailable(q.url, err)
	}
	// SQS accepts duplicates silently and returns the original message id.
	return correlation.EnqueueResult{MessageID: aws.ToString(out.MessageId)}, nil
}

func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (foundation.Option[correlation.Message], error) {
	if wait > maxWait {
		wait = maxWait
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameMessageGroupId,
			types.MessageSystemAttributeNameMessageDeduplicationId,
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	}
	if q.visibility > 0 {
		in.VisibilityTimeout = int32(q.visibility / time.Second)
	}
	out, err := q.api.ReceiveMessage(ctx, in)
	if err != nil {
		return foundation.None[correlation.Message](), ferrors.QueueUnavailable(q.url, err)
	}
	if len(out.Messages) == 0 {
		return foundation.None[correlation.Message](), nil
	}
	return foundation.Some(toMessage(out.Messages[0])), nil
}

func toMessage(m types.Message) correlation.Message {
	msg := correlation.Message{
		ID:      aws.ToString(m.MessageId),
		Receipt: aws.ToString(m.ReceiptHandle),
		Body:    aws.ToString(m.Body),
		GroupID: m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)],
		DedupID: m.Attributes[string(types.MessageSystemAttributeNameMessageDeduplicationId)],
	}
	if n, err := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
		msg.ReceiveCount = n
	}
	if ms, err := strconv.ParseInt(m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64); err == nil {
		msg.SentAt = time.UnixMilli(ms)
	}
	return msg
}

func (q *Queue) Acknowledge(ctx context.Context, receipt string) error {
	if receipt == "" {
		return ferrors.ValidationError("receipt is not valid").WithContext("queue", q.url).Build()
	}
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return ferrors.QueueUnavailable(q.url, err)
	}
	return nil
}

var _ correlation.Queue = (*Queue)(nil)
