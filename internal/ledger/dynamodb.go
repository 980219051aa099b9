package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type claimItem struct {
	ClaimKey  string `dynamodbav:"claim_key"`
	Consumer  string `dynamodbav:"consumer"`
	MessageID string `dynamodbav:"message_id"`
	ClaimedAt int64  `dynamodbav:"claimed_at"`
	// ExpiresAt feeds the table's TTL attribute when one is configured.
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

// DynamoLedger implements correlation.Ledger with conditional puts.
// The table's partition key is the string attribute "claim_key".
type DynamoLedger struct {
	db        DynamoAPI
	table     string
	retention time.Duration
}

// NewDynamoLedger creates a ledger on table.
func NewDynamoLedger(db DynamoAPI, table string, retention time.Duration) *DynamoLedger {
	return &DynamoLedger{db: db, table: table, retention: retention}
}

func claimKey(consumer, messageID string) string { return consumer + "#" + messageID }

func (l *DynamoLedger) Claim(ctx context.Context, consumer, messageID string, at time.Time) (bool, error) {
	item, err := attributevalue.MarshalMap(claimItem{
		ClaimKey:  claimKey(consumer, messageID),
		Consumer:  consumer,
		MessageID: messageID,
		ClaimedAt: at.Unix(),
		ExpiresAt: at.Add(l.retention).Unix(),
	})
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryStorage, "claim message").Build()
	}

	_, err = l.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(claim_key)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return false, nil
		}
		return false, ferrors.RemoteServiceError(ferrors.CategoryStorage, "dynamodb.PutItem", err)
	}
	return true, nil
}

// Prune scans for claims older than before and deletes them. Tables with a
// TTL on expires_at rarely have anything left to prune.
func (l *DynamoLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	var (
		deleted int64
		start   map[string]types.AttributeValue
	)
	for {
		out, err := l.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(l.table),
			ExclusiveStartKey:         start,
			FilterExpression:          aws.String("claimed_at < :cutoff"),
			ProjectionExpression:      aws.String("claim_key"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(before.Unix(), 10)},
			},
		})
		if err != nil {
			return deleted, ferrors.RemoteServiceError(ferrors.CategoryStorage, "dynamodb.Scan", err)
		}
		for _, item := range out.Items {
			_, err := l.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(l.table),
				Key:       map[string]types.AttributeValue{"claim_key": item["claim_key"]},
			})
			if err != nil {
				return deleted, ferrors.RemoteServiceError(ferrors.CategoryStorage, "dynamodb.DeleteItem", err)
			}
			deleted++
		}
		if len(out.LastEvaluatedKey) == 0 {
			return deleted, nil
		}
		start = out.LastEvaluatedKey
	}
}
