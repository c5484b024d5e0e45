package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoItem is one preference value. The table is keyed by namespace
// (partition) and key (sort).
type dynamoItem struct {
	Namespace string `dynamodbav:"namespace"`
	Key       string `dynamodbav:"key"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoBackend stores preferences in a DynamoDB table. A zero TTL leaves
// expiresAt unset so items never expire.
type DynamoBackend struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoBackend creates a DynamoDB-backed preference backend.
func NewDynamoBackend(client dynamoAPI, tableName string, ttl time.Duration) *DynamoBackend {
	if client == nil {
		panic("prefs: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("prefs: table name cannot be empty")
	}
	return &DynamoBackend{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Load implements Backend.
func (b *DynamoBackend) Load(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"namespace": &types.AttributeValueMemberS{Value: namespace},
			"key":       &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if item.ExpiresAt > 0 && item.ExpiresAt <= b.now().Unix() {
		// DynamoDB deletes expired items lazily.
		return nil, false, nil
	}
	return []byte(item.Value), true, nil
}

// Save implements Backend. Oversized items surface as ErrQuotaExceeded.
func (b *DynamoBackend) Save(ctx context.Context, namespace, key string, value []byte) error {
	now := b.now().UTC()
	item := dynamoItem{
		Namespace: namespace,
		Key:       key,
		Value:     string(value),
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if b.ttl > 0 {
		item.ExpiresAt = now.Add(b.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      av,
	})
	if err != nil {
		if isItemTooLarge(err) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func isItemTooLarge(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationException" &&
		strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "item size")
}

var _ Backend = (*DynamoBackend)(nil)
