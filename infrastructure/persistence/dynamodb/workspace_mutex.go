package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

var errLockHeld = errors.New("lock already held")

// WorkspaceMutex serializes workspace document mutations using DynamoDB
// conditional writes. A lock row is claimed with a conditional put that
// succeeds only when no row exists or the previous holder's lease expired,
// so a crashed workflow cannot wedge a workspace forever.
type WorkspaceMutex struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

type lockRecord struct {
	PK         string `dynamodbav:"PK"` // LOCK#<resource>
	SK         string `dynamodbav:"SK"` // LOCK
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // Unix timestamp for DynamoDB TTL cleanup
}

// NewWorkspaceMutex creates a DynamoDB-backed workspace mutex
func NewWorkspaceMutex(client *dynamodb.Client, tableName string, logger *zap.Logger) *WorkspaceMutex {
	return &WorkspaceMutex{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Acquire blocks until the lock for resource is held or ctx is done. The
// returned release function deletes the lock row only while this acquisition
// still owns it.
func (m *WorkspaceMutex) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	lockID := fmt.Sprintf("%s_%d", owner, time.Now().UnixNano())
	retryInterval := 100 * time.Millisecond

	for {
		err := m.tryClaim(ctx, resource, owner, lockID, ttl)
		if err == nil {
			m.logger.Debug("Workspace lock acquired",
				zap.String("resource", resource),
				zap.String("owner", owner),
				zap.String("lock_id", lockID),
			)
			return func(releaseCtx context.Context) error {
				return m.release(releaseCtx, resource, owner, lockID)
			}, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquiring lock for %s: %w", resource, ctx.Err())
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

func (m *WorkspaceMutex) tryClaim(ctx context.Context, resource, owner, lockID string, ttl time.Duration) error {
	now := time.Now()
	expiresAt := now.Add(ttl)

	record := lockRecord{
		PK:         "LOCK#" + resource,
		SK:         "LOCK",
		LockID:     lockID,
		Owner:      owner,
		AcquiredAt: now.Format(time.RFC3339Nano),
		ExpiresAt:  expiresAt.Format(time.RFC3339Nano),
		TTL:        expiresAt.Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal lock record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(m.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}

	if _, err := m.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return errLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (m *WorkspaceMutex) release(ctx context.Context, resource, owner, lockID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "LOCK#" + resource},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: owner},
		},
	}

	if _, err := m.client.DeleteItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// The lease expired and someone else claimed it; nothing left to
			// release.
			m.logger.Warn("Workspace lock already released or reclaimed",
				zap.String("resource", resource),
				zap.String("owner", owner),
				zap.String("lock_id", lockID),
			)
			return nil
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}

	m.logger.Debug("Workspace lock released",
		zap.String("resource", resource),
		zap.String("owner", owner),
	)
	return nil
}
