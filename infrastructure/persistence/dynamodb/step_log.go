package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentforge/application/ports"
	pkgerrors "contentforge/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// StepLog implements the durable workflow step log on DynamoDB. Step records
// are written with a conditional put so the first write wins: a retried or
// replayed step never overwrites the memoized output of a completed one.
type StepLog struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// stepRecord is how step results are stored in DynamoDB
type stepRecord struct {
	PK          string `dynamodbav:"PK"` // WF#<instance_id>
	SK          string `dynamodbav:"SK"` // STEP#<step_name>
	InstanceID  string `dynamodbav:"InstanceID"`
	StepName    string `dynamodbav:"StepName"`
	Output      []byte `dynamodbav:"Output"`
	CompletedAt string `dynamodbav:"CompletedAt"` // RFC3339
}

// instanceRecord is how workflow instances are stored in DynamoDB
type instanceRecord struct {
	PK           string `dynamodbav:"PK"` // WF#<instance_id>
	SK           string `dynamodbav:"SK"` // INSTANCE
	InstanceID   string `dynamodbav:"InstanceID"`
	WorkflowName string `dynamodbav:"WorkflowName"`
	Status       string `dynamodbav:"Status"`
	Error        string `dynamodbav:"Error,omitempty"`
	StartedAt    string `dynamodbav:"StartedAt"`
	FinishedAt   string `dynamodbav:"FinishedAt,omitempty"`
}

// NewStepLog creates a DynamoDB-backed step log
func NewStepLog(client *dynamodb.Client, tableName string, logger *zap.Logger) *StepLog {
	return &StepLog{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func instancePK(instanceID string) string {
	return "WF#" + instanceID
}

// GetStep returns the memoized output of a completed step
func (l *StepLog) GetStep(ctx context.Context, instanceID, stepName string) ([]byte, bool, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: instancePK(instanceID)},
			"SK": &types.AttributeValueMemberS{Value: "STEP#" + stepName},
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := l.client.GetItem(ctx, input)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get step record: %w", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var record stepRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal step record: %w", err)
	}
	return record.Output, true, nil
}

// RecordStep persists a step's output with first-write-wins semantics
func (l *StepLog) RecordStep(ctx context.Context, instanceID, stepName string, output []byte) error {
	record := stepRecord{
		PK:          instancePK(instanceID),
		SK:          "STEP#" + stepName,
		InstanceID:  instanceID,
		StepName:    stepName,
		Output:      output,
		CompletedAt: time.Now().Format(time.RFC3339Nano),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal step record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}

	if _, err := l.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// A concurrent retry of the same step got there first; its
			// memoized output stands.
			l.logger.Debug("Step already recorded",
				zap.String("instance_id", instanceID),
				zap.String("step", stepName),
			)
			return nil
		}
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// StartInstance registers a running workflow instance
func (l *StepLog) StartInstance(ctx context.Context, rec ports.InstanceRecord) error {
	record := instanceRecord{
		PK:           instancePK(rec.InstanceID),
		SK:           "INSTANCE",
		InstanceID:   rec.InstanceID,
		WorkflowName: rec.WorkflowName,
		Status:       string(rec.Status),
		StartedAt:    rec.StartedAt.Format(time.RFC3339Nano),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal instance record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #status = :running"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":running": &types.AttributeValueMemberS{Value: string(ports.InstanceRunning)},
		},
	}

	if _, err := l.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.NewConflictError(fmt.Sprintf("workflow instance %q already finished", rec.InstanceID))
		}
		return fmt.Errorf("failed to register instance: %w", err)
	}
	return nil
}

// FinishInstance records the instance's terminal status
func (l *StepLog) FinishInstance(ctx context.Context, instanceID string, status ports.InstanceStatus, errMessage string) error {
	now := time.Now().Format(time.RFC3339Nano)

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: instancePK(instanceID)},
			"SK": &types.AttributeValueMemberS{Value: "INSTANCE"},
		},
		UpdateExpression: aws.String("SET #status = :status, #error = :error, FinishedAt = :finishedAt"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
			"#error":  "Error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(status)},
			":error":      &types.AttributeValueMemberS{Value: errMessage},
			":finishedAt": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := l.client.UpdateItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("workflow instance %q", instanceID))
		}
		return fmt.Errorf("failed to finish instance: %w", err)
	}
	return nil
}

// GetInstance returns the instance record
func (l *StepLog) GetInstance(ctx context.Context, instanceID string) (ports.InstanceRecord, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: instancePK(instanceID)},
			"SK": &types.AttributeValueMemberS{Value: "INSTANCE"},
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := l.client.GetItem(ctx, input)
	if err != nil {
		return ports.InstanceRecord{}, fmt.Errorf("failed to get instance record: %w", err)
	}
	if result.Item == nil {
		return ports.InstanceRecord{}, pkgerrors.NewNotFoundError(fmt.Sprintf("workflow instance %q", instanceID))
	}

	var record instanceRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return ports.InstanceRecord{}, fmt.Errorf("failed to unmarshal instance record: %w", err)
	}

	rec := ports.InstanceRecord{
		InstanceID:   record.InstanceID,
		WorkflowName: record.WorkflowName,
		Status:       ports.InstanceStatus(record.Status),
		Error:        record.Error,
	}
	if record.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, record.StartedAt); err == nil {
			rec.StartedAt = t
		}
	}
	if record.FinishedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, record.FinishedAt); err == nil {
			rec.FinishedAt = &t
		}
	}
	return rec, nil
}
