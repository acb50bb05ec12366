package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contentforge/application/ports"
	pkgerrors "contentforge/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// mailboxTTL bounds how long an undelivered event sits in a mailbox list. It
// comfortably exceeds the longest wait a workflow performs, so a signal sent
// moments before the waiter arrives is never lost to expiry.
const mailboxTTL = 2 * time.Hour

// Mailbox delivers point-to-point workflow events over Redis lists. Send
// pushes onto a per-instance, per-event-type list; Wait blocks on BLPOP so a
// suspended workflow consumes no resources beyond the blocked connection.
type Mailbox struct {
	client *redis.Client
	logger *zap.Logger
}

// NewMailbox creates a Redis-backed workflow mailbox
func NewMailbox(client *redis.Client, logger *zap.Logger) *Mailbox {
	return &Mailbox{
		client: client,
		logger: logger,
	}
}

func mailboxKey(instanceID, eventType string) string {
	return "mailbox:" + instanceID + ":" + eventType
}

// Send delivers an event to the instance's mailbox. Delivery does not require
// a waiter: the event is buffered until consumed or expired.
func (m *Mailbox) Send(ctx context.Context, instanceID string, event ports.WorkflowEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal workflow event: %w", err)
	}

	key := mailboxKey(instanceID, event.Type)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, mailboxTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("send workflow event: %w", err)
	}

	m.logger.Debug("Workflow event sent",
		zap.String("instance_id", instanceID),
		zap.String("event_type", event.Type),
	)
	return nil
}

// Wait blocks until an event of eventType arrives for the instance, the
// timeout elapses, or ctx is done. Timeout produces a TimeoutError so callers
// can distinguish expiry from delivery failure.
func (m *Mailbox) Wait(ctx context.Context, instanceID, eventType string, timeout time.Duration) (ports.WorkflowEvent, error) {
	key := mailboxKey(instanceID, eventType)

	result, err := m.client.BLPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return ports.WorkflowEvent{}, pkgerrors.NewTimeoutError(
			fmt.Sprintf("no %q event for instance %q within %s", eventType, instanceID, timeout),
		)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ports.WorkflowEvent{}, ctx.Err()
		}
		return ports.WorkflowEvent{}, fmt.Errorf("wait for workflow event: %w", err)
	}

	// BLPOP returns [key, value]
	if len(result) != 2 {
		return ports.WorkflowEvent{}, fmt.Errorf("unexpected BLPOP reply of length %d", len(result))
	}

	var event ports.WorkflowEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return ports.WorkflowEvent{}, fmt.Errorf("unmarshal workflow event: %w", err)
	}
	return event, nil
}
