package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contentforge/application/ports"
	pkgerrors "contentforge/pkg/errors"

	"go.uber.org/zap"
)

// Run is one durable workflow execution. Steps execute sequentially; each
// named step's output is recorded in the step log before the run advances,
// so replaying the same instance after a crash skips steps that already
// completed instead of re-applying their side effects.
type Run struct {
	instanceID string
	workflow   string
	stepLog    ports.StepLog
	mailbox    ports.Mailbox
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// RunOption configures a Run
type RunOption func(*Run)

// WithMaxRetries sets the per-step retry budget for transient failures
func WithMaxRetries(n int) RunOption {
	return func(r *Run) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithRetryDelay sets the delay between step retry attempts
func WithRetryDelay(d time.Duration) RunOption {
	return func(r *Run) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

// NewRun creates a durable run for the given workflow instance
func NewRun(workflow, instanceID string, stepLog ports.StepLog, mailbox ports.Mailbox, logger *zap.Logger, opts ...RunOption) *Run {
	r := &Run{
		instanceID: instanceID,
		workflow:   workflow,
		stepLog:    stepLog,
		mailbox:    mailbox,
		logger:     logger,
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InstanceID returns the run's instance id
func (r *Run) InstanceID() string {
	return r.instanceID
}

// Execute registers the instance, runs the workflow body, and records the
// terminal instance status. The body's error propagates unchanged.
func (r *Run) Execute(ctx context.Context, body func(ctx context.Context) error) error {
	rec := ports.InstanceRecord{
		InstanceID:   r.instanceID,
		WorkflowName: r.workflow,
		Status:       ports.InstanceRunning,
		StartedAt:    time.Now(),
	}
	if err := r.stepLog.StartInstance(ctx, rec); err != nil {
		return fmt.Errorf("failed to register workflow instance: %w", err)
	}

	r.logger.Info("Starting workflow run",
		zap.String("workflow", r.workflow),
		zap.String("instance_id", r.instanceID),
	)

	if err := body(ctx); err != nil {
		if finishErr := r.stepLog.FinishInstance(ctx, r.instanceID, ports.InstanceFailed, err.Error()); finishErr != nil {
			r.logger.Error("Failed to record workflow failure",
				zap.String("instance_id", r.instanceID),
				zap.Error(finishErr),
			)
		}
		r.logger.Error("Workflow run failed",
			zap.String("workflow", r.workflow),
			zap.String("instance_id", r.instanceID),
			zap.Error(err),
		)
		return err
	}

	if err := r.stepLog.FinishInstance(ctx, r.instanceID, ports.InstanceCompleted, ""); err != nil {
		return fmt.Errorf("failed to record workflow completion: %w", err)
	}
	r.logger.Info("Workflow run completed",
		zap.String("workflow", r.workflow),
		zap.String("instance_id", r.instanceID),
	)
	return nil
}

// Step executes a named step with replay memoization and retry. When the
// step log already holds a record for (instance, name), the memoized output
// is returned without invoking fn. Transient errors are retried up to the
// run's budget; permanent errors fail immediately without consuming it.
func Step[T any](ctx context.Context, r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	recorded, found, err := r.stepLog.GetStep(ctx, r.instanceID, name)
	if err != nil {
		return zero, fmt.Errorf("failed to consult step log for %q: %w", name, err)
	}
	if found {
		var out T
		if err := json.Unmarshal(recorded, &out); err != nil {
			return zero, fmt.Errorf("failed to decode memoized output of step %q: %w", name, err)
		}
		r.logger.Debug("Replaying memoized step",
			zap.String("instance_id", r.instanceID),
			zap.String("step", name),
		)
		return out, nil
	}

	out, err := executeWithRetry(ctx, r, name, fn)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("failed to encode output of step %q: %w", name, err)
	}
	if err := r.stepLog.RecordStep(ctx, r.instanceID, name, encoded); err != nil {
		return zero, fmt.Errorf("failed to record step %q: %w", name, err)
	}
	return out, nil
}

// executeWithRetry runs a step attempt loop
func executeWithRetry[T any](ctx context.Context, r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Debug("Retrying workflow step",
				zap.String("instance_id", r.instanceID),
				zap.String("step", name),
				zap.Int("attempt", attempt+1),
			)
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !pkgerrors.IsRetryable(err) {
			r.logger.Error("Workflow step failed permanently",
				zap.String("instance_id", r.instanceID),
				zap.String("step", name),
				zap.Error(err),
			)
			return zero, fmt.Errorf("step %q failed: %w", name, err)
		}
		r.logger.Warn("Workflow step attempt failed",
			zap.String("instance_id", r.instanceID),
			zap.String("step", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return zero, fmt.Errorf("step %q failed after %d attempts: %w", name, r.maxRetries, lastErr)
}

// WaitForEvent suspends the run until an event of the given type arrives in
// this instance's mailbox, or fails on timeout. The received event is
// memoized like any step output so a replay does not wait again. The wait
// itself is never retried: a second multi-hour suspension would only delay
// the failure the timeout exists to surface.
func (r *Run) WaitForEvent(ctx context.Context, eventType string, timeout time.Duration) (ports.WorkflowEvent, error) {
	stepName := "wait:" + eventType

	recorded, found, err := r.stepLog.GetStep(ctx, r.instanceID, stepName)
	if err != nil {
		return ports.WorkflowEvent{}, fmt.Errorf("failed to consult step log for %q: %w", stepName, err)
	}
	if found {
		var event ports.WorkflowEvent
		if err := json.Unmarshal(recorded, &event); err != nil {
			return ports.WorkflowEvent{}, fmt.Errorf("failed to decode memoized event: %w", err)
		}
		return event, nil
	}

	r.logger.Info("Workflow suspending on event",
		zap.String("instance_id", r.instanceID),
		zap.String("event_type", eventType),
		zap.Duration("timeout", timeout),
	)
	event, err := r.mailbox.Wait(ctx, r.instanceID, eventType, timeout)
	if err != nil {
		return ports.WorkflowEvent{}, fmt.Errorf("wait for %q failed: %w", eventType, err)
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return ports.WorkflowEvent{}, fmt.Errorf("failed to encode received event: %w", err)
	}
	if err := r.stepLog.RecordStep(ctx, r.instanceID, stepName, encoded); err != nil {
		return ports.WorkflowEvent{}, fmt.Errorf("failed to record received event: %w", err)
	}

	r.logger.Info("Workflow resumed on event",
		zap.String("instance_id", r.instanceID),
		zap.String("event_type", event.Type),
		zap.String("event_path", event.Path),
	)
	return event, nil
}
