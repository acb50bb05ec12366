package workflows

import (
	"context"
	"fmt"
	"testing"
	"time"

	"contentforge/application/ports"
	"contentforge/infrastructure/persistence/memory"
	pkgerrors "contentforge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRun(t *testing.T, instanceID string, opts ...RunOption) (*Run, *memory.StepLog, *memory.Mailbox) {
	t.Helper()
	stepLog := memory.NewStepLog()
	mailbox := memory.NewMailbox()
	opts = append([]RunOption{WithRetryDelay(time.Millisecond)}, opts...)
	run := NewRun("test", instanceID, stepLog, mailbox, zap.NewNop(), opts...)
	return run, stepLog, mailbox
}

func TestStepMemoization(t *testing.T) {
	ctx := context.Background()
	run, stepLog, mailbox := newTestRun(t, "wf-1")

	calls := 0
	step := func(ctx context.Context) (string, error) {
		calls++
		return "result", nil
	}

	out, err := Step(ctx, run, "compute", step)
	require.NoError(t, err)
	assert.Equal(t, "result", out)
	assert.Equal(t, 1, calls)

	// A replay of the same instance consults the log instead of re-running.
	replay := NewRun("test", "wf-1", stepLog, mailbox, zap.NewNop())
	out, err = Step(ctx, replay, "compute", step)
	require.NoError(t, err)
	assert.Equal(t, "result", out)
	assert.Equal(t, 1, calls, "memoized step must not re-execute")

	// A different step name on the same instance does execute.
	_, err = Step(ctx, replay, "compute-2", step)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStepRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	run, _, _ := newTestRun(t, "wf-retry")

	calls := 0
	out, err := Step(ctx, run, "flaky", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("transient failure %d", calls)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
}

func TestStepFailsPermanentErrorsImmediately(t *testing.T) {
	ctx := context.Background()
	run, _, _ := newTestRun(t, "wf-perm")

	calls := 0
	_, err := Step(ctx, run, "invalid", func(ctx context.Context) (int, error) {
		calls++
		return 0, pkgerrors.NewValidationError("bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestStepExhaustsRetryBudget(t *testing.T) {
	ctx := context.Background()
	run, _, _ := newTestRun(t, "wf-exhaust", WithMaxRetries(2))

	calls := 0
	_, err := Step(ctx, run, "always-failing", func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestExecuteRecordsInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	run, stepLog, _ := newTestRun(t, "wf-ok")

	err := run.Execute(ctx, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	rec, err := stepLog.GetInstance(ctx, "wf-ok")
	require.NoError(t, err)
	assert.Equal(t, ports.InstanceCompleted, rec.Status)
	assert.NotNil(t, rec.FinishedAt)
}

func TestExecuteRecordsFailure(t *testing.T) {
	ctx := context.Background()
	run, stepLog, _ := newTestRun(t, "wf-bad")

	err := run.Execute(ctx, func(ctx context.Context) error {
		return fmt.Errorf("body exploded")
	})
	require.Error(t, err)

	rec, err := stepLog.GetInstance(ctx, "wf-bad")
	require.NoError(t, err)
	assert.Equal(t, ports.InstanceFailed, rec.Status)
	assert.Contains(t, rec.Error, "body exploded")
}

func TestWaitForEventDeliversAndMemoizes(t *testing.T) {
	ctx := context.Background()
	run, stepLog, mailbox := newTestRun(t, "wf-wait")

	// Event sent before the wait is buffered, not lost.
	sent := ports.WorkflowEvent{Type: ports.EventPlannerComplete, Path: "blog/post"}
	require.NoError(t, mailbox.Send(ctx, "wf-wait", sent))

	got, err := run.WaitForEvent(ctx, ports.EventPlannerComplete, time.Second)
	require.NoError(t, err)
	assert.Equal(t, sent, got)

	// Replay returns the memoized event without a second suspension.
	replay := NewRun("test", "wf-wait", stepLog, mailbox, zap.NewNop())
	got, err = replay.WaitForEvent(ctx, ports.EventPlannerComplete, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}

func TestWaitForEventTimesOut(t *testing.T) {
	ctx := context.Background()
	run, _, _ := newTestRun(t, "wf-timeout")

	_, err := run.WaitForEvent(ctx, ports.EventPlannerComplete, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout))
}

func TestWaitForEventIgnoresOtherInstances(t *testing.T) {
	ctx := context.Background()
	run, _, mailbox := newTestRun(t, "wf-a")

	// A signal addressed to a different instance must not wake this one.
	require.NoError(t, mailbox.Send(ctx, "wf-b", ports.WorkflowEvent{
		Type: ports.EventPlannerComplete, Path: "blog/post",
	}))

	_, err := run.WaitForEvent(ctx, ports.EventPlannerComplete, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout))
}
