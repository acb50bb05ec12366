package services

import (
	"context"
	"testing"
	"time"

	"contentforge/application/ports"
	"contentforge/application/workflows"
	"contentforge/domain/core/aggregates"
	"contentforge/infrastructure/generation/local"
	"contentforge/infrastructure/persistence/memory"
	"contentforge/infrastructure/projects"
	"contentforge/infrastructure/ranking"
	pkgerrors "contentforge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*ContentService, *memory.StepLog) {
	t.Helper()
	logger := zap.NewNop()
	stepLog := memory.NewStepLog()
	mailbox := memory.NewMailbox()
	eventBus := memory.NewEventBus()
	workspace := workflows.NewWorkspaceAccess(memory.NewSnapshotStore(), memory.NewMutex(), logger)

	store, err := projects.NewStaticStore(ports.Project{
		LocationName: "United States",
		LanguageCode: "en",
	}, "")
	require.NoError(t, err)

	generator := local.NewGenerator()
	planner := workflows.NewPlanner(workspace, store, memory.NewRankingCache(), ranking.NewStaticProvider(),
		generator, mailbox, stepLog, eventBus, logger)
	writer := workflows.NewWriter(workspace, store, generator, mailbox, stepLog, eventBus, logger)

	return NewContentService(workspace, planner, writer, stepLog, logger), stepLog
}

func testKey(t *testing.T) aggregates.WorkspaceKey {
	t.Helper()
	key, err := aggregates.NewWorkspaceKey("acme", "blog", "")
	require.NoError(t, err)
	return key
}

func TestCreateNodeAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := testKey(t)

	created, err := svc.CreateNode(ctx, key, "blog/guides/espresso", "espresso machines")
	require.NoError(t, err)
	assert.Equal(t, "blog/guides/espresso", created.Path)
	assert.Equal(t, "espresso machines", created.PrimaryKeyword)
	assert.Equal(t, "unset", created.Status)
	assert.False(t, created.HasContent)

	got, err := svc.GetNode(ctx, key, "blog/guides/espresso")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	// Parent directories were materialized.
	parent, err := svc.GetNode(ctx, key, "blog/guides")
	require.NoError(t, err)
	assert.True(t, parent.Directory)
}

func TestCreateNodeRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := testKey(t)

	_, err := svc.CreateNode(ctx, key, "blog/post", "keyword")
	require.NoError(t, err)

	_, err = svc.CreateNode(ctx, key, "blog/post", "keyword")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
}

func TestGetNodeContentEmptyBeforeWriting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := testKey(t)

	_, err := svc.CreateNode(ctx, key, "blog/post", "keyword")
	require.NoError(t, err)

	body, err := svc.GetNodeContent(ctx, key, "blog/post")
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestGetNodeMissingWorkspace(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := testKey(t)

	_, err := svc.GetNode(ctx, key, "blog/post")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}

func TestStartPlannerRunsDetached(t *testing.T) {
	ctx := context.Background()
	svc, stepLog := newTestService(t)
	key := testKey(t)

	_, err := svc.CreateNode(ctx, key, "blog/post", "best coffee beans")
	require.NoError(t, err)

	instanceID := svc.StartPlanner(workflows.PlannerInput{
		OrganizationID: "acme",
		ProjectID:      "blog",
		Path:           "blog/post",
	})
	require.NotEmpty(t, instanceID)

	// The run is detached; poll the instance record for completion.
	deadline := time.After(5 * time.Second)
	for {
		rec, err := stepLog.GetInstance(ctx, instanceID)
		if err == nil && rec.Status == ports.InstanceCompleted {
			break
		}
		if err == nil && rec.Status == ports.InstanceFailed {
			t.Fatalf("planner run failed: %s", rec.Error)
		}
		select {
		case <-deadline:
			t.Fatal("planner run did not complete")
		case <-time.After(10 * time.Millisecond):
		}
	}

	node, err := svc.GetNode(ctx, key, "blog/post")
	require.NoError(t, err)
	assert.NotEmpty(t, node.Outline)
}

func TestGetInstanceNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.GetInstance(ctx, "nope")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}
