package workflows

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/valueobjects"
	"contentforge/infrastructure/persistence/memory"
	pkgerrors "contentforge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProjects serves one project configuration for every lookup.
type fakeProjects struct {
	requireReview bool
}

func (f *fakeProjects) GetProject(ctx context.Context, organizationID, projectID string) (ports.Project, error) {
	return ports.Project{
		OrganizationID:       organizationID,
		ProjectID:            projectID,
		LocationName:         "United States",
		LanguageCode:         "en",
		RequireContentReview: f.requireReview,
	}, nil
}

// fakeProvider counts fetches so tests can observe cache effectiveness.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Fetch(ctx context.Context, query valueobjects.RankingQuery) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []byte(fmt.Sprintf(`{"keyword":%q,"results":[]}`, query.Keyword())), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeGenerator returns canned output, or a configured error per method.
type fakeGenerator struct {
	outlineErr error
	articleErr error
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, req ports.OutlineRequest) (string, error) {
	if f.outlineErr != nil {
		return "", f.outlineErr
	}
	return "## Outline for " + req.Keyword, nil
}

func (f *fakeGenerator) GenerateArticle(ctx context.Context, req ports.ArticleRequest) (string, error) {
	if f.articleErr != nil {
		return "", f.articleErr
	}
	return "Article about " + req.Keyword + "\n\n" + req.Outline, nil
}

// workflowEnv wires both workflows over shared in-memory backends.
type workflowEnv struct {
	key       aggregates.WorkspaceKey
	workspace *WorkspaceAccess
	snapshots *memory.SnapshotStore
	stepLog   *memory.StepLog
	mailbox   *memory.Mailbox
	eventBus  *memory.EventBus
	provider  *fakeProvider
	generator *fakeGenerator
	projects  *fakeProjects
	planner   *Planner
	writer    *Writer
}

func newWorkflowEnv(t *testing.T, writerOpts ...WriterOption) *workflowEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &workflowEnv{
		snapshots: memory.NewSnapshotStore(),
		stepLog:   memory.NewStepLog(),
		mailbox:   memory.NewMailbox(),
		eventBus:  memory.NewEventBus(),
		provider:  &fakeProvider{},
		generator: &fakeGenerator{},
		projects:  &fakeProjects{},
	}
	env.workspace = NewWorkspaceAccess(env.snapshots, memory.NewMutex(), logger)
	env.planner = NewPlanner(env.workspace, env.projects, memory.NewRankingCache(), env.provider,
		env.generator, env.mailbox, env.stepLog, env.eventBus, logger)
	env.writer = NewWriter(env.workspace, env.projects, env.generator,
		env.mailbox, env.stepLog, env.eventBus, logger, writerOpts...)

	key, err := aggregates.NewWorkspaceKey("acme", "blog", "")
	require.NoError(t, err)
	env.key = key

	ctx := context.Background()
	_, err = env.workspace.Initialize(ctx, key)
	require.NoError(t, err)
	require.NoError(t, env.workspace.Update(ctx, key, "test-setup", func(ws *aggregates.Workspace) error {
		path, err := valueobjects.NewNodePath("blog/best-coffee")
		if err != nil {
			return err
		}
		_, err = ws.CreateFile(path, "best coffee beans")
		return err
	}))
	return env
}

func (e *workflowEnv) node(t *testing.T, rawPath string) nodeView {
	t.Helper()
	ws, err := e.workspace.Load(context.Background(), e.key)
	require.NoError(t, err)
	path, err := valueobjects.NewNodePath(rawPath)
	require.NoError(t, err)
	node, err := ws.Resolve(path)
	require.NoError(t, err)
	return nodeView{
		Outline:    node.Outline(),
		Body:       node.Body(),
		Status:     node.Status(),
		Error:      node.ErrorMessage(),
		WorkflowID: node.WorkflowID(),
	}
}

type nodeView struct {
	Outline    string
	Body       string
	Status     valueobjects.ContentStatus
	Error      string
	WorkflowID string
}

func plannerInput() PlannerInput {
	return PlannerInput{
		OrganizationID: "acme",
		ProjectID:      "blog",
		Path:           "blog/best-coffee",
	}
}

func TestPlannerPersistsOutline(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	out, err := env.planner.Execute(ctx, "planner-1", plannerInput())
	require.NoError(t, err)
	assert.Equal(t, "plan-keyword", out.Type)
	assert.Equal(t, "blog/best-coffee", out.Path)
	assert.Equal(t, "## Outline for best coffee beans", out.Outline)

	node := env.node(t, "blog/best-coffee")
	assert.Equal(t, out.Outline, node.Outline)
	assert.Equal(t, valueobjects.StatusUnset, node.Status, "planner must not advance the content status")

	rec, err := env.stepLog.GetInstance(ctx, "planner-1")
	require.NoError(t, err)
	assert.Equal(t, ports.InstanceCompleted, rec.Status)

	published := env.eventBus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "content.planned", published[0].GetEventType())
}

func TestPlannerReusesCachedRankingData(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	_, err := env.planner.Execute(ctx, "planner-1", plannerInput())
	require.NoError(t, err)
	assert.Equal(t, 1, env.provider.callCount())

	// A second instance for the same keyword and locale hits the cache.
	_, err = env.planner.Execute(ctx, "planner-2", plannerInput())
	require.NoError(t, err)
	assert.Equal(t, 1, env.provider.callCount())
}

func TestPlannerNotifiesCallbackInstance(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	input := plannerInput()
	input.CallbackInstanceID = "writer-7"
	_, err := env.planner.Execute(ctx, "planner-1", input)
	require.NoError(t, err)

	event, err := env.mailbox.Wait(ctx, "writer-7", ports.EventPlannerComplete, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "blog/best-coffee", event.Path)
}

func TestPlannerFailsForMissingNode(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	input := plannerInput()
	input.Path = "blog/does-not-exist"
	_, err := env.planner.Execute(ctx, "planner-1", input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))

	rec, err := env.stepLog.GetInstance(ctx, "planner-1")
	require.NoError(t, err)
	assert.Equal(t, ports.InstanceFailed, rec.Status)
}

func TestPlannerValidatesInput(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	_, err := env.planner.Execute(ctx, "planner-1", PlannerInput{OrganizationID: "acme", ProjectID: "blog"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))

	// Rejected before the run starts: no instance record exists.
	_, err = env.stepLog.GetInstance(ctx, "planner-1")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}

func TestPlannerReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newWorkflowEnv(t)

	first, err := env.planner.Execute(ctx, "planner-1", plannerInput())
	require.NoError(t, err)

	// Re-invoking the same instance replays memoized steps: same output, no
	// second provider fetch and no second lifecycle event.
	again, err := env.planner.Execute(ctx, "planner-1", plannerInput())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, env.provider.callCount())
}
