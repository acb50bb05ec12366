package workflows

import (
	"context"
	"fmt"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/valueobjects"
	"contentforge/domain/events"
	pkgerrors "contentforge/pkg/errors"
	"contentforge/pkg/utils"

	"go.uber.org/zap"
)

// DefaultOutlineWaitTimeout bounds how long a writer suspends waiting for
// the planner before failing instead of hanging.
const DefaultOutlineWaitTimeout = time.Hour

// WriterInput triggers a writer run for one content node
type WriterInput struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	ProjectID      string `json:"project_id" validate:"required"`
	CampaignID     string `json:"campaign_id"`
	Path           string `json:"path" validate:"required"`
}

// WriterOutput is the writer's result envelope
type WriterOutput struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Writer expands a node's outline into a full article. It never generates
// before an outline exists for the path: when it starts first it suspends on
// the planner's completion event and re-checks after resuming. Any failure
// during generation is recorded on the node as generation-failed before the
// error propagates, so a failed node is never stuck looking in-progress.
type Writer struct {
	workspace   *WorkspaceAccess
	projects    ports.ProjectStore
	generator   ports.Generator
	mailbox     ports.Mailbox
	stepLog     ports.StepLog
	eventBus    ports.EventBus
	logger      *zap.Logger
	waitTimeout time.Duration
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithOutlineWaitTimeout overrides the suspend timeout
func WithOutlineWaitTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.waitTimeout = d
		}
	}
}

// NewWriter creates a writer workflow definition
func NewWriter(
	workspace *WorkspaceAccess,
	projects ports.ProjectStore,
	generator ports.Generator,
	mailbox ports.Mailbox,
	stepLog ports.StepLog,
	eventBus ports.EventBus,
	logger *zap.Logger,
	opts ...WriterOption,
) *Writer {
	w := &Writer{
		workspace:   workspace,
		projects:    projects,
		generator:   generator,
		mailbox:     mailbox,
		stepLog:     stepLog,
		eventBus:    eventBus,
		logger:      logger,
		waitTimeout: DefaultOutlineWaitTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// writerContext is the memoized output of the outline check steps
type writerContext struct {
	Outline string        `json:"outline"`
	Keyword string        `json:"keyword"`
	Project ports.Project `json:"project"`
}

// Execute runs the writer for the given durable instance id
func (w *Writer) Execute(ctx context.Context, instanceID string, input WriterInput) (WriterOutput, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return WriterOutput{}, pkgerrors.NewValidationError(err.Error())
	}
	key, err := aggregates.NewWorkspaceKey(input.OrganizationID, input.ProjectID, input.CampaignID)
	if err != nil {
		return WriterOutput{}, err
	}
	path, err := valueobjects.NewNodePath(input.Path)
	if err != nil {
		return WriterOutput{}, err
	}

	run := NewRun("writer", instanceID, w.stepLog, w.mailbox, w.logger)
	var output WriterOutput

	err = run.Execute(ctx, func(ctx context.Context) error {
		wc, err := Step(ctx, run, "check-outline", func(ctx context.Context) (writerContext, error) {
			return w.loadContext(ctx, key, path, input)
		})
		if err != nil {
			return err
		}

		// Level-triggered ordering: when the outline already exists the
		// writer proceeds without waiting at all.
		if wc.Outline == "" {
			event, err := run.WaitForEvent(ctx, ports.EventPlannerComplete, w.waitTimeout)
			if err != nil {
				return err
			}
			if event.Path != path.String() {
				// Cross-talk between instances is a protocol violation; fail
				// fast rather than write another node's content here.
				return pkgerrors.NewConflictError(fmt.Sprintf(
					"received %s for path %q while waiting on %q", event.Type, event.Path, path.String()))
			}
			wc, err = Step(ctx, run, "recheck-outline", func(ctx context.Context) (writerContext, error) {
				rechecked, err := w.loadContext(ctx, key, path, input)
				if err != nil {
					return writerContext{}, err
				}
				if rechecked.Outline == "" {
					return writerContext{}, pkgerrors.NewConflictError("planner signalled completion but node has no outline")
				}
				return rechecked, nil
			})
			if err != nil {
				return err
			}
		}

		body, err := w.generate(ctx, run, key, path, instanceID, wc)
		if err != nil {
			// Make the failure visible on the node before re-raising so the
			// runtime's own retry and alerting still apply.
			w.recordFailure(ctx, key, path, instanceID, err)
			return err
		}

		output = WriterOutput{Type: "write-article", Path: path.String(), Content: body}
		return nil
	})
	if err != nil {
		return WriterOutput{}, err
	}
	return output, nil
}

// loadContext loads the current document and reads the node's outline,
// keyword and project context. It reloads fresh each call: time may have
// passed (including a suspension) since any previous load.
func (w *Writer) loadContext(ctx context.Context, key aggregates.WorkspaceKey, path valueobjects.NodePath, input WriterInput) (writerContext, error) {
	ws, err := w.workspace.Load(ctx, key)
	if err != nil {
		return writerContext{}, err
	}
	node, err := ws.Resolve(path)
	if err != nil {
		return writerContext{}, err
	}
	if node.IsDirectory() {
		return writerContext{}, pkgerrors.NewValidationError(fmt.Sprintf("node %q is a directory", path.String()))
	}
	project, err := w.projects.GetProject(ctx, input.OrganizationID, input.ProjectID)
	if err != nil {
		return writerContext{}, err
	}
	return writerContext{
		Outline: node.Outline(),
		Keyword: node.PrimaryKeyword(),
		Project: project,
	}, nil
}

// generate covers the failure-annotated span of the run: mark the node
// in-progress, generate, finalize.
func (w *Writer) generate(ctx context.Context, run *Run, key aggregates.WorkspaceKey, path valueobjects.NodePath, instanceID string, wc writerContext) (string, error) {
	_, err := Step(ctx, run, "mark-writing", func(ctx context.Context) (struct{}, error) {
		err := w.workspace.Update(ctx, key, instanceID, func(ws *aggregates.Workspace) error {
			node, err := ws.Resolve(path)
			if err != nil {
				return err
			}
			return node.BeginWriting(instanceID)
		})
		return struct{}{}, err
	})
	if err != nil {
		return "", err
	}

	body, err := Step(ctx, run, "generate-article", func(ctx context.Context) (string, error) {
		out, err := w.generator.GenerateArticle(ctx, ports.ArticleRequest{
			Keyword: wc.Keyword,
			Outline: wc.Outline,
			Project: wc.Project,
		})
		if err != nil {
			return "", err
		}
		if out == "" {
			return "", pkgerrors.NewExternalError("article generation", nil).WithCode("EMPTY_OUTPUT")
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	_, err = Step(ctx, run, "finalize", func(ctx context.Context) (struct{}, error) {
		status := valueobjects.StatusScheduled
		if wc.Project.RequireContentReview {
			status = valueobjects.StatusPendingReview
		}
		err := w.workspace.Update(ctx, key, instanceID, func(ws *aggregates.Workspace) error {
			return ws.WriteContent(path, body, status)
		})
		if err != nil {
			return struct{}{}, err
		}
		w.publishWritten(ctx, path, status, instanceID)
		return struct{}{}, nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// recordFailure reloads the document fresh and writes the generation-failed
// status with the captured error and this instance's id. Best-effort: when
// the reload or persist itself fails the problem is logged but the original
// error still propagates.
func (w *Writer) recordFailure(ctx context.Context, key aggregates.WorkspaceKey, path valueobjects.NodePath, instanceID string, cause error) {
	err := w.workspace.Update(ctx, key, instanceID, func(ws *aggregates.Workspace) error {
		node, err := ws.Resolve(path)
		if err != nil {
			return err
		}
		return node.MarkGenerationFailed(cause.Error(), instanceID)
	})
	if err != nil {
		w.logger.Error("Failed to record generation failure on node",
			zap.String("path", path.String()),
			zap.String("instance_id", instanceID),
			zap.NamedError("record_error", err),
			zap.NamedError("original_error", cause),
		)
		return
	}

	event := events.NewContentGenerationFailed(path, cause.Error(), instanceID, time.Now())
	if err := w.eventBus.Publish(ctx, event); err != nil {
		w.logger.Warn("Failed to publish content.generation_failed event",
			zap.String("path", path.String()),
			zap.Error(err),
		)
	}
}

// publishWritten emits the lifecycle event; delivery is best-effort
func (w *Writer) publishWritten(ctx context.Context, path valueobjects.NodePath, status valueobjects.ContentStatus, instanceID string) {
	event := events.NewContentWritten(path, status, instanceID, time.Now())
	if err := w.eventBus.Publish(ctx, event); err != nil {
		w.logger.Warn("Failed to publish content.written event",
			zap.String("path", path.String()),
			zap.Error(err),
		)
	}
}
