package workflows

import (
	"context"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/entities"
	"contentforge/domain/core/valueobjects"
	"contentforge/domain/events"
	pkgerrors "contentforge/pkg/errors"
	"contentforge/pkg/utils"

	"go.uber.org/zap"
)

// PlannerInput triggers a planner run for one content node
type PlannerInput struct {
	OrganizationID     string `json:"organization_id" validate:"required"`
	ProjectID          string `json:"project_id" validate:"required"`
	CampaignID         string `json:"campaign_id"`
	Path               string `json:"path" validate:"required"`
	CallbackInstanceID string `json:"callback_instance_id"`
}

// PlannerOutput is the planner's result envelope
type PlannerOutput struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Outline string `json:"outline"`
}

// Planner researches the competitive landscape for a node's primary keyword
// and persists a writer-ready outline into the node. It is a
// precondition-satisfier for the Writer: it never moves the node into a
// writing-stage status itself.
type Planner struct {
	workspace *WorkspaceAccess
	projects  ports.ProjectStore
	cache     ports.RankingCache
	provider  ports.RankingProvider
	generator ports.Generator
	mailbox   ports.Mailbox
	stepLog   ports.StepLog
	eventBus  ports.EventBus
	logger    *zap.Logger
}

// NewPlanner creates a planner workflow definition
func NewPlanner(
	workspace *WorkspaceAccess,
	projects ports.ProjectStore,
	cache ports.RankingCache,
	provider ports.RankingProvider,
	generator ports.Generator,
	mailbox ports.Mailbox,
	stepLog ports.StepLog,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *Planner {
	return &Planner{
		workspace: workspace,
		projects:  projects,
		cache:     cache,
		provider:  provider,
		generator: generator,
		mailbox:   mailbox,
		stepLog:   stepLog,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// plannerContext is the memoized output of the load-inputs step
type plannerContext struct {
	Keyword string        `json:"keyword"`
	Project ports.Project `json:"project"`
}

// Execute runs the planner for the given durable instance id. Re-invoking
// with the same id replays completed steps from the log.
func (p *Planner) Execute(ctx context.Context, instanceID string, input PlannerInput) (PlannerOutput, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return PlannerOutput{}, pkgerrors.NewValidationError(err.Error())
	}
	key, err := aggregates.NewWorkspaceKey(input.OrganizationID, input.ProjectID, input.CampaignID)
	if err != nil {
		return PlannerOutput{}, err
	}
	path, err := valueobjects.NewNodePath(input.Path)
	if err != nil {
		return PlannerOutput{}, err
	}

	run := NewRun("planner", instanceID, p.stepLog, p.mailbox, p.logger)
	var output PlannerOutput

	err = run.Execute(ctx, func(ctx context.Context) error {
		// Resolve the node and project context. A node without a primary
		// keyword is a permanent failure: there is nothing to plan for.
		pc, err := Step(ctx, run, "load-inputs", func(ctx context.Context) (plannerContext, error) {
			ws, err := p.workspace.Load(ctx, key)
			if err != nil {
				return plannerContext{}, err
			}
			node, err := ws.Resolve(path)
			if err != nil {
				return plannerContext{}, err
			}
			if node.PrimaryKeyword() == "" {
				return plannerContext{}, pkgerrors.NewValidationError("node has no primary keyword")
			}
			project, err := p.projects.GetProject(ctx, input.OrganizationID, input.ProjectID)
			if err != nil {
				return plannerContext{}, err
			}
			return plannerContext{Keyword: node.PrimaryKeyword(), Project: project}, nil
		})
		if err != nil {
			return err
		}

		rankingData, err := Step(ctx, run, "fetch-ranking-data", func(ctx context.Context) ([]byte, error) {
			query, err := valueobjects.NewRankingQuery(pc.Keyword, pc.Project.LocationName, pc.Project.LanguageCode)
			if err != nil {
				return nil, err
			}
			return p.cache.FetchWithCache(ctx, query, func(ctx context.Context) ([]byte, error) {
				return p.provider.Fetch(ctx, query)
			})
		})
		if err != nil {
			return err
		}

		outline, err := Step(ctx, run, "generate-outline", func(ctx context.Context) (string, error) {
			out, err := p.generator.GenerateOutline(ctx, ports.OutlineRequest{
				Keyword:     pc.Keyword,
				RankingData: rankingData,
				Project:     pc.Project,
			})
			if err != nil {
				return "", err
			}
			if out == "" {
				// An empty outline must never be persisted; retry instead.
				return "", pkgerrors.NewExternalError("outline generation", nil).WithCode("EMPTY_OUTPUT")
			}
			return out, nil
		})
		if err != nil {
			return err
		}

		_, err = Step(ctx, run, "persist-outline", func(ctx context.Context) (struct{}, error) {
			err := p.workspace.Update(ctx, key, instanceID, func(ws *aggregates.Workspace) error {
				return ws.WriteMetadata(path, map[string]string{entities.FieldOutline: outline})
			})
			if err != nil {
				return struct{}{}, err
			}
			p.publishPlanned(ctx, path, pc.Keyword, instanceID)
			return struct{}{}, nil
		})
		if err != nil {
			return err
		}

		// A waiting writer supplied its instance id; wake it for this exact
		// path. Without a callback the writer will find the outline already
		// present when it starts and proceed without suspending.
		if input.CallbackInstanceID != "" {
			_, err = Step(ctx, run, "notify-callback", func(ctx context.Context) (struct{}, error) {
				event := ports.WorkflowEvent{Type: ports.EventPlannerComplete, Path: path.String()}
				return struct{}{}, p.mailbox.Send(ctx, input.CallbackInstanceID, event)
			})
			if err != nil {
				return err
			}
		}

		output = PlannerOutput{Type: "plan-keyword", Path: path.String(), Outline: outline}
		return nil
	})
	if err != nil {
		return PlannerOutput{}, err
	}
	return output, nil
}

// publishPlanned emits the lifecycle event; delivery is best-effort and never
// fails the run.
func (p *Planner) publishPlanned(ctx context.Context, path valueobjects.NodePath, keyword, instanceID string) {
	event := events.NewContentPlanned(path, keyword, instanceID, time.Now())
	if err := p.eventBus.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish content.planned event",
			zap.String("path", path.String()),
			zap.Error(err),
		)
	}
}
