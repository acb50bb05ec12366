package services

import (
	"context"
	"time"

	"contentforge/application/ports"
	"contentforge/application/workflows"
	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NodeView is the read model returned for a content node
type NodeView struct {
	Path           string `json:"path"`
	Directory      bool   `json:"directory,omitempty"`
	PrimaryKeyword string `json:"primary_keyword,omitempty"`
	Outline        string `json:"outline,omitempty"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	WorkflowID     string `json:"workflow_id,omitempty"`
	HasContent     bool   `json:"has_content"`
}

// ContentService coordinates workspace edits and workflow launches for the
// REST surface. Workflow runs are detached: the caller gets an instance id
// back immediately and inspects progress through the instance record and the
// node's status.
type ContentService struct {
	workspace *workflows.WorkspaceAccess
	planner   *workflows.Planner
	writer    *workflows.Writer
	stepLog   ports.StepLog
	logger    *zap.Logger

	// runTimeout bounds a detached workflow run's lifetime
	runTimeout time.Duration
}

// NewContentService creates a content service
func NewContentService(
	workspace *workflows.WorkspaceAccess,
	planner *workflows.Planner,
	writer *workflows.Writer,
	stepLog ports.StepLog,
	logger *zap.Logger,
) *ContentService {
	return &ContentService{
		workspace:  workspace,
		planner:    planner,
		writer:     writer,
		stepLog:    stepLog,
		logger:     logger,
		runTimeout: 2 * time.Hour,
	}
}

// CreateNode creates a content file node (and its workspace, when this is
// the first node under the key).
func (s *ContentService) CreateNode(ctx context.Context, key aggregates.WorkspaceKey, rawPath, primaryKeyword string) (NodeView, error) {
	path, err := valueobjects.NewNodePath(rawPath)
	if err != nil {
		return NodeView{}, err
	}
	if _, err := s.workspace.Initialize(ctx, key); err != nil {
		return NodeView{}, err
	}

	var view NodeView
	err = s.workspace.Update(ctx, key, "content-service", func(ws *aggregates.Workspace) error {
		node, err := ws.CreateFile(path, primaryKeyword)
		if err != nil {
			return err
		}
		view = nodeView(node.Path().String(), node.IsDirectory(), node.PrimaryKeyword(), node.Outline(),
			string(node.Status()), node.ErrorMessage(), node.WorkflowID(), node.Body() != "")
		return nil
	})
	if err != nil {
		return NodeView{}, err
	}
	return view, nil
}

// GetNode returns the node's current state from the latest snapshot
func (s *ContentService) GetNode(ctx context.Context, key aggregates.WorkspaceKey, rawPath string) (NodeView, error) {
	path, err := valueobjects.NewNodePath(rawPath)
	if err != nil {
		return NodeView{}, err
	}
	ws, err := s.workspace.Load(ctx, key)
	if err != nil {
		return NodeView{}, err
	}
	node, err := ws.Resolve(path)
	if err != nil {
		return NodeView{}, err
	}
	return nodeView(node.Path().String(), node.IsDirectory(), node.PrimaryKeyword(), node.Outline(),
		string(node.Status()), node.ErrorMessage(), node.WorkflowID(), node.Body() != ""), nil
}

// ListChildren returns the direct children of a directory node
func (s *ContentService) ListChildren(ctx context.Context, key aggregates.WorkspaceKey, rawPath string) ([]NodeView, error) {
	path, err := valueobjects.NewNodePath(rawPath)
	if err != nil {
		return nil, err
	}
	ws, err := s.workspace.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	node, err := ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !node.IsDirectory() {
		return nil, pkgerrors.NewValidationError(path.String() + " is not a directory")
	}

	children := ws.Children(path)
	views := make([]NodeView, 0, len(children))
	for _, child := range children {
		views = append(views, nodeView(child.Path().String(), child.IsDirectory(), child.PrimaryKeyword(),
			child.Outline(), string(child.Status()), child.ErrorMessage(), child.WorkflowID(), child.Body() != ""))
	}
	return views, nil
}

// GetNodeContent returns the node's body
func (s *ContentService) GetNodeContent(ctx context.Context, key aggregates.WorkspaceKey, rawPath string) (string, error) {
	path, err := valueobjects.NewNodePath(rawPath)
	if err != nil {
		return "", err
	}
	ws, err := s.workspace.Load(ctx, key)
	if err != nil {
		return "", err
	}
	node, err := ws.Resolve(path)
	if err != nil {
		return "", err
	}
	return node.Body(), nil
}

// StartPlanner launches a detached planner run and returns its instance id
func (s *ContentService) StartPlanner(input workflows.PlannerInput) string {
	instanceID := uuid.New().String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()
		if _, err := s.planner.Execute(ctx, instanceID, input); err != nil {
			s.logger.Error("Planner run failed",
				zap.String("instance_id", instanceID),
				zap.String("path", input.Path),
				zap.Error(err),
			)
		}
	}()
	return instanceID
}

// StartWriter launches a detached writer run and returns its instance id
func (s *ContentService) StartWriter(input workflows.WriterInput) string {
	instanceID := uuid.New().String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()
		if _, err := s.writer.Execute(ctx, instanceID, input); err != nil {
			s.logger.Error("Writer run failed",
				zap.String("instance_id", instanceID),
				zap.String("path", input.Path),
				zap.Error(err),
			)
		}
	}()
	return instanceID
}

// GetInstance returns the durable record of a workflow run
func (s *ContentService) GetInstance(ctx context.Context, instanceID string) (ports.InstanceRecord, error) {
	return s.stepLog.GetInstance(ctx, instanceID)
}

func nodeView(path string, directory bool, keyword, outline, status, errMsg, workflowID string, hasContent bool) NodeView {
	if status == "" {
		status = valueobjects.StatusUnset.String()
	}
	return NodeView{
		Path:           path,
		Directory:      directory,
		PrimaryKeyword: keyword,
		Outline:        outline,
		Status:         status,
		Error:          errMsg,
		WorkflowID:     workflowID,
		HasContent:     hasContent,
	}
}
