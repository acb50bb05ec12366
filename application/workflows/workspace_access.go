package workflows

import (
	"context"
	"fmt"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/aggregates"
	pkgerrors "contentforge/pkg/errors"

	"go.uber.org/zap"
)

// lockTTL bounds how long one load-mutate-persist window may hold the
// workspace mutex before it expires to a crashed holder.
const lockTTL = 30 * time.Second

// WorkspaceAccess implements the load-mutate-persist discipline both
// workflows follow: every step that touches the document loads the latest
// persisted snapshot, mutates it in memory, and persists the export before
// returning. Updates run under the workspace mutex so two racing steps
// cannot clobber each other's writes.
type WorkspaceAccess struct {
	snapshots ports.SnapshotStore
	mutex     ports.WorkspaceMutex
	logger    *zap.Logger
}

// NewWorkspaceAccess creates a workspace access helper
func NewWorkspaceAccess(snapshots ports.SnapshotStore, mutex ports.WorkspaceMutex, logger *zap.Logger) *WorkspaceAccess {
	return &WorkspaceAccess{
		snapshots: snapshots,
		mutex:     mutex,
		logger:    logger,
	}
}

// Load returns the latest persisted document for read-only use. Callers must
// not hold the result across steps; time passes between steps and the
// document may change underneath them.
func (a *WorkspaceAccess) Load(ctx context.Context, key aggregates.WorkspaceKey) (*aggregates.Workspace, error) {
	data, err := a.snapshots.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	ws, err := aggregates.Import(data)
	if err != nil {
		return nil, fmt.Errorf("failed to import workspace %s: %w", key.String(), err)
	}
	return ws, nil
}

// Initialize persists an empty document for the key when none exists yet
func (a *WorkspaceAccess) Initialize(ctx context.Context, key aggregates.WorkspaceKey) (*aggregates.Workspace, error) {
	ws, err := a.Load(ctx, key)
	if err == nil {
		return ws, nil
	}
	if !pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound) {
		return nil, err
	}

	ws = aggregates.NewWorkspace(key)
	data, err := ws.Export()
	if err != nil {
		return nil, err
	}
	if err := a.snapshots.Save(ctx, key, data); err != nil {
		return nil, err
	}
	a.logger.Info("Initialized workspace", zap.String("workspace", key.String()))
	return ws, nil
}

// Update reloads the document fresh under the workspace mutex, applies the
// mutation, and persists the export before releasing. The mutation sees the
// latest persisted state even when the caller loaded the document earlier.
func (a *WorkspaceAccess) Update(ctx context.Context, key aggregates.WorkspaceKey, owner string, mutate func(ws *aggregates.Workspace) error) error {
	release, err := a.mutex.Acquire(ctx, key.String(), owner, lockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock workspace %s: %w", key.String(), err)
	}
	defer func() {
		if releaseErr := release(ctx); releaseErr != nil {
			a.logger.Warn("Failed to release workspace lock",
				zap.String("workspace", key.String()),
				zap.Error(releaseErr),
			)
		}
	}()

	ws, err := a.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := mutate(ws); err != nil {
		return err
	}
	data, err := ws.Export()
	if err != nil {
		return err
	}
	if err := a.snapshots.Save(ctx, key, data); err != nil {
		return fmt.Errorf("failed to persist workspace %s: %w", key.String(), err)
	}
	return nil
}
