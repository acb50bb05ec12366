// Package di wires the application together.
package di

import (
	"contentforge/application/ports"
	"contentforge/application/services"
	"contentforge/application/workflows"
	"contentforge/infrastructure/config"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	Snapshots      ports.SnapshotStore
	StepLog        ports.StepLog
	Mailbox        ports.Mailbox
	EventBus       ports.EventBus
	Workspace      *workflows.WorkspaceAccess
	Planner        *workflows.Planner
	Writer         *workflows.Writer
	ContentService *services.ContentService
}
