package ports

import (
	"context"
	"time"

	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/valueobjects"
	"contentforge/domain/events"
)

// SnapshotStore persists exported workspace snapshots in a durable blob
// store. There is exactly one blob per workspace key; Save supersedes the
// previous snapshot, nothing is ever deleted.
type SnapshotStore interface {
	// Load returns the latest snapshot bytes for the key, or a NotFoundError
	// when no snapshot has been persisted yet.
	Load(ctx context.Context, key aggregates.WorkspaceKey) ([]byte, error)

	// Save persists the snapshot bytes under the key's deterministic blob key
	Save(ctx context.Context, key aggregates.WorkspaceKey, data []byte) error
}

// WorkspaceMutex serializes the load-mutate-persist window on one workspace
// document across workflow instances. Acquire blocks until the lock is held
// or ctx is done; the returned release function must be called when the
// mutation is persisted.
type WorkspaceMutex interface {
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ComputeFunc produces the value for a cache miss
type ComputeFunc func(ctx context.Context) ([]byte, error)

// RankingCache is a cache-aside layer in front of the external ranking data
// provider. On a hit the compute function is never invoked; on a miss it
// runs, and its result is stored only on success so a transient provider
// failure does not poison the cache.
type RankingCache interface {
	FetchWithCache(ctx context.Context, query valueobjects.RankingQuery, compute ComputeFunc) ([]byte, error)
}

// RankingProvider is the expensive external keyword/SERP data source behind
// the cache. The payload is opaque to this system.
type RankingProvider interface {
	Fetch(ctx context.Context, query valueobjects.RankingQuery) ([]byte, error)
}

// StepRecord is the memoized result of one completed workflow step
type StepRecord struct {
	InstanceID  string    `json:"instance_id"`
	StepName    string    `json:"step_name"`
	Output      []byte    `json:"output"`
	CompletedAt time.Time `json:"completed_at"`
}

// InstanceStatus is the lifecycle status of one workflow instance
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstanceCompleted InstanceStatus = "completed"
	InstanceFailed    InstanceStatus = "failed"
)

// InstanceRecord describes one durable workflow execution
type InstanceRecord struct {
	InstanceID   string         `json:"instance_id"`
	WorkflowName string         `json:"workflow_name"`
	Status       InstanceStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// StepLog is the durable record of workflow progress. Step results are
// written before the workflow advances, so a replay of the same instance
// consults the log and skips steps that already completed instead of
// re-applying their side effects.
type StepLog interface {
	// GetStep returns the memoized output of a completed step, reporting
	// whether a record exists.
	GetStep(ctx context.Context, instanceID, stepName string) ([]byte, bool, error)

	// RecordStep persists a step's output. Recording the same step twice for
	// one instance keeps the first record (first write wins).
	RecordStep(ctx context.Context, instanceID, stepName string, output []byte) error

	// StartInstance registers a new running workflow instance
	StartInstance(ctx context.Context, rec InstanceRecord) error

	// FinishInstance records the instance's terminal status
	FinishInstance(ctx context.Context, instanceID string, status InstanceStatus, errMessage string) error

	// GetInstance returns the instance record, or a NotFoundError
	GetInstance(ctx context.Context, instanceID string) (InstanceRecord, error)
}

// EventPlannerComplete is the inbound event type the writer suspends on
const EventPlannerComplete = "planner.complete"

// WorkflowEvent is a point-to-point message delivered to one workflow
// instance by id.
type WorkflowEvent struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Mailbox delivers workflow events to specific instances. Wait is a true
// long-duration suspension: it blocks until an event of the given type
// arrives for the instance, the timeout elapses (TimeoutError), or ctx is
// done.
type Mailbox interface {
	Send(ctx context.Context, instanceID string, event WorkflowEvent) error
	Wait(ctx context.Context, instanceID, eventType string, timeout time.Duration) (WorkflowEvent, error)
}

// EventBus publishes domain lifecycle events for external observers
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// OutlineRequest seeds the planner's outline generation call
type OutlineRequest struct {
	Keyword     string
	RankingData []byte
	Project     Project
}

// ArticleRequest seeds the writer's article generation call
type ArticleRequest struct {
	Keyword string
	Outline string
	Project Project
}

// Generator produces outlines and article bodies via tool-augmented text
// generation. Implementations must return non-empty output or an error; the
// prompt content and tool implementations are external collaborators.
type Generator interface {
	GenerateOutline(ctx context.Context, req OutlineRequest) (string, error)
	GenerateArticle(ctx context.Context, req ArticleRequest) (string, error)
}

// ToolDefinition describes one tool the generator may offer the model.
// Parameters is a JSON schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Toolset is the set of tools available during a generation run. Invoke
// executes one tool call with its JSON-encoded arguments and returns the
// result fed back to the model.
type Toolset interface {
	Tools() []ToolDefinition
	Invoke(ctx context.Context, name, arguments string) (string, error)
}

// Project is the slice of project context the workflows need: where the
// audience is, what language to write in, and whether generated articles
// pass through editorial review before scheduling.
type Project struct {
	OrganizationID       string
	ProjectID            string
	LocationName         string
	LanguageCode         string
	RequireContentReview bool
}

// ProjectStore resolves project context. The relational project database is
// an external collaborator; only this read is consumed here.
type ProjectStore interface {
	GetProject(ctx context.Context, organizationID, projectID string) (Project, error)
}
