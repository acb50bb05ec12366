// Package memory provides in-process implementations of the persistence and
// messaging ports. They back the "memory" storage driver for local
// development and give tests a deterministic substrate.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/aggregates"
	"contentforge/domain/core/valueobjects"
	"contentforge/domain/events"
	pkgerrors "contentforge/pkg/errors"
)

// SnapshotStore keeps workspace snapshots in a map
type SnapshotStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewSnapshotStore creates an empty in-memory snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{blobs: make(map[string][]byte)}
}

// Load returns the latest snapshot for the key
func (s *SnapshotStore) Load(ctx context.Context, key aggregates.WorkspaceKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key.ObjectKey()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("workspace snapshot %q", key.ObjectKey()))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save persists the snapshot, superseding any previous one
func (s *SnapshotStore) Save(ctx context.Context, key aggregates.WorkspaceKey, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key.ObjectKey()] = stored
	return nil
}

// Mutex serializes workspace updates within one process
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMutex creates an in-process workspace mutex
func NewMutex() *Mutex {
	return &Mutex{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the named resource until the returned release is called.
// The ttl is ignored: an in-process holder cannot outlive the process.
func (m *Mutex) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	m.mu.Lock()
	lock, ok := m.locks[resource]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[resource] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	var once sync.Once
	release := func(context.Context) error {
		once.Do(lock.Unlock)
		return nil
	}
	return release, nil
}

// StepLog keeps workflow step records and instance records in maps
type StepLog struct {
	mu        sync.RWMutex
	steps     map[string][]byte
	instances map[string]ports.InstanceRecord
}

// NewStepLog creates an empty in-memory step log
func NewStepLog() *StepLog {
	return &StepLog{
		steps:     make(map[string][]byte),
		instances: make(map[string]ports.InstanceRecord),
	}
}

func stepKey(instanceID, stepName string) string {
	return instanceID + "#" + stepName
}

// GetStep returns a memoized step output, if recorded
func (l *StepLog) GetStep(ctx context.Context, instanceID, stepName string) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.steps[stepKey(instanceID, stepName)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// RecordStep persists a step output; the first record wins
func (l *StepLog) RecordStep(ctx context.Context, instanceID, stepName string, output []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := stepKey(instanceID, stepName)
	if _, exists := l.steps[key]; exists {
		return nil
	}
	stored := make([]byte, len(output))
	copy(stored, output)
	l.steps[key] = stored
	return nil
}

// StartInstance registers a running workflow instance
func (l *StepLog) StartInstance(ctx context.Context, rec ports.InstanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, exists := l.instances[rec.InstanceID]; exists {
		// A replay of a previously interrupted run keeps the original record.
		if existing.Status == ports.InstanceRunning {
			return nil
		}
	}
	l.instances[rec.InstanceID] = rec
	return nil
}

// FinishInstance records the instance's terminal status
func (l *StepLog) FinishInstance(ctx context.Context, instanceID string, status ports.InstanceStatus, errMessage string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.instances[instanceID]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("workflow instance %q", instanceID))
	}
	now := time.Now()
	rec.Status = status
	rec.Error = errMessage
	rec.FinishedAt = &now
	l.instances[instanceID] = rec
	return nil
}

// GetInstance returns the instance record
func (l *StepLog) GetInstance(ctx context.Context, instanceID string) (ports.InstanceRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.instances[instanceID]
	if !ok {
		return ports.InstanceRecord{}, pkgerrors.NewNotFoundError(fmt.Sprintf("workflow instance %q", instanceID))
	}
	return rec, nil
}

// Mailbox delivers workflow events through buffered channels
type Mailbox struct {
	mu    sync.Mutex
	boxes map[string]chan ports.WorkflowEvent
}

// NewMailbox creates an in-memory mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[string]chan ports.WorkflowEvent)}
}

func (m *Mailbox) box(instanceID, eventType string) chan ports.WorkflowEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := instanceID + "#" + eventType
	ch, ok := m.boxes[key]
	if !ok {
		ch = make(chan ports.WorkflowEvent, 16)
		m.boxes[key] = ch
	}
	return ch
}

// Send delivers an event to the instance's mailbox
func (m *Mailbox) Send(ctx context.Context, instanceID string, event ports.WorkflowEvent) error {
	select {
	case m.box(instanceID, event.Type) <- event:
		return nil
	default:
		return pkgerrors.NewInternalError(fmt.Sprintf("mailbox for instance %q is full", instanceID))
	}
}

// Wait blocks until an event of the given type arrives, the timeout elapses,
// or ctx is done.
func (m *Mailbox) Wait(ctx context.Context, instanceID, eventType string, timeout time.Duration) (ports.WorkflowEvent, error) {
	select {
	case event := <-m.box(instanceID, eventType):
		return event, nil
	case <-time.After(timeout):
		return ports.WorkflowEvent{}, pkgerrors.NewTimeoutError(fmt.Sprintf("wait for %s on instance %s", eventType, instanceID))
	case <-ctx.Done():
		return ports.WorkflowEvent{}, ctx.Err()
	}
}

// RankingCache memoizes provider payloads in a map
type RankingCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewRankingCache creates an empty in-memory ranking cache
func NewRankingCache() *RankingCache {
	return &RankingCache{entries: make(map[string][]byte)}
}

// FetchWithCache returns the cached payload for the query, computing and
// storing it on a miss. A failed compute stores nothing.
func (c *RankingCache) FetchWithCache(ctx context.Context, query valueobjects.RankingQuery, compute ports.ComputeFunc) ([]byte, error) {
	c.mu.Lock()
	cached, ok := c.entries[query.CacheKey()]
	c.mu.Unlock()
	if ok {
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	c.mu.Lock()
	c.entries[query.CacheKey()] = stored
	c.mu.Unlock()
	return value, nil
}

// EventBus collects published domain events; useful for local development
// and assertions in tests.
type EventBus struct {
	mu        sync.Mutex
	published []events.DomainEvent
}

// NewEventBus creates an in-memory event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Publish records a single event
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

// PublishBatch records a batch of events
func (b *EventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, batch...)
	return nil
}

// Published returns a copy of everything published so far
func (b *EventBus) Published() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.DomainEvent, len(b.published))
	copy(out, b.published)
	return out
}
