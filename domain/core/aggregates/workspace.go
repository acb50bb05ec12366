package aggregates

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"contentforge/domain/core/entities"
	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"
)

// WorkspaceKey identifies the one logical workspace document per
// (organization, project, campaign) triple.
type WorkspaceKey struct {
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id"`
	CampaignID     string `json:"campaign_id,omitempty"`
}

// NewWorkspaceKey creates a workspace key; the campaign id is optional
func NewWorkspaceKey(organizationID, projectID, campaignID string) (WorkspaceKey, error) {
	if organizationID == "" {
		return WorkspaceKey{}, pkgerrors.NewValidationError("organizationID cannot be empty")
	}
	if projectID == "" {
		return WorkspaceKey{}, pkgerrors.NewValidationError("projectID cannot be empty")
	}
	return WorkspaceKey{
		OrganizationID: organizationID,
		ProjectID:      projectID,
		CampaignID:     campaignID,
	}, nil
}

// ObjectKey derives the deterministic blob key for this workspace. There is
// exactly one blob per key.
func (k WorkspaceKey) ObjectKey() string {
	campaign := k.CampaignID
	if campaign == "" {
		campaign = "default"
	}
	return fmt.Sprintf("workspaces/%s/%s/%s.json", k.OrganizationID, k.ProjectID, campaign)
}

// String returns a stable textual form of the key, usable as a lock name
func (k WorkspaceKey) String() string {
	return strings.TrimSuffix(k.ObjectKey(), ".json")
}

// Workspace is the aggregate root for one workspace document: a virtual
// filesystem of content nodes addressed by slug-normalized paths. The
// aggregate is not safe for concurrent use; callers follow the
// load-mutate-persist discipline, reloading the latest snapshot at the start
// of every step that touches it.
type Workspace struct {
	key   WorkspaceKey
	nodes map[string]*entities.ContentNode
}

// NewWorkspace creates an empty workspace document
func NewWorkspace(key WorkspaceKey) *Workspace {
	return &Workspace{
		key:   key,
		nodes: make(map[string]*entities.ContentNode),
	}
}

// Key returns the workspace's identifying key
func (w *Workspace) Key() WorkspaceKey {
	return w.key
}

// Resolve returns the node at the given path. A missing node is a
// NotFoundError: callers treat it as permanent since it signals a
// programming or data-integrity error rather than a transient fault.
func (w *Workspace) Resolve(path valueobjects.NodePath) (*entities.ContentNode, error) {
	node, ok := w.nodes[path.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("node %q", path.String()))
	}
	return node, nil
}

// CreateFile adds a file node targeting the given primary keyword,
// materializing any missing parent directories.
func (w *Workspace) CreateFile(path valueobjects.NodePath, primaryKeyword string) (*entities.ContentNode, error) {
	if _, exists := w.nodes[path.String()]; exists {
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("node %q already exists", path.String()))
	}
	node, err := entities.NewContentFile(path, primaryKeyword)
	if err != nil {
		return nil, err
	}
	if err := w.ensureParents(path); err != nil {
		return nil, err
	}
	w.nodes[path.String()] = node
	return node, nil
}

// CreateDirectory adds a directory node, materializing missing parents
func (w *Workspace) CreateDirectory(path valueobjects.NodePath) (*entities.ContentNode, error) {
	if existing, exists := w.nodes[path.String()]; exists {
		if existing.IsDirectory() {
			return existing, nil
		}
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("node %q already exists as a file", path.String()))
	}
	node, err := entities.NewDirectory(path)
	if err != nil {
		return nil, err
	}
	if err := w.ensureParents(path); err != nil {
		return nil, err
	}
	w.nodes[path.String()] = node
	return node, nil
}

// WriteMetadata merges the given fields into the node's metadata. Fields not
// named in the map are left untouched. The node must already exist in this
// loaded document instance.
func (w *Workspace) WriteMetadata(path valueobjects.NodePath, fields map[string]string) error {
	node, err := w.Resolve(path)
	if err != nil {
		return err
	}
	return node.MergeMetadata(fields)
}

// WriteContent sets the node's body and optional metadata in one call, used
// when finalizing generated content together with its terminal status so an
// observer never sees content with a stale in-progress status.
func (w *Workspace) WriteContent(path valueobjects.NodePath, body string, status valueobjects.ContentStatus) error {
	node, err := w.Resolve(path)
	if err != nil {
		return err
	}
	return node.FinalizeContent(body, status)
}

// Paths returns every node path in the document, sorted
func (w *Workspace) Paths() []string {
	paths := make([]string, 0, len(w.nodes))
	for p := range w.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Children returns the direct children of the given directory path, sorted
// by path.
func (w *Workspace) Children(path valueobjects.NodePath) []*entities.ContentNode {
	prefix := path.String() + "/"
	var children []*entities.ContentNode
	for p, node := range w.nodes {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			children = append(children, node)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Path().String() < children[j].Path().String()
	})
	return children
}

// ensureParents materializes directory nodes for every ancestor of path
func (w *Workspace) ensureParents(path valueobjects.NodePath) error {
	parent, ok := path.Parent()
	for ok {
		if existing, exists := w.nodes[parent.String()]; exists {
			if !existing.IsDirectory() {
				return pkgerrors.NewConflictError(fmt.Sprintf("parent %q is a file", parent.String()))
			}
		} else {
			dir, err := entities.NewDirectory(parent)
			if err != nil {
				return err
			}
			w.nodes[parent.String()] = dir
		}
		parent, ok = parent.Parent()
	}
	return nil
}

// nodeRecord is the serialized form of one node inside a snapshot
type nodeRecord struct {
	Path           string    `json:"path"`
	Directory      bool      `json:"directory,omitempty"`
	Body           string    `json:"body,omitempty"`
	PrimaryKeyword string    `json:"primary_keyword,omitempty"`
	Outline        string    `json:"outline,omitempty"`
	Status         string    `json:"status,omitempty"`
	Error          string    `json:"error,omitempty"`
	WorkflowID     string    `json:"workflow_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// snapshot is the serialized form of the whole document
type snapshot struct {
	Version int          `json:"version"`
	Key     WorkspaceKey `json:"key"`
	Nodes   []nodeRecord `json:"nodes"`
}

const snapshotVersion = 1

// Export serializes the document into its snapshot form. Nodes are emitted
// in path order so exports are deterministic.
func (w *Workspace) Export() ([]byte, error) {
	snap := snapshot{
		Version: snapshotVersion,
		Key:     w.key,
		Nodes:   make([]nodeRecord, 0, len(w.nodes)),
	}
	for _, p := range w.Paths() {
		node := w.nodes[p]
		snap.Nodes = append(snap.Nodes, nodeRecord{
			Path:           node.Path().String(),
			Directory:      node.IsDirectory(),
			Body:           node.Body(),
			PrimaryKeyword: node.PrimaryKeyword(),
			Outline:        node.Outline(),
			Status:         string(node.Status()),
			Error:          node.ErrorMessage(),
			WorkflowID:     node.WorkflowID(),
			CreatedAt:      node.CreatedAt(),
			UpdatedAt:      node.UpdatedAt(),
		})
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to export workspace snapshot: %w", err)
	}
	return data, nil
}

// Import reconstructs a workspace document from an exported snapshot.
// Export followed by Import yields an equivalent tree: same path set, same
// metadata, same content on every node.
func Import(data []byte) (*Workspace, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse workspace snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unsupported snapshot version %d", snap.Version))
	}

	ws := NewWorkspace(snap.Key)
	for _, rec := range snap.Nodes {
		path, err := valueobjects.NewNodePath(rec.Path)
		if err != nil {
			return nil, err
		}
		node, err := entities.ReconstructContentNode(
			path,
			rec.Directory,
			rec.Body,
			rec.PrimaryKeyword,
			rec.Outline,
			valueobjects.ContentStatus(rec.Status),
			rec.Error,
			rec.WorkflowID,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		ws.nodes[path.String()] = node
	}
	return ws, nil
}
