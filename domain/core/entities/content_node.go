package entities

import (
	"fmt"
	"time"

	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"
)

// Metadata field names accepted by MergeMetadata. The primary keyword is set
// at creation and immutable afterwards: workflows route on it.
const (
	FieldOutline    = "outline"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldWorkflowID = "workflowId"
)

// ContentNode is an addressable unit in the workspace document: a file
// carrying a keyword-targeted piece of content, or a directory grouping
// files. This is a rich domain model with encapsulated business logic.
type ContentNode struct {
	path           valueobjects.NodePath
	directory      bool
	body           string
	primaryKeyword string
	outline        string
	status         valueobjects.ContentStatus
	errorMessage   string
	workflowID     string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewContentFile creates a file node targeting the given primary keyword
func NewContentFile(path valueobjects.NodePath, primaryKeyword string) (*ContentNode, error) {
	if path.IsZero() {
		return nil, pkgerrors.NewValidationError("path cannot be empty")
	}
	if primaryKeyword == "" {
		return nil, pkgerrors.NewValidationError("primaryKeyword cannot be empty")
	}

	now := time.Now()
	return &ContentNode{
		path:           path,
		primaryKeyword: primaryKeyword,
		status:         valueobjects.StatusUnset,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// NewDirectory creates a directory node. Directories carry no body and no
// keyword; they exist to give file nodes a place in the tree.
func NewDirectory(path valueobjects.NodePath) (*ContentNode, error) {
	if path.IsZero() {
		return nil, pkgerrors.NewValidationError("path cannot be empty")
	}
	now := time.Now()
	return &ContentNode{
		path:      path,
		directory: true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructContentNode rebuilds a node from persisted snapshot data with
// preserved timestamps.
func ReconstructContentNode(
	path valueobjects.NodePath,
	directory bool,
	body, primaryKeyword, outline string,
	status valueobjects.ContentStatus,
	errorMessage, workflowID string,
	createdAt, updatedAt time.Time,
) (*ContentNode, error) {
	if path.IsZero() {
		return nil, pkgerrors.NewValidationError("path cannot be empty")
	}
	if !status.IsValid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown content status %q", status))
	}
	return &ContentNode{
		path:           path,
		directory:      directory,
		body:           body,
		primaryKeyword: primaryKeyword,
		outline:        outline,
		status:         status,
		errorMessage:   errorMessage,
		workflowID:     workflowID,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}, nil
}

// Path returns the node's path
func (n *ContentNode) Path() valueobjects.NodePath {
	return n.path
}

// IsDirectory reports whether the node is a directory
func (n *ContentNode) IsDirectory() bool {
	return n.directory
}

// Body returns the node's content body; empty for directories and files not
// yet written.
func (n *ContentNode) Body() string {
	return n.body
}

// PrimaryKeyword returns the keyword this node targets
func (n *ContentNode) PrimaryKeyword() string {
	return n.primaryKeyword
}

// Outline returns the writing plan, empty until the planner persisted one
func (n *ContentNode) Outline() string {
	return n.outline
}

// HasOutline reports whether a non-empty outline is present. The writer may
// not enter a writing-stage status before this is true.
func (n *ContentNode) HasOutline() bool {
	return n.outline != ""
}

// Status returns the node's lifecycle status
func (n *ContentNode) Status() valueobjects.ContentStatus {
	return n.status
}

// ErrorMessage returns the recorded failure message, if any
func (n *ContentNode) ErrorMessage() string {
	return n.errorMessage
}

// WorkflowID returns the id of the workflow instance that currently owns the
// node's in-flight operation.
func (n *ContentNode) WorkflowID() string {
	return n.workflowID
}

// CreatedAt returns when the node was created
func (n *ContentNode) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *ContentNode) UpdatedAt() time.Time {
	return n.updatedAt
}

// SetOutline records the planner's outline
func (n *ContentNode) SetOutline(outline string) error {
	if n.directory {
		return pkgerrors.NewValidationError("cannot set outline on a directory")
	}
	if outline == "" {
		return pkgerrors.NewValidationError("outline cannot be empty")
	}
	n.outline = outline
	n.updatedAt = time.Now()
	return nil
}

// BeginWriting transitions the node into the in-progress writing status and
// records the owning workflow instance. It refuses to proceed when no
// outline is present, and the lifecycle table gates entry: a published or
// in-review node is never silently regenerated.
func (n *ContentNode) BeginWriting(workflowID string) error {
	if n.directory {
		return pkgerrors.NewValidationError("cannot write a directory")
	}
	if !n.HasOutline() {
		return pkgerrors.NewConflictError("node has no outline; planner must run first")
	}
	next, err := n.status.Transition(valueobjects.StatusWriting)
	if err != nil {
		return err
	}
	n.status = next
	n.workflowID = workflowID
	n.errorMessage = ""
	n.updatedAt = time.Now()
	return nil
}

// FinalizeContent sets the generated body together with its terminal status
// in one mutation, so the node is never observable with content but a
// still-writing status.
func (n *ContentNode) FinalizeContent(body string, status valueobjects.ContentStatus) error {
	if n.directory {
		return pkgerrors.NewValidationError("cannot write a directory")
	}
	if body == "" {
		return pkgerrors.NewValidationError("content body cannot be empty")
	}
	if status != valueobjects.StatusPendingReview && status != valueobjects.StatusScheduled {
		return pkgerrors.NewValidationError(fmt.Sprintf("%q is not a terminal writing status", status))
	}
	next, err := n.status.Transition(status)
	if err != nil {
		return err
	}
	n.body = body
	n.status = next
	n.errorMessage = ""
	n.updatedAt = time.Now()
	return nil
}

// MarkGenerationFailed records a failed generation attempt so the failure is
// visible on the node itself, not only in workflow logs. Only an in-progress
// node can fail this way; a node that never entered planning or writing
// keeps its status.
func (n *ContentNode) MarkGenerationFailed(message, workflowID string) error {
	next, err := n.status.Transition(valueobjects.StatusGenerationFailed)
	if err != nil {
		return err
	}
	n.status = next
	n.errorMessage = message
	n.workflowID = workflowID
	n.updatedAt = time.Now()
	return nil
}

// MergeMetadata applies a partial metadata update. Unknown field names are
// rejected; fields absent from the map are left untouched.
func (n *ContentNode) MergeMetadata(fields map[string]string) error {
	for name := range fields {
		switch name {
		case FieldOutline, FieldStatus, FieldError, FieldWorkflowID:
		default:
			return pkgerrors.NewValidationError(fmt.Sprintf("unknown metadata field %q", name))
		}
	}

	if outline, ok := fields[FieldOutline]; ok {
		if err := n.SetOutline(outline); err != nil {
			return err
		}
	}
	if status, ok := fields[FieldStatus]; ok {
		next, err := n.status.Transition(valueobjects.ContentStatus(status))
		if err != nil {
			return err
		}
		n.status = next
	}
	if msg, ok := fields[FieldError]; ok {
		n.errorMessage = msg
	}
	if id, ok := fields[FieldWorkflowID]; ok {
		n.workflowID = id
	}
	n.updatedAt = time.Now()
	return nil
}
