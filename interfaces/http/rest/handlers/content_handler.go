package handlers

import (
	"bytes"
	"net/http"

	"contentforge/application/services"
	"contentforge/application/workflows"
	"contentforge/domain/core/aggregates"
	"contentforge/pkg/common"
	pkgerrors "contentforge/pkg/errors"
	"contentforge/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ContentHandler handles content node and workflow HTTP requests
type ContentHandler struct {
	service *services.ContentService
	logger  *zap.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(service *services.ContentService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		service: service,
		logger:  logger,
	}
}

// CreateNodeRequest represents the request body for creating a content node
type CreateNodeRequest struct {
	CampaignID     string `json:"campaign_id,omitempty"`
	Path           string `json:"path" validate:"required"`
	PrimaryKeyword string `json:"primary_keyword,omitempty"`
}

// PlanRequest represents the request body for starting a planner run
type PlanRequest struct {
	CampaignID         string `json:"campaign_id,omitempty"`
	Path               string `json:"path" validate:"required"`
	CallbackInstanceID string `json:"callback_instance_id,omitempty"`
}

// WriteRequest represents the request body for starting a writer run
type WriteRequest struct {
	CampaignID string `json:"campaign_id,omitempty"`
	Path       string `json:"path" validate:"required"`
}

// InstanceResponse carries a launched workflow's instance id
type InstanceResponse struct {
	InstanceID string `json:"instance_id"`
}

// GenerateResponse carries both instance ids of a combined generation run
type GenerateResponse struct {
	WriterInstanceID  string `json:"writer_instance_id"`
	PlannerInstanceID string `json:"planner_instance_id"`
}

func (h *ContentHandler) workspaceKey(r *http.Request, campaignID string) (aggregates.WorkspaceKey, error) {
	return aggregates.NewWorkspaceKey(
		chi.URLParam(r, "organizationID"),
		chi.URLParam(r, "projectID"),
		campaignID,
	)
}

// CreateNode handles POST /workspaces/{organizationID}/{projectID}/nodes
func (h *ContentHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	key, err := h.workspaceKey(r, req.CampaignID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	view, err := h.service.CreateNode(r.Context(), key, req.Path, req.PrimaryKeyword)
	if err != nil {
		h.logger.Error("Failed to create node",
			zap.String("workspace", key.String()),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		h.respondAppError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, view)
}

// GetNode handles GET /workspaces/{organizationID}/{projectID}/nodes
func (h *ContentHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "path query parameter is required")
		return
	}

	key, err := h.workspaceKey(r, r.URL.Query().Get("campaign_id"))
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	view, err := h.service.GetNode(r.Context(), key, path)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// ListNodeChildren handles GET /workspaces/{organizationID}/{projectID}/nodes/children
func (h *ContentHandler) ListNodeChildren(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "path query parameter is required")
		return
	}

	key, err := h.workspaceKey(r, r.URL.Query().Get("campaign_id"))
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	views, err := h.service.ListChildren(r.Context(), key, path)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, views)
}

// GetNodeContent handles GET /workspaces/{organizationID}/{projectID}/nodes/content
func (h *ContentHandler) GetNodeContent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "path query parameter is required")
		return
	}

	key, err := h.workspaceKey(r, r.URL.Query().Get("campaign_id"))
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	content, err := h.service.GetNodeContent(r.Context(), key, path)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	// Bodies are stored as markdown; format=html renders them for preview.
	if r.URL.Query().Get("format") == "html" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(content), &buf); err != nil {
			h.respondError(w, http.StatusInternalServerError, "RENDER_ERROR", "Failed to render content: "+err.Error())
			return
		}
		content = buf.String()
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"path": path, "content": content})
}

// Plan handles POST /workspaces/{organizationID}/{projectID}/plan
func (h *ContentHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	instanceID := h.service.StartPlanner(workflows.PlannerInput{
		OrganizationID:     chi.URLParam(r, "organizationID"),
		ProjectID:          chi.URLParam(r, "projectID"),
		CampaignID:         req.CampaignID,
		Path:               req.Path,
		CallbackInstanceID: req.CallbackInstanceID,
	})
	h.respondJSON(w, http.StatusAccepted, InstanceResponse{InstanceID: instanceID})
}

// Write handles POST /workspaces/{organizationID}/{projectID}/write
func (h *ContentHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	instanceID := h.service.StartWriter(workflows.WriterInput{
		OrganizationID: chi.URLParam(r, "organizationID"),
		ProjectID:      chi.URLParam(r, "projectID"),
		CampaignID:     req.CampaignID,
		Path:           req.Path,
	})
	h.respondJSON(w, http.StatusAccepted, InstanceResponse{InstanceID: instanceID})
}

// Generate handles POST /workspaces/{organizationID}/{projectID}/generate.
// It launches the writer first, then the planner with the writer's instance
// as callback target, so the writer suspends until the outline lands.
func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	organizationID := chi.URLParam(r, "organizationID")
	projectID := chi.URLParam(r, "projectID")

	writerID := h.service.StartWriter(workflows.WriterInput{
		OrganizationID: organizationID,
		ProjectID:      projectID,
		CampaignID:     req.CampaignID,
		Path:           req.Path,
	})
	plannerID := h.service.StartPlanner(workflows.PlannerInput{
		OrganizationID:     organizationID,
		ProjectID:          projectID,
		CampaignID:         req.CampaignID,
		Path:               req.Path,
		CallbackInstanceID: writerID,
	})

	h.respondJSON(w, http.StatusAccepted, GenerateResponse{
		WriterInstanceID:  writerID,
		PlannerInstanceID: plannerID,
	})
}

// GetInstance handles GET /instances/{instanceID}
func (h *ContentHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		h.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Instance ID is required")
		return
	}

	record, err := h.service.GetInstance(r.Context(), instanceID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

// respondAppError maps an error chain to an HTTP response
func (h *ContentHandler) respondAppError(w http.ResponseWriter, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		h.respondError(w, status, string(appErr.Type), appErr.Message)
		return
	}
	h.respondError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
}

func (h *ContentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	common.RespondJSON(w, status, data)
}

func (h *ContentHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	common.RespondError(w, status, code, message)
}
