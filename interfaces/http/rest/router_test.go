package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contentforge/application/ports"
	"contentforge/application/services"
	"contentforge/application/workflows"
	"contentforge/infrastructure/config"
	"contentforge/infrastructure/generation/local"
	"contentforge/infrastructure/persistence/memory"
	"contentforge/infrastructure/projects"
	"contentforge/infrastructure/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	stepLog := memory.NewStepLog()
	mailbox := memory.NewMailbox()
	eventBus := memory.NewEventBus()
	workspace := workflows.NewWorkspaceAccess(memory.NewSnapshotStore(), memory.NewMutex(), logger)

	store, err := projects.NewStaticStore(ports.Project{
		LocationName: "United States",
		LanguageCode: "en",
	}, "")
	require.NoError(t, err)

	generator := local.NewGenerator()
	planner := workflows.NewPlanner(workspace, store, memory.NewRankingCache(), ranking.NewStaticProvider(),
		generator, mailbox, stepLog, eventBus, logger)
	writer := workflows.NewWriter(workspace, store, generator, mailbox, stepLog, eventBus, logger)
	service := services.NewContentService(workspace, planner, writer, stepLog, logger)

	return NewRouter(service, &config.Config{}, logger).Setup()
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCreateAndGetNode(t *testing.T) {
	handler := newTestServer(t)

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/v1/workspaces/acme/site/nodes", map[string]string{
		"path":            "blog/espresso",
		"primary_keyword": "espresso machines",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, resp.Success)

	var created services.NodeView
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "blog/espresso", created.Path)
	assert.Equal(t, "unset", created.Status)

	rec, resp = doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes?path=blog/espresso", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got services.NodeView
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, created, got)
}

func TestListNodeChildren(t *testing.T) {
	handler := newTestServer(t)

	for _, path := range []string{"blog/espresso", "blog/latte", "blog/guides/grinders"} {
		rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/workspaces/acme/site/nodes", map[string]string{
			"path":            path,
			"primary_keyword": "coffee",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, resp := doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes/children?path=blog", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, resp.Success)

	var children []services.NodeView
	require.NoError(t, json.Unmarshal(resp.Data, &children))
	require.Len(t, children, 3)
	assert.Equal(t, "blog/espresso", children[0].Path)
	assert.Equal(t, "blog/guides", children[1].Path)
	assert.True(t, children[1].Directory)
	assert.Equal(t, "blog/latte", children[2].Path)

	// A file node has no children to list.
	rec, resp = doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes/children?path=blog/espresso", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
}

func TestCreateNodeValidation(t *testing.T) {
	handler := newTestServer(t)

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/v1/workspaces/acme/site/nodes", map[string]string{
		"primary_keyword": "missing path",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestGetNodeNotFound(t *testing.T) {
	handler := newTestServer(t)

	rec, resp := doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes?path=blog/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
}

func TestGenerateEndToEnd(t *testing.T) {
	handler := newTestServer(t)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/workspaces/acme/site/nodes", map[string]string{
		"path":            "blog/espresso",
		"primary_keyword": "espresso machines",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/v1/workspaces/acme/site/generate", map[string]string{
		"path": "blog/espresso",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var launched struct {
		WriterInstanceID  string `json:"writer_instance_id"`
		PlannerInstanceID string `json:"planner_instance_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &launched))
	require.NotEmpty(t, launched.WriterInstanceID)
	require.NotEmpty(t, launched.PlannerInstanceID)

	// Both runs are detached; poll the writer's instance record.
	deadline := time.After(5 * time.Second)
	for {
		rec, resp = doJSON(t, handler, http.MethodGet, "/api/v1/instances/"+launched.WriterInstanceID, nil)
		if rec.Code == http.StatusOK {
			var instance ports.InstanceRecord
			require.NoError(t, json.Unmarshal(resp.Data, &instance))
			if instance.Status == ports.InstanceCompleted {
				break
			}
			require.NotEqual(t, ports.InstanceFailed, instance.Status, "writer run failed: %s", instance.Error)
		}
		select {
		case <-deadline:
			t.Fatal("writer run did not complete")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec, resp = doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes/content?path=blog/espresso", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var content map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &content))
	assert.NotEmpty(t, content["content"])

	// The same body renders to HTML on request.
	rec, resp = doJSON(t, handler, http.MethodGet, "/api/v1/workspaces/acme/site/nodes/content?path=blog/espresso&format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &content))
	assert.Contains(t, content["content"], "<")
}
