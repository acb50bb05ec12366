package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"contentforge/application/ports"
	pkgerrors "contentforge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToolset struct {
	mu        sync.Mutex
	invoked   []string
	arguments []string
	result    string
	err       error
}

func (f *fakeToolset) Tools() []ports.ToolDefinition {
	return []ports.ToolDefinition{
		{
			Name:        "fetch_ranking_data",
			Description: "Fetch ranking data for a keyword",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"keyword": map[string]interface{}{"type": "string"},
				},
				"required": []string{"keyword"},
			},
		},
	}
}

func (f *fakeToolset) Invoke(ctx context.Context, name, arguments string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoked = append(f.invoked, name)
	f.arguments = append(f.arguments, arguments)
	return f.result, f.err
}

// completionServer replies to each chat completion request with the next
// canned response body and records the decoded request payloads.
func completionServer(t *testing.T, responses ...string) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var mu sync.Mutex
	var requests []map[string]interface{}
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		requests = append(requests, payload)

		body := responses[len(responses)-1]
		if calls < len(responses) {
			body = responses[calls]
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestGenerator(t *testing.T, baseURL string, opts ...Option) *Generator {
	t.Helper()
	gen, err := NewGenerator(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: baseURL,
	}, zap.NewNop(), opts...)
	require.NoError(t, err)
	return gen
}

const toolCallResponse = `{
	"id": "chatcmpl-1",
	"choices": [{
		"index": 0,
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "fetch_ranking_data", "arguments": "{\"keyword\":\"espresso machines\"}"}
			}]
		},
		"finish_reason": "tool_calls"
	}]
}`

const contentResponse = `{
	"id": "chatcmpl-2",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "## Outline\n\n1. Intro"},
		"finish_reason": "stop"
	}]
}`

func TestGenerateOutlineReturnsContent(t *testing.T) {
	server, requests := completionServer(t, contentResponse)
	gen := newTestGenerator(t, server.URL)

	outline, err := gen.GenerateOutline(context.Background(), ports.OutlineRequest{
		Keyword:     "best coffee beans",
		RankingData: []byte(`{"results":[]}`),
		Project:     ports.Project{LocationName: "United States", LanguageCode: "en"},
	})
	require.NoError(t, err)
	assert.Equal(t, "## Outline\n\n1. Intro", outline)
	assert.Len(t, *requests, 1)

	// No toolset configured, so no tools are offered to the model.
	_, offered := (*requests)[0]["tools"]
	assert.False(t, offered)
}

func TestGenerateOutlineDispatchesToolCalls(t *testing.T) {
	server, requests := completionServer(t, toolCallResponse, contentResponse)
	toolset := &fakeToolset{result: `{"rank":1}`}
	gen := newTestGenerator(t, server.URL, WithToolset(toolset))

	outline, err := gen.GenerateOutline(context.Background(), ports.OutlineRequest{
		Keyword: "best coffee beans",
		Project: ports.Project{LocationName: "United States", LanguageCode: "en"},
	})
	require.NoError(t, err)
	assert.Equal(t, "## Outline\n\n1. Intro", outline)

	require.Equal(t, []string{"fetch_ranking_data"}, toolset.invoked)
	assert.Equal(t, []string{`{"keyword":"espresso machines"}`}, toolset.arguments)

	require.Len(t, *requests, 2)

	// The first request advertises the toolset's tools.
	tools, ok := (*requests)[0]["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 1)

	// The second request carries the tool result back to the model.
	messages, ok := (*requests)[1]["messages"].([]interface{})
	require.True(t, ok)
	last := messages[len(messages)-1].(map[string]interface{})
	assert.Equal(t, "tool", last["role"])
	assert.Equal(t, "call_1", last["tool_call_id"])
	assert.Equal(t, `{"rank":1}`, last["content"])
}

func TestGenerateArticleFailsOnToolError(t *testing.T) {
	server, _ := completionServer(t, toolCallResponse)
	toolset := &fakeToolset{err: pkgerrors.NewValidationError("unknown tool")}
	gen := newTestGenerator(t, server.URL, WithToolset(toolset))

	_, err := gen.GenerateArticle(context.Background(), ports.ArticleRequest{
		Keyword: "best coffee beans",
		Outline: "## Outline",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestToolLoopIsBounded(t *testing.T) {
	// The model keeps asking for tools and never produces content.
	server, requests := completionServer(t, toolCallResponse)
	toolset := &fakeToolset{result: `{"rank":1}`}
	gen := newTestGenerator(t, server.URL, WithToolset(toolset))

	_, err := gen.GenerateOutline(context.Background(), ports.OutlineRequest{
		Keyword: "best coffee beans",
	})
	require.Error(t, err)

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "TOOL_LOOP_LIMIT", appErr.Code)

	assert.Len(t, *requests, maxToolSteps)
	assert.Len(t, toolset.invoked, maxToolSteps)
}

func TestToolCallsWithoutToolsetFail(t *testing.T) {
	server, _ := completionServer(t, toolCallResponse)
	gen := newTestGenerator(t, server.URL)

	_, err := gen.GenerateOutline(context.Background(), ports.OutlineRequest{
		Keyword: "best coffee beans",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}
