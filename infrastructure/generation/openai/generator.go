// Package openai implements outline and article generation on the OpenAI
// chat completions API with a bounded tool-call loop.
package openai

import (
	"context"
	"fmt"
	"strings"

	"contentforge/application/ports"
	pkgerrors "contentforge/pkg/errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// maxToolSteps bounds how many completion rounds one generation may spend on
// tool calls before the run fails instead of looping.
const maxToolSteps = 8

const outlineSystemPrompt = `You are an SEO content strategist. Given a target keyword, ` +
	`search ranking data for that keyword, and the project's audience context, produce a ` +
	`detailed article outline in markdown. Use the ranking data to identify the topics and ` +
	`questions competing pages cover. Return only the outline.`

const articleSystemPrompt = `You are an SEO content writer. Given a target keyword and an ` +
	`approved article outline, write the full article in markdown, following the outline ` +
	`structure exactly. Return only the article body.`

// Config holds the generation settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Generator produces outlines and article bodies through chat completions.
// When a toolset is configured its tools are offered to the model and tool
// calls are dispatched through it, up to maxToolSteps rounds per generation.
type Generator struct {
	client openai.Client
	model  string
	tools  ports.Toolset
	logger *zap.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithToolset makes the toolset's tools available to the model
func WithToolset(ts ports.Toolset) Option {
	return func(g *Generator) {
		g.tools = ts
	}
}

// NewGenerator creates an OpenAI-backed generator
func NewGenerator(cfg Config, logger *zap.Logger, opts ...Option) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, pkgerrors.NewValidationError("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, pkgerrors.NewValidationError("openai model is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	g := &Generator{
		client: openai.NewClient(reqOpts...),
		model:  cfg.Model,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateOutline produces an article outline for the keyword, informed by
// the ranking data payload.
func (g *Generator) GenerateOutline(ctx context.Context, req ports.OutlineRequest) (string, error) {
	user := fmt.Sprintf(
		"Target keyword: %s\nAudience location: %s\nLanguage: %s\n\nRanking data:\n%s",
		req.Keyword, req.Project.LocationName, req.Project.LanguageCode, string(req.RankingData),
	)
	return g.complete(ctx, outlineSystemPrompt, user)
}

// GenerateArticle produces the full article body from the approved outline
func (g *Generator) GenerateArticle(ctx context.Context, req ports.ArticleRequest) (string, error) {
	user := fmt.Sprintf(
		"Target keyword: %s\nAudience location: %s\nLanguage: %s\n\nOutline:\n%s",
		req.Keyword, req.Project.LocationName, req.Project.LanguageCode, req.Outline,
	)
	return g.complete(ctx, articleSystemPrompt, user)
}

// complete runs the completion loop: each round either yields final content
// or a batch of tool calls, whose results are appended to the conversation
// for the next round.
func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if g.tools != nil {
		params.Tools = toolParams(g.tools.Tools())
	}

	for step := 0; step < maxToolSteps; step++ {
		resp, err := g.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", pkgerrors.NewExternalError("openai", err)
		}
		if len(resp.Choices) == 0 {
			return "", pkgerrors.NewExternalError("openai", fmt.Errorf("empty choices")).WithCode("EMPTY_OUTPUT")
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			content := strings.TrimSpace(message.Content)
			g.logger.Debug("Generation completed",
				zap.String("model", g.model),
				zap.Int("tool_rounds", step),
				zap.Int("output_chars", len(content)),
			)
			return content, nil
		}
		if g.tools == nil {
			return "", pkgerrors.NewExternalError("openai", fmt.Errorf("model requested tools but none are configured"))
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, call := range message.ToolCalls {
			result, err := g.tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return "", pkgerrors.NewExternalError("tool "+call.Function.Name, err)
			}
			g.logger.Debug("Tool call dispatched",
				zap.String("tool", call.Function.Name),
				zap.Int("step", step),
			)
			params.Messages = append(params.Messages, openai.ToolMessage(result, call.ID))
		}
	}

	return "", pkgerrors.NewExternalError("openai",
		fmt.Errorf("no final content after %d tool rounds", maxToolSteps)).WithCode("TOOL_LOOP_LIMIT")
}

func toolParams(defs []ports.ToolDefinition) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.Parameters),
			},
		})
	}
	return params
}
