// Package tools implements the toolset offered to the generation model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"contentforge/application/ports"
	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"

	"go.uber.org/zap"
)

const fetchRankingTool = "fetch_ranking_data"

// RankingToolset lets the model pull search ranking data for related keywords
// during a generation run. Lookups go through the ranking cache, so a keyword
// the planner already researched costs nothing extra.
type RankingToolset struct {
	cache    ports.RankingCache
	provider ports.RankingProvider
	defaults ports.Project
	logger   *zap.Logger
}

// NewRankingToolset creates the ranking toolset. The project supplies the
// default locale for lookups that do not specify one.
func NewRankingToolset(cache ports.RankingCache, provider ports.RankingProvider, defaults ports.Project, logger *zap.Logger) *RankingToolset {
	return &RankingToolset{
		cache:    cache,
		provider: provider,
		defaults: defaults,
		logger:   logger,
	}
}

// Tools describes the available tools
func (t *RankingToolset) Tools() []ports.ToolDefinition {
	return []ports.ToolDefinition{
		{
			Name: fetchRankingTool,
			Description: "Fetch search engine ranking data for a keyword. " +
				"Use it to inspect what competing pages cover for related keywords.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"keyword": map[string]interface{}{
						"type":        "string",
						"description": "The keyword to look up",
					},
					"location_name": map[string]interface{}{
						"type":        "string",
						"description": "Audience location, e.g. \"United States\"",
					},
					"language_code": map[string]interface{}{
						"type":        "string",
						"description": "Two-letter language code, e.g. \"en\"",
					},
				},
				"required": []string{"keyword"},
			},
		},
	}
}

type fetchRankingArgs struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name"`
	LanguageCode string `json:"language_code"`
}

// Invoke dispatches one tool call
func (t *RankingToolset) Invoke(ctx context.Context, name, arguments string) (string, error) {
	if name != fetchRankingTool {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown tool %q", name))
	}

	var args fetchRankingArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("invalid %s arguments: %v", name, err))
	}
	if args.LocationName == "" {
		args.LocationName = t.defaults.LocationName
	}
	if args.LanguageCode == "" {
		args.LanguageCode = t.defaults.LanguageCode
	}

	query, err := valueobjects.NewRankingQuery(args.Keyword, args.LocationName, args.LanguageCode)
	if err != nil {
		return "", err
	}
	data, err := t.cache.FetchWithCache(ctx, query, func(ctx context.Context) ([]byte, error) {
		return t.provider.Fetch(ctx, query)
	})
	if err != nil {
		return "", err
	}

	t.logger.Debug("Ranking tool lookup",
		zap.String("keyword", args.Keyword),
		zap.String("location", args.LocationName),
	)
	return string(data), nil
}
