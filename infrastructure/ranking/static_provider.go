package ranking

import (
	"context"
	"encoding/json"
	"fmt"

	"contentforge/domain/core/valueobjects"
)

// StaticProvider serves fabricated ranking payloads for local development,
// where no provider endpoint is configured. The payload shape mirrors what a
// real SERP data response carries so downstream prompting behaves the same.
type StaticProvider struct{}

// NewStaticProvider creates a development ranking provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Fetch returns a deterministic payload derived from the query tuple
func (p *StaticProvider) Fetch(ctx context.Context, query valueobjects.RankingQuery) ([]byte, error) {
	payload := map[string]interface{}{
		"keyword":       query.Keyword(),
		"location_name": query.LocationName(),
		"language_code": query.LanguageCode(),
		"results": []map[string]interface{}{
			{"rank": 1, "title": fmt.Sprintf("The Complete Guide to %s", query.Keyword()), "url": "https://example.com/guide"},
			{"rank": 2, "title": fmt.Sprintf("%s: Everything You Need to Know", query.Keyword()), "url": "https://example.com/overview"},
			{"rank": 3, "title": fmt.Sprintf("10 Best Practices for %s", query.Keyword()), "url": "https://example.com/best-practices"},
		},
	}
	return json.Marshal(payload)
}
