package valueobjects

import (
	"strings"

	pkgerrors "contentforge/pkg/errors"
)

// RankingQuery identifies one logical lookup against the external ranking
// data provider. Two queries that normalize to the same tuple always hit the
// same cache entry regardless of call site.
type RankingQuery struct {
	keyword      string
	locationName string
	languageCode string
}

// NewRankingQuery creates a normalized ranking query
func NewRankingQuery(keyword, locationName, languageCode string) (RankingQuery, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return RankingQuery{}, pkgerrors.NewValidationError("keyword cannot be empty")
	}
	return RankingQuery{
		keyword:      keyword,
		locationName: strings.ToLower(strings.TrimSpace(locationName)),
		languageCode: strings.ToLower(strings.TrimSpace(languageCode)),
	}, nil
}

// Keyword returns the normalized keyword
func (q RankingQuery) Keyword() string {
	return q.keyword
}

// LocationName returns the normalized location name
func (q RankingQuery) LocationName() string {
	return q.locationName
}

// LanguageCode returns the normalized language code
func (q RankingQuery) LanguageCode() string {
	return q.languageCode
}

// CacheKey derives the deterministic cache key for this query. The key is a
// pure function of the normalized (keyword, location, language) tuple.
func (q RankingQuery) CacheKey() string {
	return "ranking:" + q.keyword + "|" + q.locationName + "|" + q.languageCode
}
