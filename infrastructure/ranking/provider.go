// Package ranking provides the HTTP client for the external keyword ranking
// data provider.
package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"

	"go.uber.org/zap"
)

// Config holds the provider connection settings
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Provider fetches keyword ranking data from the external SERP data service.
// The response payload is opaque to this system: it is cached and forwarded
// to generation verbatim.
type Provider struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *zap.Logger
}

// NewProvider creates an HTTP ranking data provider
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

type fetchRequest struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name"`
	LanguageCode string `json:"language_code"`
}

// Fetch retrieves ranking data for the normalized query tuple
func (p *Provider) Fetch(ctx context.Context, query valueobjects.RankingQuery) ([]byte, error) {
	body, err := json.Marshal(fetchRequest{
		Keyword:      query.Keyword(),
		LocationName: query.LocationName(),
		LanguageCode: query.LanguageCode(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ranking request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ranking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.NewExternalError("ranking-provider", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.NewExternalError("ranking-provider", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.NewExternalError("ranking-provider",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(payload)),
		).WithCode(fmt.Sprintf("HTTP_%d", resp.StatusCode))
	}

	p.logger.Debug("Ranking data fetched",
		zap.String("keyword", query.Keyword()),
		zap.Int("bytes", len(payload)),
	)
	return payload, nil
}
