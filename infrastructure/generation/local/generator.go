// Package local provides a deterministic generator for development and test
// environments without model access.
package local

import (
	"context"
	"fmt"

	"contentforge/application/ports"
)

// Generator produces templated outlines and articles. Output is a pure
// function of the request, which keeps local workflow runs reproducible.
type Generator struct{}

// NewGenerator creates a local generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateOutline returns a templated outline for the keyword
func (g *Generator) GenerateOutline(ctx context.Context, req ports.OutlineRequest) (string, error) {
	return fmt.Sprintf(
		"# %s\n\n## Introduction\n\n## What is %s?\n\n## Key Considerations\n\n## Best Practices\n\n## Conclusion\n",
		req.Keyword, req.Keyword,
	), nil
}

// GenerateArticle expands the outline into a templated article body
func (g *Generator) GenerateArticle(ctx context.Context, req ports.ArticleRequest) (string, error) {
	return fmt.Sprintf(
		"%s\nThis article covers %s for readers in %s.\n",
		req.Outline, req.Keyword, req.Project.LocationName,
	), nil
}
