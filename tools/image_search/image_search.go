package image_search

import (
	"context"

	"illustro/tools/image_search/models"
)

// ImageSearcher finds candidate images for one search phrase. Implementations
// are individually fault tolerant: a transport error surfaces as an error to
// the aggregator, which treats it as an empty result, never as a pipeline
// failure.
type ImageSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)
}

// Source tags identify which strategy produced a candidate.
const (
	SourceWikipedia = "wikipedia"
	SourceWeb       = "web"
)
