package illustrate

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	image_search "illustro/tools/image_search"
	"illustro/tools/image_search/models"
)

// Aggregator fans queries out to the source strategies, applies the
// fallback cascade and cross-source interleave, and merges per-query
// results into one deduplicated candidate pool.
type Aggregator struct {
	wiki       image_search.ImageSearcher
	web        image_search.ImageSearcher
	webEnabled bool
	perSource  int
	preference string
	logger     *log.Logger
}

func NewAggregator(wiki, web image_search.ImageSearcher, webEnabled bool, perSource int, preference string) *Aggregator {
	return &Aggregator{
		wiki:       wiki,
		web:        web,
		webEnabled: webEnabled,
		perSource:  perSource,
		preference: preference,
		logger:     log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// Aggregate runs every query through its effective strategy and merges
// the results. An empty pool is a normal terminal outcome, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, queries []Query, messageHint SourceHint) []models.Candidate {
	var pool []models.Candidate
	for _, q := range queries {
		results := a.searchOne(ctx, q, a.effectiveHint(q, messageHint))
		for i := range results {
			results[i].Query = q.Text
		}
		pool = append(pool, results...)
	}
	return models.Deduplicate(pool)
}

// effectiveHint resolves precedence: configured preference when it pins
// a source, then the explicit per-query hint, then the message hint.
func (a *Aggregator) effectiveHint(q Query, messageHint SourceHint) SourceHint {
	switch a.preference {
	case "encyclopedic":
		return HintEncyclopedic
	case "web":
		return HintWeb
	case "both":
		return HintEither
	}
	if q.Hint != "" && q.Hint != HintEither {
		return q.Hint
	}
	if messageHint != "" && messageHint != HintEither {
		return messageHint
	}
	return HintEither
}

func (a *Aggregator) searchOne(ctx context.Context, q Query, hint SourceHint) []models.Candidate {
	switch hint {
	case HintEncyclopedic:
		results := a.run(ctx, a.wiki, q.Text, image_search.SourceWikipedia)
		if len(results) == 0 && a.webEnabled {
			searchFallbacks.Inc()
			results = a.run(ctx, a.web, q.Text, image_search.SourceWeb)
		}
		return results
	case HintWeb:
		return a.run(ctx, a.web, q.Text, image_search.SourceWeb)
	default:
		return a.searchBoth(ctx, q.Text)
	}
}

// searchBoth runs both strategies concurrently and interleaves their
// lists position by position. The interleaved order is load-bearing:
// the selector's prompt enumerates candidates by pool position, so no
// single source may dominate the front.
func (a *Aggregator) searchBoth(ctx context.Context, query string) []models.Candidate {
	var wikiResults, webResults []models.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wikiResults = a.run(gctx, a.wiki, query, image_search.SourceWikipedia)
		return nil
	})
	g.Go(func() error {
		webResults = a.run(gctx, a.web, query, image_search.SourceWeb)
		return nil
	})
	_ = g.Wait()
	return models.Interleave(wikiResults, webResults)
}

// run executes one strategy, containing its errors: a failed search is
// an empty result for that query, never a pipeline failure.
func (a *Aggregator) run(ctx context.Context, s image_search.ImageSearcher, query, source string) []models.Candidate {
	if s == nil {
		return nil
	}
	searchRequests.WithLabelValues(source).Inc()
	results, err := s.Search(ctx, query, a.perSource)
	if err != nil {
		searchFailures.WithLabelValues(source).Inc()
		a.logger.Printf("%s search failed for %q: %v", source, query, err)
		return nil
	}
	return results
}
