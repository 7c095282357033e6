package serper

import (
	"context"
	"strings"

	"illustro/internal/httpx"
	image_search "illustro/tools/image_search"
	"illustro/tools/image_search/models"
)

// overfetchMargin pads the requested count so the stock-photo filter
// does not leave the result list short.
const overfetchMargin = 5

// stockDomains lists providers whose results are watermarked or licensed
// stock imagery. Matching is case-insensitive substring against the
// result's source domain.
var stockDomains = []string{
	"shutterstock",
	"gettyimages",
	"istockphoto",
	"alamy",
	"dreamstime",
	"123rf",
	"depositphotos",
	"stock.adobe",
	"bigstockphoto",
	"fotolia",
	"vectorstock",
	"freepik",
}

// Search implements the general-web-image strategy against the
// serper.dev images endpoint. Without an API key the strategy is
// disabled: it returns no candidates and no error.
type Search struct {
	APIKey string
	HTTP   *httpx.Client

	// Endpoint override for tests; empty means the public API.
	Endpoint string
}

func (s Search) endpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return "https://google.serper.dev/images"
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if s.APIKey == "" || limit <= 0 {
		return nil, nil
	}

	var resp struct {
		Images []struct {
			Title        string `json:"title"`
			ImageURL     string `json:"imageUrl"`
			ImageWidth   int    `json:"imageWidth"`
			ImageHeight  int    `json:"imageHeight"`
			ThumbnailURL string `json:"thumbnailUrl"`
			Domain       string `json:"domain"`
		} `json:"images"`
	}
	headers := map[string]string{"X-API-KEY": s.APIKey}
	body := map[string]any{"q": query, "num": limit + overfetchMargin}
	if err := s.HTTP.DoJSON(ctx, "POST", s.endpoint(), headers, body, &resp); err != nil {
		return nil, err
	}

	var out []models.Candidate
	for _, r := range resp.Images {
		if r.ImageURL == "" || isStockDomain(r.Domain) {
			continue
		}
		out = append(out, models.Candidate{
			URL:          r.ImageURL,
			ThumbnailURL: r.ThumbnailURL,
			Title:        r.Title,
			Source:       image_search.SourceWeb,
			Width:        r.ImageWidth,
			Height:       r.ImageHeight,
			Domain:       r.Domain,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func isStockDomain(domain string) bool {
	d := strings.ToLower(domain)
	for _, s := range stockDomains {
		if strings.Contains(d, s) {
			return true
		}
	}
	return false
}
