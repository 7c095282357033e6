package wikipedia

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"illustro/internal/httpx"
	image_search "illustro/tools/image_search"
	"illustro/tools/image_search/models"
)

// Search implements the encyclopedic-media strategy: article full-text
// search on Wikipedia (primary language, then a fallback language when
// the primary yields too few results), topped up from the Wikimedia
// Commons file search when still short of the requested count.
type Search struct {
	Lang              string
	FallbackLang      string
	MinArticleResults int
	MinImageWidth     int
	HTTP              *httpx.Client

	// Overridable endpoints for tests. Empty means the public APIs.
	APIBase     string // e.g. "https://%s.wikipedia.org/w/api.php", %s = language
	CommonsBase string
}

func (s Search) apiURL(lang string) string {
	base := s.APIBase
	if base == "" {
		base = "https://%s.wikipedia.org/w/api.php"
	}
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, lang)
	}
	return base
}

func (s Search) commonsURL() string {
	if s.CommonsBase != "" {
		return s.CommonsBase
	}
	return "https://commons.wikimedia.org/w/api.php"
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	out, err := s.searchArticles(ctx, s.Lang, query, limit)
	if err != nil {
		return nil, err
	}
	if len(out) < s.MinArticleResults && s.FallbackLang != "" && s.FallbackLang != s.Lang {
		more, err := s.searchArticles(ctx, s.FallbackLang, query, limit)
		if err == nil {
			out = append(out, more...)
		}
	}
	if len(out) < limit {
		more, err := s.searchCommons(ctx, query, limit-len(out))
		if err == nil {
			out = append(out, more...)
		}
	}

	out = models.Deduplicate(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type articlePage struct {
	Title    string `json:"title"`
	Index    int    `json:"index"`
	Original *struct {
		Source string `json:"source"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"original"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

// searchArticles runs a ranked full-text article search and keeps only
// pages exposing a directly linkable raster lead image. Server relevance
// order (the "index" field) is preserved.
func (s Search) searchArticles(ctx context.Context, lang, query string, limit int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", fmt.Sprint(limit))
	params.Set("prop", "pageimages")
	params.Set("piprop", "original|thumbnail")
	params.Set("pithumbsize", "640")
	params.Set("format", "json")

	var resp struct {
		Query struct {
			Pages map[string]articlePage `json:"pages"`
		} `json:"query"`
	}
	if err := s.HTTP.DoJSON(ctx, "GET", s.apiURL(lang)+"?"+params.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}

	pages := make([]articlePage, 0, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	var out []models.Candidate
	for _, p := range pages {
		if p.Original == nil || !isRasterURL(p.Original.Source) {
			continue
		}
		c := models.Candidate{
			URL:    p.Original.Source,
			Title:  p.Title,
			Source: image_search.SourceWikipedia,
			Width:  p.Original.Width,
			Height: p.Original.Height,
			Domain: lang + ".wikipedia.org",
		}
		if p.Thumbnail != nil {
			c.ThumbnailURL = p.Thumbnail.Source
		}
		out = append(out, c)
	}
	return out, nil
}

// searchCommons runs a file-namespace search on Wikimedia Commons and
// resolves file metadata, keeping raster images above the width floor.
func (s Search) searchCommons(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrnamespace", "6")
	params.Set("gsrlimit", fmt.Sprint(limit))
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|size|mime")
	params.Set("iiurlwidth", "640")
	params.Set("format", "json")

	var resp struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				Index     int    `json:"index"`
				ImageInfo []struct {
					URL      string `json:"url"`
					ThumbURL string `json:"thumburl"`
					Width    int    `json:"width"`
					Height   int    `json:"height"`
					Mime     string `json:"mime"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := s.HTTP.DoJSON(ctx, "GET", s.commonsURL()+"?"+params.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}

	type entry struct {
		index int
		cand  models.Candidate
	}
	var entries []entry
	for _, p := range resp.Query.Pages {
		if len(p.ImageInfo) == 0 {
			continue
		}
		info := p.ImageInfo[0]
		if !strings.HasPrefix(info.Mime, "image/") || info.Mime == "image/svg+xml" {
			continue
		}
		if info.Width < s.MinImageWidth {
			continue
		}
		entries = append(entries, entry{index: p.Index, cand: models.Candidate{
			URL:          info.URL,
			ThumbnailURL: info.ThumbURL,
			Title:        strings.TrimPrefix(p.Title, "File:"),
			Source:       image_search.SourceWikipedia,
			Width:        info.Width,
			Height:       info.Height,
			Domain:       "commons.wikimedia.org",
		}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	out := make([]models.Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.cand)
	}
	return out, nil
}

// isRasterURL rejects vector images, which cannot be inlined for the
// vision model or rendered as plain <img> thumbnails reliably.
func isRasterURL(u string) bool {
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return !strings.HasSuffix(lower, ".svg")
}
