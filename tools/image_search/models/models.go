package models

// Candidate is one discovered image plus its search metadata. Candidates
// are ephemeral: they live for a single pipeline run and only the chosen
// one is persisted (as an annotation). Identity for dedup is the exact URL.
type Candidate struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Title        string `json:"title,omitempty"`
	Source       string `json:"source"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Query        string `json:"query,omitempty"`
}

// Deduplicate removes candidates sharing a URL, keeping the earliest
// occurrence. Order is otherwise preserved.
func Deduplicate(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Interleave merges two ordered result lists position by position
// (a[0], b[0], a[1], b[1], ...) so neither source dominates the front
// of the combined list. Relative order within each list is preserved.
func Interleave(a, b []Candidate) []Candidate {
	out := make([]Candidate, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}
