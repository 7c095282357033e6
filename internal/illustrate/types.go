package illustrate

// SourceHint steers which search strategy runs for a query.
type SourceHint string

const (
	HintEncyclopedic SourceHint = "encyclopedic"
	HintWeb          SourceHint = "web"
	HintEither       SourceHint = "either"
)

// Query is one derived search phrase. Index is the extraction position;
// earlier queries are tried first and the list is truncated to the
// configured maximum.
type Query struct {
	Text  string
	Hint  SourceHint
	Index int
}

// ExtractionResult carries the derived queries plus the message-level
// hint queries fall back to when they carry none of their own.
type ExtractionResult struct {
	Queries []Query
	Hint    SourceHint
}

// State is the terminal outcome of one pipeline run for one message.
type State string

const (
	StateAnnotated State = "annotated"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)
