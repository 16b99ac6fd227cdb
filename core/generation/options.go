package generation

import "github.com/functiomed/assistant-core/internal/utils"

const (
	// StyleStandard requests full-length answers.
	StyleStandard = "standard"
	// StyleConcise requests shortened answers.
	StyleConcise = "concise"
)

// RequestOptions hold the optional retrieval knobs of a generation request.
// The zero value leaves every knob to the server default.
type RequestOptions struct {
	Category   []string
	SourceType *string
	TopK       *int
	MinScore   *float64
	Style      *string
}

type RequestOption func(*RequestOptions)

// WithCategories restricts retrieval to the given document categories.
func WithCategories(categories ...string) RequestOption {
	return func(o *RequestOptions) { o.Category = categories }
}

// WithSourceType restricts retrieval to one source type.
func WithSourceType(sourceType string) RequestOption {
	return func(o *RequestOptions) { o.SourceType = utils.Ptr(sourceType) }
}

// WithTopK sets the number of context chunks retrieved (server accepts 1-10).
func WithTopK(topK int) RequestOption {
	return func(o *RequestOptions) { o.TopK = utils.Ptr(topK) }
}

// WithMinScore sets the minimum similarity score for retrieved chunks
// (server accepts 0.0-1.0).
func WithMinScore(minScore float64) RequestOption {
	return func(o *RequestOptions) { o.MinScore = utils.Ptr(minScore) }
}

// WithStyle sets the response style ([StyleStandard] or [StyleConcise]).
func WithStyle(style string) RequestOption {
	return func(o *RequestOptions) { o.Style = utils.Ptr(style) }
}
