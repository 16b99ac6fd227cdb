package generation

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded frame of the streaming chat protocol.
//
// Exactly one of the terminal events ([Done], [Cancelled], [ErrorEvent]) is
// emitted per stream and it is always the last event observed.
type Event interface {
	streamEvent()
}

// Metadata carries retrieval annotations sent before the answer text starts
// streaming.
type Metadata struct {
	Query            string
	Sources          []Source
	ConfidenceScore  float64
	DetectedLanguage string
}

// Chunk carries one incremental fragment of the answer text.
type Chunk struct {
	Text  string
	Index int
	Total int
}

// Done carries the authoritative full answer text and generation metrics.
type Done struct {
	FullText string
	Metrics  Metrics
}

// Cancelled reports server-side cancellation together with whatever partial
// text the server had produced. PartialText may be empty when the server
// cancelled before streaming any words.
type Cancelled struct {
	PartialText string
}

// ErrorEvent reports a server-side generation failure.
type ErrorEvent struct {
	Message string
}

func (Metadata) streamEvent()   {}
func (Chunk) streamEvent()      {}
func (Done) streamEvent()       {}
func (Cancelled) streamEvent()  {}
func (ErrorEvent) streamEvent() {}

// Source describes one retrieved document chunk backing the answer.
type Source struct {
	Index    int     `json:"index"`
	Document string  `json:"document"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Chunk    string  `json:"chunk"`
}

// Metrics describes server-side timing and token usage for one generation.
type Metrics struct {
	TotalTimeMS      float64 `json:"total_time_ms"`
	RetrievalTimeMS  float64 `json:"retrieval_time_ms"`
	GenerationTimeMS float64 `json:"generation_time_ms"`
	TokensUsed       int     `json:"tokens_used"`
}

type framePayload struct {
	Type string `json:"type"`

	Query            string   `json:"query"`
	Sources          []Source `json:"sources"`
	ConfidenceScore  float64  `json:"confidence_score"`
	DetectedLanguage string   `json:"detected_language"`

	Text  string `json:"text"`
	Index int    `json:"index"`
	Total int    `json:"total"`

	FullText string   `json:"full_text"`
	Metrics  *Metrics `json:"metrics"`

	PartialText string `json:"partial_text"`

	Error string `json:"error"`
}

func parseEvent(payload string) (Event, error) {
	var frame framePayload
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, &DecodeError{Line: payload, Err: fmt.Errorf("error unmarshalling frame payload: %w", err)}
	}

	switch frame.Type {
	case "metadata":
		return Metadata{
			Query:            frame.Query,
			Sources:          frame.Sources,
			ConfidenceScore:  frame.ConfidenceScore,
			DetectedLanguage: frame.DetectedLanguage,
		}, nil
	case "chunk":
		return Chunk{Text: frame.Text, Index: frame.Index, Total: frame.Total}, nil
	case "done":
		done := Done{FullText: frame.FullText}
		if frame.Metrics != nil {
			done.Metrics = *frame.Metrics
		}
		return done, nil
	case "cancelled":
		return Cancelled{PartialText: frame.PartialText}, nil
	case "error":
		return ErrorEvent{Message: frame.Error}, nil
	}

	return nil, &DecodeError{Line: payload, Err: fmt.Errorf("unknown frame type %q", frame.Type)}
}
