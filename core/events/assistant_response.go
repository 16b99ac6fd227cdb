package events

import "github.com/functiomed/assistant-core/core/generation"

const (
	// KindAssistantResponseStarted identifies the start of answer generation.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseSegment identifies streamed assistant response text.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseUpdated identifies a full partial-text snapshot.
	KindAssistantResponseUpdated Kind = "assistant_response.updated"
	// KindAssistantResponseMetadata identifies retrieval annotations.
	KindAssistantResponseMetadata Kind = "assistant_response.metadata"
	// KindAssistantResponseFinal identifies assistant response stream completion.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseStarted marks the start of answer generation for a turn.
type AssistantResponseStarted struct {
	Base
	MessageID string
}

// NewAssistantResponseStarted creates an assistant response started event.
func NewAssistantResponseStarted(messageID string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), MessageID: messageID}
}

// AssistantResponseSegment carries a streamed assistant response text segment.
type AssistantResponseSegment struct {
	Base
	MessageID string
	Segment   string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(messageID, segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), MessageID: messageID, Segment: segment}
}

// AssistantResponseUpdated carries the monotonically growing partial text
// snapshot after a segment was applied.
type AssistantResponseUpdated struct {
	Base
	MessageID string
	Text      string
}

// NewAssistantResponseUpdated creates an assistant response updated event.
func NewAssistantResponseUpdated(messageID, text string) AssistantResponseUpdated {
	return AssistantResponseUpdated{Base: NewBase(KindAssistantResponseUpdated), MessageID: messageID, Text: text}
}

// AssistantResponseMetadata carries retrieval annotations for the answer.
type AssistantResponseMetadata struct {
	Base
	MessageID string
	Metadata  generation.Metadata
}

// NewAssistantResponseMetadata creates an assistant response metadata event.
func NewAssistantResponseMetadata(messageID string, metadata generation.Metadata) AssistantResponseMetadata {
	return AssistantResponseMetadata{Base: NewBase(KindAssistantResponseMetadata), MessageID: messageID, Metadata: metadata}
}

// AssistantResponseFinal marks assistant response stream completion and
// carries the authoritative full text.
type AssistantResponseFinal struct {
	Base
	MessageID string
	Text      string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(messageID, text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), MessageID: messageID, Text: text}
}
