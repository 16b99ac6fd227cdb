package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/functiomed/assistant-core/core/events"
	"github.com/functiomed/assistant-core/core/generation"
)

// genericFailureMessage is what the transcript shows when a turn fails. The
// original error detail is logged, never shown verbatim.
const genericFailureMessage = "Sorry, something went wrong while answering your question. Please try again."

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionOpen
	sessionCompleted
	sessionCancelled
	sessionFailed
)

func (s sessionState) String() string {
	switch s {
	case sessionIdle:
		return "idle"
	case sessionOpen:
		return "open"
	case sessionCompleted:
		return "completed"
	case sessionCancelled:
		return "cancelled"
	case sessionFailed:
		return "failed"
	}
	return "unknown"
}

// streamSession owns one in-flight generation turn: it drives the transport,
// accumulates the growing answer into the message it owns, and finalizes the
// message exactly once with a terminal outcome.
type streamSession struct {
	id        string
	messageID string

	stream generation.EventStream
	store  *messageStore
	emit   eventEmitter

	// onCompleted receives the final answer text after a successful turn;
	// the engine uses it to hand the text to the narrator.
	onCompleted    func(text string)
	warnCredential func()

	cancelStream context.CancelFunc
	cancelled    atomic.Bool
	finalized    atomic.Bool

	mu       sync.Mutex
	state    sessionState
	chunks   []string
	metadata MessageMetadata

	done chan struct{}
}

func newStreamSession(
	messageID string,
	stream generation.EventStream,
	store *messageStore,
	emit eventEmitter,
	onCompleted func(string),
	warnCredential func(),
) *streamSession {
	if emit == nil {
		emit = noopEventEmitter
	}
	if onCompleted == nil {
		onCompleted = func(string) {}
	}
	if warnCredential == nil {
		warnCredential = func() {}
	}

	return &streamSession{
		id:             uuid.NewString(),
		messageID:      messageID,
		stream:         stream,
		store:          store,
		emit:           emit,
		onCompleted:    onCompleted,
		warnCredential: warnCredential,
		state:          sessionIdle,
		done:           make(chan struct{}),
	}
}

func (s *streamSession) run(ctx context.Context) {
	defer close(s.done)

	ctx, span := tracer.Start(ctx, "stream session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	s.setState(sessionOpen)
	s.emit(events.NewTurnStarted(s.id))
	s.emit(events.NewAssistantResponseStarted(s.messageID))

	for event, err := range s.stream.Events(ctx) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.finalizeCancelled(s.partialText())
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.finalizeFailed(err)
			return
		}

		// Cooperative cancellation: checked after every stream read.
		if s.cancelled.Load() {
			break
		}

		switch event := event.(type) {
		case generation.Metadata:
			s.applyMetadata(event)
		case generation.Chunk:
			s.applyChunk(event)
		case generation.Done:
			s.finalizeCompleted(event)
			return
		case generation.Cancelled:
			partialText := event.PartialText
			if partialText == "" {
				partialText = s.partialText()
			}
			s.finalizeCancelled(partialText)
			return
		case generation.ErrorEvent:
			s.finalizeFailed(fmt.Errorf("server-side generation failed: %s", event.Message))
			return
		}
	}

	if s.cancelled.Load() {
		s.finalizeCancelled(s.partialText())
		return
	}

	err := fmt.Errorf("stream ended without a terminal event")
	span.RecordError(err)
	s.finalizeFailed(err)
}

// Cancel signals the cancellation token and aborts the underlying transfer.
// The session finalizes with whatever partial text had accumulated; the
// terminal transition happens exactly once even when a server-sent terminal
// event races the abort.
func (s *streamSession) Cancel() {
	if s == nil || !s.cancelled.CompareAndSwap(false, true) {
		return
	}

	if s.cancelStream != nil {
		s.cancelStream()
	}
}

func (s *streamSession) AwaitCompletion() {
	if s == nil {
		return
	}
	<-s.done
}

func (s *streamSession) State() sessionState {
	if s == nil {
		return sessionIdle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *streamSession) IsStreaming() bool {
	return s.State() == sessionOpen
}

// PartialText returns the concatenation of every chunk applied so far, in
// arrival order.
func (s *streamSession) PartialText() string {
	if s == nil {
		return ""
	}
	return s.partialText()
}

func (s *streamSession) setState(state sessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *streamSession) partialText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.chunks, "")
}

func (s *streamSession) applyMetadata(metadata generation.Metadata) {
	s.mu.Lock()
	s.metadata.Sources = metadata.Sources
	s.metadata.ConfidenceScore = metadata.ConfidenceScore
	s.metadata.DetectedLanguage = metadata.DetectedLanguage
	snapshot := s.metadata
	s.mu.Unlock()

	s.store.update(s.messageID, func(message *Message) {
		message.Metadata = &snapshot
	})
	s.emit(events.NewAssistantResponseMetadata(s.messageID, metadata))
}

func (s *streamSession) applyChunk(chunk generation.Chunk) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk.Text)
	partialText := strings.Join(s.chunks, "")
	s.mu.Unlock()

	s.store.update(s.messageID, func(message *Message) {
		message.Text = partialText
	})
	s.emit(events.NewAssistantResponseSegment(s.messageID, chunk.Text))
	s.emit(events.NewAssistantResponseUpdated(s.messageID, partialText))
}

func (s *streamSession) finalizeCompleted(done generation.Done) {
	if !s.finalized.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if done.Metrics != (generation.Metrics{}) {
		metrics := done.Metrics
		s.metadata.Metrics = &metrics
	}
	snapshot := s.metadata
	s.mu.Unlock()

	s.setState(sessionCompleted)

	// The server-sent full text is ground truth, even when it differs from
	// the locally accumulated buffer.
	s.store.update(s.messageID, func(message *Message) {
		message.Text = done.FullText
		message.Streaming = false
		message.Metadata = &snapshot
	})

	s.emit(events.NewAssistantResponseFinal(s.messageID, done.FullText))
	s.emit(events.NewTurnCompleted(s.id))

	s.onCompleted(done.FullText)
}

func (s *streamSession) finalizeCancelled(partialText string) {
	if !s.finalized.CompareAndSwap(false, true) {
		return
	}

	s.setState(sessionCancelled)
	s.store.update(s.messageID, func(message *Message) {
		message.Text = partialText
		message.Streaming = false
		message.Cancelled = true
	})

	s.emit(events.NewTurnCancelled(s.id, partialText))
}

func (s *streamSession) finalizeFailed(cause error) {
	if !s.finalized.CompareAndSwap(false, true) {
		return
	}

	logger.Error("generation stream failed", "session_id", s.id, "error", cause)

	s.setState(sessionFailed)
	s.store.update(s.messageID, func(message *Message) {
		message.Text = genericFailureMessage
		message.Streaming = false
	})

	if indicatesMissingNarrationCredential(cause) {
		s.warnCredential()
	}

	s.emit(events.NewTurnFailed(s.id, genericFailureMessage))
}

// indicatesMissingNarrationCredential recognizes backend failures caused by
// an unconfigured narration service credential, the one error detail that is
// surfaced specifically instead of the generic failure message.
func indicatesMissingNarrationCredential(err error) bool {
	if err == nil {
		return false
	}

	detail := strings.ToLower(err.Error())
	if !strings.Contains(detail, "tts") && !strings.Contains(detail, "narration") && !strings.Contains(detail, "speech") {
		return false
	}
	return strings.Contains(detail, "api key") ||
		strings.Contains(detail, "credential") ||
		strings.Contains(detail, "unauthorized")
}
