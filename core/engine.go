package conversation

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/functiomed/assistant-core/core/audio"
	"github.com/functiomed/assistant-core/core/events"
	"github.com/functiomed/assistant-core/core/generation"
	"github.com/functiomed/assistant-core/core/narration"
)

// missingCredentialWarning is the one-time user-facing notice shown when the
// narration service rejects the configured credential. Raw error detail
// stays in the logs.
const missingCredentialWarning = "Voice output is unavailable: the narration service credential is missing or invalid."

// Engine drives one chat widget instance: it streams answers into a message
// store, narrates finalized answers aloud and exposes the conversation state
// to the embedding surface through callbacks. One engine holds at most one
// open turn; sending a new question cancels the previous one.
type Engine struct {
	generator   GenerationClient
	synthesizer narration.Synthesizer
	player      audio.Player
	cache       *audioCache

	language       string
	voiceEnabled   bool
	greeting       string
	requestOptions []generation.RequestOption

	store    *messageStore
	narrator *audioNarrator
	emit     eventEmitter

	openOptions OpenOptions
	baseContext context.Context

	mu      sync.Mutex
	session *streamSession

	opened    bool
	closed    bool
	closeOnce sync.Once
	warnOnce  sync.Once
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		language:     "DE",
		voiceEnabled: true,
		store:        newMessageStore(),
		emit:         noopEventEmitter,
		baseContext:  context.Background(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = newAudioCache(defaultAudioCacheCapacity, defaultAudioCacheTTL)
	}

	return e
}

// Open starts the engine and wires the consumer callbacks.
//
// ctx is used as the base context for every turn and narration started by
// this engine; cancelling it closes the engine.
//
// Contract: call Open at most once per engine instance.
func (e *Engine) Open(ctx context.Context, opts ...OpenOption) {
	e.mu.Lock()
	if e.opened || e.closed {
		e.mu.Unlock()
		log.Println("Warning: engine already opened or closed, skipping Open")
		return
	}
	e.opened = true

	e.openOptions = OpenOptions{}
	for _, opt := range opts {
		opt(&e.openOptions)
	}
	e.emit = newCallbackEventEmitter(e.openOptions)
	e.baseContext = ctx

	e.narrator = newAudioNarrator(e.synthesizer, e.player, e.cache, e.emit, e.warnCredential)
	e.narrator.SetLanguage(e.language)
	e.narrator.SetEnabled(e.voiceEnabled)

	greeting := e.greeting
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.Close()
	}()

	if greeting != "" {
		e.store.append(Message{ID: uuid.NewString(), Role: RoleAssistant, Text: greeting})
		go e.narrator.Prefetch(ctx, greeting)
	}
}

// Greet narrates the configured greeting. Call it from the user gesture that
// reveals the widget so playback is not refused by the autoplay policy.
func (e *Engine) Greet() {
	e.mu.Lock()
	greeting := e.greeting
	narrator := e.narrator
	ctx := e.baseContext
	e.mu.Unlock()

	if greeting == "" || narrator == nil {
		return
	}
	narrator.Narrate(ctx, greeting)
}

// Send submits a user question and opens a new streamed turn for the answer.
// Any turn still open is cancelled first; there is no queue. It returns the
// ID of the assistant message the answer streams into.
func (e *Engine) Send(query string) (string, error) {
	e.mu.Lock()
	if !e.opened || e.closed {
		e.mu.Unlock()
		return "", errors.New("engine is not open")
	}
	if e.generator == nil {
		e.mu.Unlock()
		return "", errors.New("no generation client configured")
	}

	previous := e.session
	narrator := e.narrator
	e.mu.Unlock()

	previous.Cancel()
	narrator.Stop()

	_, span := tracer.Start(e.baseContext, "send query")
	defer span.End()

	e.store.append(Message{ID: uuid.NewString(), Role: RoleUser, Text: query})

	messageID := uuid.NewString()
	e.store.append(Message{ID: messageID, Role: RoleAssistant, Streaming: true})
	span.SetAttributes(attribute.String("message.id", messageID))

	stream := e.generator.GenerateStream(query, e.language, e.requestOptions...)
	streamCtx, cancelStream := context.WithCancel(e.baseContext)

	session := newStreamSession(
		messageID,
		stream,
		e.store,
		e.emit,
		e.narrateAnswer,
		e.warnCredential,
	)
	session.cancelStream = cancelStream

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()

	go session.run(streamCtx)

	return messageID, nil
}

// narrateAnswer hands one completed answer to the narrator. It runs on the
// session goroutine after the turn finalized, so narration never delays the
// text conversation.
func (e *Engine) narrateAnswer(text string) {
	e.mu.Lock()
	narrator := e.narrator
	ctx := e.baseContext
	e.mu.Unlock()

	narrator.Narrate(ctx, text)
}

// warnCredential surfaces the missing-credential notice at most once per
// engine, whether it was detected by a turn failure or by synthesis.
func (e *Engine) warnCredential() {
	e.warnOnce.Do(func() {
		e.emit(events.NewConfigurationWarning(missingCredentialWarning))
	})
}

// CancelTurn cancels the open turn, keeping the partial text received so
// far. It is a no-op when no turn is streaming.
func (e *Engine) CancelTurn() {
	e.currentSession().Cancel()
}

// Messages returns a point-in-time snapshot of the conversation.
func (e *Engine) Messages() []Message {
	return e.store.Snapshot()
}

func (e *Engine) IsStreaming() bool {
	return e.currentSession().IsStreaming()
}

// PartialText returns the answer text accumulated by the open turn so far.
func (e *Engine) PartialText() string {
	return e.currentSession().PartialText()
}

// SetVoiceEnabled turns narration on or off. Disabling stops playback and
// discards held-back audio; the text conversation is unaffected.
func (e *Engine) SetVoiceEnabled(enabled bool) {
	e.mu.Lock()
	e.voiceEnabled = enabled
	narrator := e.narrator
	e.mu.Unlock()

	narrator.SetEnabled(enabled)
}

func (e *Engine) IsVoiceEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voiceEnabled
}

func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	narrator := e.narrator
	e.mu.Unlock()
	return narrator.IsSpeaking()
}

// StopSpeaking halts narration playback without touching the open turn.
func (e *Engine) StopSpeaking() {
	e.mu.Lock()
	narrator := e.narrator
	e.mu.Unlock()
	narrator.Stop()
}

// HasPendingNarration reports whether synthesized audio is waiting on a user
// gesture to play.
func (e *Engine) HasPendingNarration() bool {
	e.mu.Lock()
	narrator := e.narrator
	e.mu.Unlock()
	return narrator.HasPending()
}

// RetryPendingNarration replays audio held back by the platform autoplay
// policy. Call it in direct response to a user gesture. It reports whether
// anything was retried.
func (e *Engine) RetryPendingNarration() bool {
	e.mu.Lock()
	narrator := e.narrator
	ctx := e.baseContext
	e.mu.Unlock()

	if narrator == nil {
		return false
	}
	return narrator.RetryPending(ctx)
}

// Close cancels the open turn, stops narration and releases cached audio.
// It is idempotent and blocks until the open turn has finalized.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		session := e.session
		narrator := e.narrator
		e.mu.Unlock()

		session.Cancel()
		narrator.Stop()
		narrator.clearPending()
		session.AwaitCompletion()
		e.cache.Close()
	})
}

func (e *Engine) currentSession() *streamSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}
