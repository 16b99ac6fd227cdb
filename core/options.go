package conversation

import (
	"time"

	"github.com/functiomed/assistant-core/core/audio"
	"github.com/functiomed/assistant-core/core/generation"
	"github.com/functiomed/assistant-core/core/narration"
)

type EngineOption func(*Engine)

// GenerationClient produces streamed answers for user queries.
type GenerationClient interface {
	GenerateStream(query, language string, opts ...generation.RequestOption) generation.EventStream
}

func WithGenerationClient(client GenerationClient) EngineOption {
	return func(e *Engine) { e.generator = client }
}

func WithNarrationClient(client narration.Synthesizer) EngineOption {
	return func(e *Engine) { e.synthesizer = client }
}

func WithAudioPlayer(player audio.Player) EngineOption {
	return func(e *Engine) { e.player = player }
}

// WithLanguage sets the answer and narration language tag (DE, EN or FR).
func WithLanguage(language string) EngineOption {
	return func(e *Engine) { e.language = language }
}

func WithVoiceEnabled(enabled bool) EngineOption {
	return func(e *Engine) { e.voiceEnabled = enabled }
}

// WithGreeting sets the text spoken and shown when the conversation opens.
func WithGreeting(text string) EngineOption {
	return func(e *Engine) { e.greeting = text }
}

func WithAudioCache(capacity int, ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cache = newAudioCache(capacity, ttl) }
}

// WithRequestOptions sets retrieval options applied to every query sent
// through the engine.
func WithRequestOptions(opts ...generation.RequestOption) EngineOption {
	return func(e *Engine) { e.requestOptions = opts }
}

type OpenOptions struct {
	onResponse             func(segment string)
	onPartialResponse      func(text string)
	onResponseEnd          func(text string)
	onMetadata             func(metadata generation.Metadata)
	onCancellation         func(partialText string)
	onFailure              func(message string)
	onWarning              func(message string)
	onSpeakingStateChanged func(isSpeaking bool)
	onPendingNarration     func(pending bool)
}

type OpenOption func(*OpenOptions)

// WithResponseCallback registers a callback for streamed answer segments in
// arrival order.
func WithResponseCallback(callback func(segment string)) OpenOption {
	return func(o *OpenOptions) {
		o.onResponse = callback
	}
}

// WithPartialResponseCallback registers a callback for the full partial-text
// snapshot after each applied segment. The snapshot only ever grows until
// the turn finalizes.
func WithPartialResponseCallback(callback func(text string)) OpenOption {
	return func(o *OpenOptions) {
		o.onPartialResponse = callback
	}
}

// WithResponseEndCallback registers a callback for the authoritative full
// answer text once the turn completed.
func WithResponseEndCallback(callback func(text string)) OpenOption {
	return func(o *OpenOptions) {
		o.onResponseEnd = callback
	}
}

// WithMetadataCallback registers a callback for retrieval annotations
// (sources, confidence, detected language).
func WithMetadataCallback(callback func(metadata generation.Metadata)) OpenOption {
	return func(o *OpenOptions) {
		o.onMetadata = callback
	}
}

// WithCancellationCallback registers a callback for turn cancellation. It
// receives the text accumulated before the cancellation took effect.
func WithCancellationCallback(callback func(partialText string)) OpenOption {
	return func(o *OpenOptions) {
		o.onCancellation = callback
	}
}

// WithFailureCallback registers a callback for turn failure. It receives the
// generic user-facing failure message, never the raw error detail.
func WithFailureCallback(callback func(message string)) OpenOption {
	return func(o *OpenOptions) {
		o.onFailure = callback
	}
}

// WithWarningCallback registers a callback for one-time configuration
// warnings such as a missing narration credential.
func WithWarningCallback(callback func(message string)) OpenOption {
	return func(o *OpenOptions) {
		o.onWarning = callback
	}
}

// WithSpeakingStateChangedCallback registers a callback for narration
// playback state updates.
func WithSpeakingStateChangedCallback(callback func(isSpeaking bool)) OpenOption {
	return func(o *OpenOptions) {
		o.onSpeakingStateChanged = callback
	}
}

// WithPendingNarrationCallback registers a callback for the held-back
// narration indicator: true when audio is waiting on a user gesture, false
// when it was played or discarded.
func WithPendingNarrationCallback(callback func(pending bool)) OpenOption {
	return func(o *OpenOptions) {
		o.onPendingNarration = callback
	}
}
