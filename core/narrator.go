package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/functiomed/assistant-core/core/audio"
	"github.com/functiomed/assistant-core/core/events"
	"github.com/functiomed/assistant-core/core/narration"
)

type narratorState int

const (
	narratorIdle narratorState = iota
	narratorSynthesizing
	narratorPlaying
	narratorBlocked
)

func (s narratorState) String() string {
	switch s {
	case narratorIdle:
		return "idle"
	case narratorSynthesizing:
		return "synthesizing"
	case narratorPlaying:
		return "playing"
	case narratorBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// audioNarrator reads finalized assistant answers aloud. It keeps at most one
// playback alive at a time, caches synthesized audio by content fingerprint,
// and parks playback refused by the platform in a single pending slot until a
// user gesture retries it. Narration failures never reach the text
// conversation; they are logged and the answer stays silent.
type audioNarrator struct {
	synthesizer narration.Synthesizer
	player      audio.Player
	cache       *audioCache
	pending     *pendingNarration

	emit           eventEmitter
	warnCredential func()

	mu       sync.Mutex
	enabled  bool
	language string
	state    narratorState

	// synthToken identifies the latest synthesis request; an older request
	// finding a different token on return discards its result silently.
	synthToken  string
	synthCancel context.CancelFunc

	// playToken identifies the current playback so a stale onEnded callback
	// cannot flip the state after a newer playback started.
	playToken   string
	playingText string
}

func newAudioNarrator(
	synthesizer narration.Synthesizer,
	player audio.Player,
	cache *audioCache,
	emit eventEmitter,
	warnCredential func(),
) *audioNarrator {
	if emit == nil {
		emit = noopEventEmitter
	}
	if warnCredential == nil {
		warnCredential = func() {}
	}
	if cache == nil {
		cache = newAudioCache(defaultAudioCacheCapacity, defaultAudioCacheTTL)
	}

	return &audioNarrator{
		synthesizer:    synthesizer,
		player:         player,
		cache:          cache,
		pending:        &pendingNarration{},
		emit:           emit,
		warnCredential: warnCredential,
		enabled:        true,
	}
}

func (n *audioNarrator) SetLanguage(language string) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.language = language
}

// SetEnabled turns narration on or off. Disabling stops active playback,
// discards held-back audio and cancels any synthesis in flight.
func (n *audioNarrator) SetEnabled(enabled bool) {
	if n == nil {
		return
	}

	n.mu.Lock()
	n.enabled = enabled
	cancel := n.synthCancel
	if !enabled {
		n.synthCancel = nil
		n.synthToken = ""
	}
	n.mu.Unlock()

	if enabled {
		return
	}

	if cancel != nil {
		cancel()
	}
	n.Stop()
	n.clearPending()
}

func (n *audioNarrator) Enabled() bool {
	if n == nil {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

func (n *audioNarrator) IsSpeaking() bool {
	if n == nil {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == narratorPlaying
}

func (n *audioNarrator) HasPending() bool {
	if n == nil {
		return false
	}
	return n.pending.Occupied()
}

// Narrate synthesizes (or resolves from cache) and plays the given answer
// text. It blocks until playback has started, was refused, or synthesis
// failed. A second Narrate while an earlier synthesis is still in flight
// cancels the earlier one.
func (n *audioNarrator) Narrate(ctx context.Context, text string) {
	if n == nil || n.synthesizer == nil || n.player == nil {
		return
	}

	cleaned := stripMarkup(text)
	if cleaned == "" {
		return
	}

	ctx, span := tracer.Start(ctx, "narrate")
	defer span.End()

	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	language := n.language
	n.mu.Unlock()

	key := narrationKey(language, cleaned)
	span.SetAttributes(attribute.String("narration.fingerprint", key))

	if resource, ok := n.cache.Get(key); ok && !resource.Released() {
		span.SetAttributes(attribute.Bool("narration.cache_hit", true))
		n.play(ctx, cleaned, key, resource)
		return
	}

	resource, ok := n.synthesize(ctx, cleaned, key, language)
	if !ok {
		span.SetStatus(codes.Error, "synthesis failed")
		return
	}
	n.play(ctx, cleaned, key, resource)
}

// Prefetch synthesizes the given text into the cache without playing it, so
// a later Narrate for the same text starts immediately.
func (n *audioNarrator) Prefetch(ctx context.Context, text string) {
	if n == nil || n.synthesizer == nil {
		return
	}

	cleaned := stripMarkup(text)
	if cleaned == "" {
		return
	}

	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	language := n.language
	n.mu.Unlock()

	key := narrationKey(language, cleaned)
	if resource, ok := n.cache.Get(key); ok && !resource.Released() {
		return
	}

	n.synthesize(ctx, cleaned, key, language)
}

// synthesize requests audio for the cleaned text and stores it in the cache.
// It returns false when the request failed or was superseded by a newer one.
func (n *audioNarrator) synthesize(ctx context.Context, cleaned, key, language string) (*narration.Audio, bool) {
	synthCtx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()

	n.mu.Lock()
	if n.synthCancel != nil {
		n.synthCancel()
	}
	n.synthCancel = cancel
	n.synthToken = token
	if n.state == narratorIdle {
		n.state = narratorSynthesizing
	}
	n.mu.Unlock()

	resource, err := n.synthesizer.Synthesize(synthCtx, cleaned, narration.WithLanguage(language))

	n.mu.Lock()
	superseded := n.synthToken != token
	if !superseded {
		n.synthCancel = nil
		n.synthToken = ""
		if n.state == narratorSynthesizing {
			n.state = narratorIdle
		}
	}
	enabled := n.enabled
	n.mu.Unlock()
	cancel()

	if superseded {
		resource.Release()
		return nil, false
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		if errors.Is(err, narration.ErrMissingCredential) {
			n.warnCredential()
		}
		logger.Error("narration synthesis failed", "error", err)
		return nil, false
	}

	resource.Fingerprint = key
	n.cache.Put(key, resource)

	if !enabled {
		return nil, false
	}
	return resource, true
}

// play starts playback of one resolved resource, replacing whatever was
// playing before. Refused playback is parked in the pending slot.
func (n *audioNarrator) play(ctx context.Context, text, key string, resource *narration.Audio) {
	clip := resource.Clip()
	if clip.IsZero() {
		return
	}

	n.Stop()

	token := uuid.NewString()
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	n.playToken = token
	n.playingText = text
	n.mu.Unlock()

	err := n.player.Play(ctx, clip, func() { n.playbackEnded(token) })
	if err != nil {
		n.mu.Lock()
		if n.playToken == token {
			n.playToken = ""
			n.playingText = ""
		}
		n.mu.Unlock()

		if errors.Is(err, audio.ErrPlaybackBlocked) {
			n.pending.Set(text, key, resource)
			n.setState(narratorBlocked)
			n.emit(events.NewNarrationBlocked(text))
			return
		}

		logger.Error("narration playback failed", "error", err)
		n.setState(narratorIdle)
		return
	}

	n.setState(narratorPlaying)
	n.emit(events.NewNarrationStarted(text))
}

// playbackEnded handles the natural end of one playback. Stale callbacks
// from a replaced playback are ignored.
func (n *audioNarrator) playbackEnded(token string) {
	n.mu.Lock()
	if n.playToken != token {
		n.mu.Unlock()
		return
	}
	text := n.playingText
	n.playToken = ""
	n.playingText = ""
	n.state = narratorIdle
	n.mu.Unlock()

	n.emit(events.NewNarrationEnded(text))
}

// Stop halts active playback. It is idempotent and does nothing when nothing
// is playing.
func (n *audioNarrator) Stop() {
	if n == nil || n.player == nil {
		return
	}

	n.mu.Lock()
	if n.state != narratorPlaying {
		n.mu.Unlock()
		return
	}
	text := n.playingText
	n.playToken = ""
	n.playingText = ""
	n.state = narratorIdle
	n.mu.Unlock()

	if err := n.player.Stop(); err != nil {
		logger.Error("failed to stop narration playback", "error", err)
	}
	n.emit(events.NewNarrationEnded(text))
}

// RetryPending replays held-back audio in response to a user gesture. It
// reports whether anything was retried. A resource released by cache
// eviction while parked is re-synthesized from its origin text.
func (n *audioNarrator) RetryPending(ctx context.Context) bool {
	if n == nil {
		return false
	}

	text, key, resource, ok := n.pending.Take()
	if !ok {
		return false
	}

	n.mu.Lock()
	if n.state == narratorBlocked {
		n.state = narratorIdle
	}
	enabled := n.enabled
	language := n.language
	n.mu.Unlock()

	if !enabled {
		n.emit(events.NewNarrationPendingCleared())
		return false
	}

	if resource.Released() {
		resource, ok = n.synthesize(ctx, text, key, language)
		if !ok {
			return false
		}
	}

	n.play(ctx, text, key, resource)
	return true
}

func (n *audioNarrator) clearPending() {
	if n == nil {
		return
	}

	if !n.pending.Occupied() {
		return
	}
	n.pending.Clear()
	n.mu.Lock()
	if n.state == narratorBlocked {
		n.state = narratorIdle
	}
	n.mu.Unlock()
	n.emit(events.NewNarrationPendingCleared())
}

func (n *audioNarrator) setState(state narratorState) {
	n.mu.Lock()
	n.state = state
	n.mu.Unlock()
}

// narrationKey fingerprints the cleaned narration text, salted with the
// narration language so the same answer in two languages caches separately.
func narrationKey(language, cleaned string) string {
	digest := sha256.Sum256([]byte(language + "\x00" + cleaned))
	return hex.EncodeToString(digest[:])
}
