package events

const (
	// KindNarrationStarted identifies the start of narration playback.
	KindNarrationStarted Kind = "narration.started"
	// KindNarrationEnded identifies the end of narration playback.
	KindNarrationEnded Kind = "narration.ended"
	// KindNarrationBlocked identifies narration audio held back by the
	// platform autoplay policy, awaiting a user gesture.
	KindNarrationBlocked Kind = "narration.blocked"
	// KindNarrationPendingCleared identifies removal of held-back narration
	// audio without it being played.
	KindNarrationPendingCleared Kind = "narration.pending_cleared"
)

// NarrationStarted marks the start of playback for one narrated text.
type NarrationStarted struct {
	Base
	Text string
}

// NewNarrationStarted creates a narration started event.
func NewNarrationStarted(text string) NarrationStarted {
	return NarrationStarted{Base: NewBase(KindNarrationStarted), Text: text}
}

// NarrationEnded marks the end of playback, whether it finished naturally or
// was stopped.
type NarrationEnded struct {
	Base
	Text string
}

// NewNarrationEnded creates a narration ended event.
func NewNarrationEnded(text string) NarrationEnded {
	return NarrationEnded{Base: NewBase(KindNarrationEnded), Text: text}
}

// NarrationBlocked signals that synthesized audio is ready but could not be
// played; the consumer should show an affordance that retries playback in
// direct response to a user gesture.
type NarrationBlocked struct {
	Base
	Text string
}

// NewNarrationBlocked creates a narration blocked event.
func NewNarrationBlocked(text string) NarrationBlocked {
	return NarrationBlocked{Base: NewBase(KindNarrationBlocked), Text: text}
}

// NarrationPendingCleared signals that held-back audio was discarded.
type NarrationPendingCleared struct{ Base }

// NewNarrationPendingCleared creates a narration pending cleared event.
func NewNarrationPendingCleared() NarrationPendingCleared {
	return NarrationPendingCleared{Base: NewBase(KindNarrationPendingCleared)}
}
