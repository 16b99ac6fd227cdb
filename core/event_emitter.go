package conversation

import events "github.com/functiomed/assistant-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OpenOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseUpdated:
			if opts.onPartialResponse != nil {
				opts.onPartialResponse(typedEvent.Text)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Text)
			}
		case events.AssistantResponseMetadata:
			if opts.onMetadata != nil {
				opts.onMetadata(typedEvent.Metadata)
			}
		case events.TurnCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation(typedEvent.PartialText)
			}
		case events.TurnFailed:
			if opts.onFailure != nil {
				opts.onFailure(typedEvent.Message)
			}
		case events.ConfigurationWarning:
			if opts.onWarning != nil {
				opts.onWarning(typedEvent.Message)
			}
		case events.NarrationStarted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(true)
			}
		case events.NarrationEnded:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.NarrationBlocked:
			if opts.onPendingNarration != nil {
				opts.onPendingNarration(true)
			}
		case events.NarrationPendingCleared:
			if opts.onPendingNarration != nil {
				opts.onPendingNarration(false)
			}
		}
	}
}
