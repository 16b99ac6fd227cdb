package events

const (
	// KindTurnStarted identifies the start of a conversation turn.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies successful turn completion.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnCancelled identifies turn cancellation.
	KindTurnCancelled Kind = "turn_state.cancelled"
	// KindTurnFailed identifies turn failure.
	KindTurnFailed Kind = "turn_state.failed"
)

// TurnStarted marks the start of a new conversation turn.
type TurnStarted struct {
	Base
	SessionID string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(sessionID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), SessionID: sessionID}
}

// TurnCompleted marks successful completion of the current turn.
type TurnCompleted struct {
	Base
	SessionID string
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(sessionID string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), SessionID: sessionID}
}

// TurnCancelled marks cancellation of the current turn. PartialText is the
// text accumulated before cancellation took effect.
type TurnCancelled struct {
	Base
	SessionID   string
	PartialText string
}

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled(sessionID, partialText string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), SessionID: sessionID, PartialText: partialText}
}

// TurnFailed marks failure of the current turn. Message is the generic
// user-facing failure text, never the raw error detail.
type TurnFailed struct {
	Base
	SessionID string
	Message   string
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(sessionID, message string) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), SessionID: sessionID, Message: message}
}
