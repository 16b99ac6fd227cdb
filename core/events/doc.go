// Package events defines the typed engine event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - assistant_response.*
//   - turn_state.*
//   - narration.*
//   - engine.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text/state for the current stream/turn.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): answer
//     generation started for a turn.
//   - AssistantResponseSegment (assistant_response.segment): streamed answer
//     text segment.
//   - AssistantResponseUpdated (assistant_response.updated): monotonically
//     growing partial-text snapshot.
//   - AssistantResponseMetadata (assistant_response.metadata): retrieval
//     annotations (sources, confidence, detected language).
//   - AssistantResponseFinal (assistant_response.final): answer stream is
//     complete; carries the authoritative full text.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): current turn started.
//   - TurnCompleted (turn_state.completed): current turn completed
//     successfully.
//   - TurnCancelled (turn_state.cancelled): current turn was cancelled;
//     carries the partial text kept for the message.
//   - TurnFailed (turn_state.failed): current turn failed; carries the
//     generic user-facing message.
//
// narration events
//
//   - NarrationStarted (narration.started): playback started.
//   - NarrationEnded (narration.ended): playback ended or was stopped.
//   - NarrationBlocked (narration.blocked): audio is ready but held back by
//     the platform autoplay policy.
//   - NarrationPendingCleared (narration.pending_cleared): held-back audio
//     was discarded without playing.
//
// engine events
//
//   - ConfigurationWarning (engine.configuration_warning): one-time
//     user-facing configuration warning.
package events
