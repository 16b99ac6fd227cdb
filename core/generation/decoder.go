package generation

import (
	"fmt"
	"strings"
)

const framePrefix = "data:"

// DecodeError reports a frame that could not be parsed. Decoding stops at the
// first malformed frame; a malformed frame is never silently dropped.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FrameDecoder turns incrementally delivered stream fragments into discrete
// protocol events. A delivery boundary may split a logical frame, so the
// decoder keeps the trailing incomplete line buffered between calls.
//
// The decoder does no I/O. Feeding the same byte sequence through it yields
// the same event sequence regardless of where the fragment boundaries fall.
type FrameDecoder struct {
	buffer string
}

// Feed appends a fragment and returns every event completed by it, in frame
// order. Lines without the frame prefix (SSE comments, blank separators) are
// skipped. On a malformed frame the events decoded so far are returned
// together with a *DecodeError; the decoder must not be fed again after that.
func (d *FrameDecoder) Feed(fragment string) ([]Event, error) {
	d.buffer += fragment

	var events []Event
	for {
		newline := strings.IndexByte(d.buffer, '\n')
		if newline < 0 {
			return events, nil
		}

		line := strings.TrimSpace(strings.TrimSuffix(d.buffer[:newline], "\r"))
		d.buffer = d.buffer[newline+1:]

		if !strings.HasPrefix(line, framePrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, framePrefix))
		if payload == "" {
			continue
		}

		event, err := parseEvent(payload)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Pending reports whether an incomplete frame is still buffered. A stream
// that ends while Pending is true was truncated mid-frame.
func (d *FrameDecoder) Pending() bool {
	return strings.TrimSpace(d.buffer) != ""
}
