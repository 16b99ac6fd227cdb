package generation

import (
	"errors"
	"testing"
)

const sampleFrames = `data: {"type": "metadata", "query": "Was ist Arthrose?", "detected_language": "DE", "confidence_score": 0.82}` + "\n\n" +
	`data: {"type": "chunk", "text": "Arthrose ", "index": 0}` + "\n\n" +
	`data: {"type": "chunk", "text": "ist eine Gelenkerkrankung.", "index": 1}` + "\n\n" +
	`data: {"type": "done", "full_text": "Arthrose ist eine Gelenkerkrankung.", "metrics": {"total_time_ms": 812.5, "tokens_used": 64}}` + "\n\n"

func feedAll(t *testing.T, fragments []string) []Event {
	t.Helper()

	decoder := FrameDecoder{}
	collected := []Event{}
	for _, fragment := range fragments {
		events, err := decoder.Feed(fragment)
		if err != nil {
			t.Fatalf("expected no decode error, got %v", err)
		}
		collected = append(collected, events...)
	}
	if decoder.Pending() {
		t.Fatalf("expected no pending partial frame after final fragment")
	}
	return collected
}

func assertSampleEvents(t *testing.T, events []Event) {
	t.Helper()

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	metadata, ok := events[0].(Metadata)
	if !ok {
		t.Fatalf("expected first event to be metadata, got %T", events[0])
	}
	if metadata.DetectedLanguage != "DE" {
		t.Fatalf("expected detected language DE, got %q", metadata.DetectedLanguage)
	}

	first, ok := events[1].(Chunk)
	if !ok {
		t.Fatalf("expected second event to be a chunk, got %T", events[1])
	}
	if first.Text != "Arthrose " || first.Index != 0 {
		t.Fatalf("unexpected first chunk: %+v", first)
	}

	done, ok := events[3].(Done)
	if !ok {
		t.Fatalf("expected last event to be done, got %T", events[3])
	}
	if done.FullText != "Arthrose ist eine Gelenkerkrankung." {
		t.Fatalf("unexpected full text %q", done.FullText)
	}
	if done.Metrics.TokensUsed != 64 {
		t.Fatalf("expected 64 tokens used, got %d", done.Metrics.TokensUsed)
	}
}

func TestFrameDecoderDecodesWholeStream(t *testing.T) {
	assertSampleEvents(t, feedAll(t, []string{sampleFrames}))
}

func TestFrameDecoderIsSplitInvariant(t *testing.T) {
	for split := 1; split < len(sampleFrames); split++ {
		events := feedAll(t, []string{sampleFrames[:split], sampleFrames[split:]})
		if len(events) != 4 {
			t.Fatalf("split at %d: expected 4 events, got %d", split, len(events))
		}
	}

	bytewise := make([]string, 0, len(sampleFrames))
	for i := range sampleFrames {
		bytewise = append(bytewise, sampleFrames[i:i+1])
	}
	assertSampleEvents(t, feedAll(t, bytewise))
}

func TestFrameDecoderHoldsIncompleteFrame(t *testing.T) {
	decoder := FrameDecoder{}

	events, err := decoder.Feed(`data: {"type": "chunk", "te`)
	if err != nil {
		t.Fatalf("expected no error for an incomplete frame, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events from an incomplete frame, got %d", len(events))
	}
	if !decoder.Pending() {
		t.Fatalf("expected pending partial frame")
	}

	events, err = decoder.Feed("xt\": \"hi\", \"index\": 0}\n\n")
	if err != nil {
		t.Fatalf("expected no error completing the frame, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event after completion, got %d", len(events))
	}
	if chunk := events[0].(Chunk); chunk.Text != "hi" {
		t.Fatalf("expected chunk text %q, got %q", "hi", chunk.Text)
	}
}

func TestFrameDecoderSkipsNonDataLines(t *testing.T) {
	decoder := FrameDecoder{}

	events, err := decoder.Feed(": keep-alive\n\nevent: ping\n\ndata: {\"type\": \"chunk\", \"text\": \"ok\", \"index\": 0}\n\n")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
}

func TestFrameDecoderReportsMalformedPayload(t *testing.T) {
	decoder := FrameDecoder{}

	events, err := decoder.Feed("data: {\"type\": \"chunk\", \"text\": \"ok\", \"index\": 0}\n\ndata: {not json}\n\n")
	if err == nil {
		t.Fatalf("expected a decode error for a malformed payload")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected a DecodeError, got %T", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the event decoded before the malformed frame, got %d", len(events))
	}
}

func TestFrameDecoderReportsUnknownFrameType(t *testing.T) {
	decoder := FrameDecoder{}

	if _, err := decoder.Feed("data: {\"type\": \"telemetry\"}\n\n"); err == nil {
		t.Fatalf("expected a decode error for an unknown frame type")
	}
}

func TestFrameDecoderDecodesTerminalVariants(t *testing.T) {
	decoder := FrameDecoder{}

	events, err := decoder.Feed("data: {\"type\": \"cancelled\", \"partial_text\": \"Arth\"}\n\ndata: {\"type\": \"error\", \"error\": \"model overloaded\"}\n\n")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if cancelled := events[0].(Cancelled); cancelled.PartialText != "Arth" {
		t.Fatalf("expected partial text %q, got %q", "Arth", cancelled.PartialText)
	}
	if errorEvent := events[1].(ErrorEvent); errorEvent.Message != "model overloaded" {
		t.Fatalf("expected error message %q, got %q", "model overloaded", errorEvent.Message)
	}
}
