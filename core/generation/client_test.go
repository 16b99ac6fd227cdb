package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateDecodesAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/" {
			t.Errorf("expected chat path, got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer token header, got %q", got)
		}

		var request chatRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if request.Query != "Was ist Arthrose?" {
			t.Errorf("unexpected query %q", request.Query)
		}
		if request.TopK == nil || *request.TopK != 5 {
			t.Errorf("expected top_k 5, got %v", request.TopK)
		}

		json.NewEncoder(w).Encode(Answer{
			Answer:           "Arthrose ist eine Gelenkerkrankung.",
			DetectedLanguage: "DE",
			ConfidenceScore:  0.9,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("test-key"))
	answer, err := client.Generate(context.Background(), "Was ist Arthrose?", "DE", WithTopK(5))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Answer != "Arthrose ist eine Gelenkerkrankung." {
		t.Fatalf("unexpected answer %q", answer.Answer)
	}
	if answer.DetectedLanguage != "DE" {
		t.Fatalf("expected detected language DE, got %q", answer.DetectedLanguage)
	}
}

func TestGenerateRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Generate(context.Background(), "query", "EN")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected a TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", transportErr.StatusCode)
	}
}

func TestBuildChatRequestValidatesBounds(t *testing.T) {
	for name, opts := range map[string][]RequestOption{
		"top_k too low":      {WithTopK(0)},
		"top_k too high":     {WithTopK(11)},
		"min_score negative": {WithMinScore(-0.1)},
		"min_score too high": {WithMinScore(1.1)},
		"unknown style":      {WithStyle("verbose")},
	} {
		if _, err := buildChatRequest("query", "DE", opts); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}

	if _, err := buildChatRequest("  ", "DE", nil); err == nil {
		t.Fatalf("expected a validation error for a blank query")
	}

	request, err := buildChatRequest("query", "", []RequestOption{WithStyle(StyleConcise)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if request.Language != nil {
		t.Fatalf("expected no language field for an empty language tag")
	}
}

func TestGenerateStreamYieldsEventsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/stream" {
			t.Errorf("expected stream path, got %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sampleFrames))
	}))
	defer server.Close()

	stream := NewClient(server.URL).GenerateStream("Was ist Arthrose?", "DE")

	collected := []Event{}
	for event, err := range stream.Events(context.Background()) {
		if err != nil {
			t.Fatalf("expected no stream error, got %v", err)
		}
		collected = append(collected, event)
	}
	assertSampleEvents(t, collected)
}

func TestGenerateStreamReportsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	stream := NewClient(server.URL).GenerateStream("query", "EN")

	var streamErr error
	for _, err := range stream.Events(context.Background()) {
		streamErr = err
	}

	var transportErr *TransportError
	if !errors.As(streamErr, &transportErr) {
		t.Fatalf("expected a TransportError, got %v", streamErr)
	}
}

func TestGenerateStreamAbortReportsContextError(t *testing.T) {
	firstFrameSent := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\": \"chunk\", \"text\": \"Hel\", \"index\": 0}\n\n"))
		w.(http.Flusher).Flush()
		close(firstFrameSent)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := NewClient(server.URL).GenerateStream("query", "EN")

	partial := ""
	var streamErr error
	for event, err := range stream.Events(ctx) {
		if err != nil {
			streamErr = err
			break
		}
		if chunk, ok := event.(Chunk); ok {
			partial += chunk.Text
			<-firstFrameSent
			cancel()
		}
	}

	if partial != "Hel" {
		t.Fatalf("expected partial text %q, got %q", "Hel", partial)
	}
	if !errors.Is(streamErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", streamErr)
	}
}

func TestHealthDecodesReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/health" {
			t.Errorf("expected health path, got %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Health{Service: "chat", Status: "healthy"})
	}))
	defer server.Close()

	health, err := NewClient(server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("expected healthy status, got %q", health.Status)
	}
}
