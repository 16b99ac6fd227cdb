package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/functiomed/assistant-core/core/narration"
)

func TestSynthesizeReadsBinaryBody(t *testing.T) {
	audioBytes := []byte{0x49, 0x44, 0x33, 0x04}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tts/generate" {
			t.Errorf("expected generate path, got %q", r.URL.Path)
		}

		var request synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if request.Text != "Hello world" {
			t.Errorf("unexpected text %q", request.Text)
		}
		if request.Language == nil || *request.Language != "EN" {
			t.Errorf("expected language EN, got %v", request.Language)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audioBytes)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Synthesize(context.Background(), "Hello world", narration.WithLanguage("EN"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.MIMEType != "audio/mpeg" {
		t.Fatalf("expected mime type audio/mpeg, got %q", result.MIMEType)
	}
	if !bytes.Equal(result.Clip().Data, audioBytes) {
		t.Fatalf("unexpected audio payload")
	}
}

func TestSynthesizeFollowsAudioReference(t *testing.T) {
	audioBytes := []byte{0x52, 0x49, 0x46, 0x46}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/tts/generate":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(synthesisReference{
				AudioURL:    "/static/audio/answer.mp3",
				DurationSec: 2.5,
				Format:      "mp3",
			})
		case "/static/audio/answer.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write(audioBytes)
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Synthesize(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Equal(result.Clip().Data, audioBytes) {
		t.Fatalf("unexpected audio payload")
	}
	if result.DurationSec != 2.5 {
		t.Fatalf("expected duration 2.5s, got %f", result.DurationSec)
	}
}

func TestSynthesizeReportsMissingCredential(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid api key", status)
		}))

		_, err := NewClient(server.URL).Synthesize(context.Background(), "Hello world")
		if !errors.Is(err, narration.ErrMissingCredential) {
			t.Fatalf("status %d: expected ErrMissingCredential, got %v", status, err)
		}
		server.Close()
	}
}

func TestSynthesizeReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "synthesis backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Synthesize(context.Background(), "Hello world")
	if err == nil {
		t.Fatalf("expected an error for a failing backend")
	}
	if errors.Is(err, narration.ErrMissingCredential) {
		t.Fatalf("expected a generic failure, not a credential error")
	}
}
