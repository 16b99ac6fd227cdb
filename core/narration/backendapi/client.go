// Package backendapi synthesizes narration through the assistant backend's
// TTS endpoint. The endpoint either returns the audio binary directly or a
// JSON reference to a downloadable audio resource; both shapes are handled.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/functiomed/assistant-core/core/audio"
	"github.com/functiomed/assistant-core/core/narration"
)

const generatePath = "/api/v1/tts/generate"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey sets the narration service credential. Falls back to the
// FUNCTIOMED_API_KEY environment variable when unset.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		if apiKey, ok := os.LookupEnv("FUNCTIOMED_API_KEY"); ok {
			client.apiKey = apiKey
		}
	}

	return client
}

type synthesisRequest struct {
	Text     string  `json:"text"`
	Language *string `json:"language,omitempty"`
}

type synthesisReference struct {
	AudioURL         string  `json:"audio_url"`
	DurationSec      float64 `json:"duration_sec"`
	GenerationTimeMS float64 `json:"generation_time_ms"`
	Language         string  `json:"language"`
	Format           string  `json:"format"`
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...narration.SynthesisOption) (*narration.Audio, error) {
	ctx, span := tracer.Start(ctx, "synthesize narration")
	defer span.End()

	options := narration.SynthesisOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	reqBody := synthesisRequest{Text: text}
	if options.Language != "" {
		reqBody.Language = &options.Language
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	span.SetAttributes(
		attribute.String("request.url", req.URL.String()),
		attribute.Int("request.text_length", len(text)),
		attribute.String("request.language", options.Language),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		err := fmt.Errorf("synthesis rejected with status %s: %w", resp.Status, narration.ErrMissingCredential)
		span.RecordError(err)
		return nil, err
	case resp.StatusCode != http.StatusOK:
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var reference synthesisReference
		if err := json.NewDecoder(resp.Body).Decode(&reference); err != nil {
			err = fmt.Errorf("error unmarshalling synthesis reference: %w", err)
			span.RecordError(err)
			return nil, err
		}
		return c.download(ctx, reference)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading audio body: %w", err)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.audio_bytes", len(data)))

	return narration.NewAudio(data, contentType, audio.EncodingInfo{}), nil
}

func (c *Client) download(ctx context.Context, reference synthesisReference) (*narration.Audio, error) {
	ctx, span := tracer.Start(ctx, "download narration audio")
	defer span.End()

	audioURL := reference.AudioURL
	if strings.HasPrefix(audioURL, "/") {
		audioURL = c.baseURL + audioURL
	}
	span.SetAttributes(attribute.String("request.url", audioURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error downloading audio: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status downloading audio: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading audio body: %w", err)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.audio_bytes", len(data)))

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" && reference.Format != "" {
		mimeType = "audio/" + reference.Format
	}

	result := narration.NewAudio(data, mimeType, audio.EncodingInfo{})
	result.DurationSec = reference.DurationSec
	return result, nil
}
