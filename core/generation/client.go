package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	chatPath       = "/api/v1/chat/"
	chatStreamPath = "/api/v1/chat/stream"
	chatHealthPath = "/api/v1/chat/health"
)

// TransportError reports a network failure or a non-success HTTP status from
// the generation endpoint.
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation transport failed: %v", e.Err)
	}
	return fmt.Sprintf("generation request failed: non-OK HTTP status %s", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to the assistant backend's generation endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithHTTPClient replaces the default instrumented HTTP client.
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
	return client
}

type chatRequest struct {
	Query      string   `json:"query"`
	Language   *string  `json:"language,omitempty"`
	Category   []string `json:"category,omitempty"`
	SourceType *string  `json:"source_type,omitempty"`
	TopK       *int     `json:"top_k,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
	Style      *string  `json:"style,omitempty"`
}

func buildChatRequest(query string, language string, opts []RequestOption) (chatRequest, error) {
	options := RequestOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if strings.TrimSpace(query) == "" {
		return chatRequest{}, fmt.Errorf("query must not be empty")
	}
	if options.TopK != nil && (*options.TopK < 1 || *options.TopK > 10) {
		return chatRequest{}, fmt.Errorf("top_k must be between 1 and 10, got %d", *options.TopK)
	}
	if options.MinScore != nil && (*options.MinScore < 0 || *options.MinScore > 1) {
		return chatRequest{}, fmt.Errorf("min_score must be between 0.0 and 1.0, got %f", *options.MinScore)
	}
	if options.Style != nil && *options.Style != StyleStandard && *options.Style != StyleConcise {
		return chatRequest{}, fmt.Errorf("unknown response style %q", *options.Style)
	}

	request := chatRequest{
		Query:      query,
		Category:   options.Category,
		SourceType: options.SourceType,
		TopK:       options.TopK,
		MinScore:   options.MinScore,
		Style:      options.Style,
	}
	if language != "" {
		request.Language = &language
	}
	return request, nil
}

// Answer is the non-streaming generation response.
type Answer struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	Query            string   `json:"query"`
	DetectedLanguage string   `json:"detected_language"`
	RetrievalResults int      `json:"retrieval_results"`
	Citations        []string `json:"citations"`
	ConfidenceScore  float64  `json:"confidence_score"`
	Metrics          Metrics  `json:"metrics"`
}

// Generate requests a complete answer in a single round trip.
func (c *Client) Generate(ctx context.Context, query string, language string, opts ...RequestOption) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "generate answer")
	defer span.End()

	reqBody, err := buildChatRequest(query, language, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	c.setHeaders(req)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
		span.RecordError(err)
		return nil, err
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		err = fmt.Errorf("error unmarshalling answer: %w", err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("response.confidence_score", answer.ConfidenceScore),
		attribute.String("response.detected_language", answer.DetectedLanguage),
		attribute.Int("usage.tokens", answer.Metrics.TokensUsed),
	)
	return &answer, nil
}

// Health is the generation service health report.
type Health struct {
	Service    string         `json:"service"`
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// Health probes the generation service.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+chatHealthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("error sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("error unmarshalling health response: %w", err)
	}
	return &health, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
