package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const streamReadBufferSize = 4096

// EventStream is a lazy, finite sequence of protocol events produced by one
// streaming generation request.
type EventStream interface {
	Events(ctx context.Context) func(func(Event, error) bool)
}

// GenerateStream prepares a streaming generation request. No I/O happens
// until the returned stream's Events sequence is iterated; cancelling the
// iteration context aborts the underlying transfer.
func (c *Client) GenerateStream(query string, language string, opts ...RequestOption) EventStream {
	return &Stream{
		client:   c,
		query:    query,
		language: language,
		opts:     opts,
	}
}

var _ EventStream = (*Stream)(nil)

type Stream struct {
	client   *Client
	query    string
	language string
	opts     []RequestOption
}

func (s *Stream) Events(ctx context.Context) func(func(Event, error) bool) {
	requestToFirstFrameTime := time.Time{}

	return func(yield func(Event, error) bool) {
		ctx, span := tracer.Start(ctx, "generate answer stream")
		defer span.End()

		reqBody, err := buildChatRequest(s.query, s.language, s.opts)
		if err != nil {
			span.RecordError(err)
			yield(nil, err)
			return
		}
		span.SetAttributes(attribute.String("request.query", reqBody.Query))

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+chatStreamPath, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		s.client.setHeaders(req)
		req.Header.Set("Accept", "text/event-stream")

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		requestToFirstFrameTime = time.Now()
		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(nil, &TransportError{Err: err})
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
			span.RecordError(err)
			yield(nil, err)
			return
		}

		decoder := FrameDecoder{}
		buffer := make([]byte, streamReadBufferSize)
		frames := 0
		for {
			n, readErr := resp.Body.Read(buffer)
			if n > 0 {
				if frames == 0 && !requestToFirstFrameTime.IsZero() {
					span.SetAttributes(attribute.Float64("response.request_to_first_frame_time", time.Since(requestToFirstFrameTime).Seconds()))
					span.AddEvent("received first frame")
					requestToFirstFrameTime = time.Time{}
				}

				events, decodeErr := decoder.Feed(string(buffer[:n]))
				for _, event := range events {
					frames++
					if !yield(event, nil) {
						return
					}
				}
				if decodeErr != nil {
					span.RecordError(decodeErr)
					yield(nil, decodeErr)
					return
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					span.SetAttributes(attribute.Int("response.frames", frames))
					return
				}
				if ctx.Err() != nil {
					// Transport abort requested by the caller; not a failure.
					yield(nil, ctx.Err())
					return
				}
				readErr = fmt.Errorf("error reading streamed response: %w", readErr)
				span.RecordError(readErr)
				yield(nil, &TransportError{Err: readErr})
				return
			}
		}
	}
}
