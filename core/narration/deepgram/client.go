// Package deepgram synthesizes narration through the Deepgram speak
// websocket API, collecting the streamed PCM frames into one playable
// resource.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/functiomed/assistant-core/core/audio"
	"github.com/functiomed/assistant-core/core/narration"
)

type Client struct {
	voice    deepgramVoice
	encoding audio.EncodingInfo
}

func NewClient(voice deepgramVoice) (*Client, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	return &Client{voice: voice, encoding: audio.GetDefaultEncodingInfo()}, nil
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...narration.SynthesisOption) (*narration.Audio, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request.voice", string(c.voice)),
			attribute.Int("request.text_length", len(text)),
		),
	)
	defer span.End()

	options := narration.SynthesisOptions{EncodingInfo: c.encoding}
	for _, opt := range opts {
		opt(&options)
	}

	conn, err := connectWebsocket(ctx, c.voice, options.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer conn.Close()

	for _, msg := range []websocketMessage{
		{Type: "Speak", Text: text},
		{Type: "Flush"},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("failed to send websocket %s message: %w", msg.Type, err)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	var data []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("websocket read failed before speech completed: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			data = append(data, msg...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}

			if parsedMsg.Type == "Flushed" {
				if len(data) == 0 {
					return nil, fmt.Errorf("speech completed without audio")
				}
				span.SetAttributes(attribute.Int("response.audio_bytes", len(data)))
				return narration.NewAudio(data, "audio/l16", options.EncodingInfo), nil
			}
		}
	}
}

func connectWebsocket(ctx context.Context, voice deepgramVoice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found: %w", narration.ErrMissingCredential)
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}
