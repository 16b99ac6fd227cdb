package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/functiomed/assistant-core/core/generation"
	"github.com/functiomed/assistant-core/core/narration"
)

type fakeGenerator struct {
	mu      sync.Mutex
	streams []*scriptedStream
	queries []string
}

func (f *fakeGenerator) GenerateStream(query, language string, opts ...generation.RequestOption) generation.EventStream {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	if len(f.streams) == 0 {
		return &scriptedStream{}
	}
	stream := f.streams[0]
	f.streams = f.streams[1:]
	return stream
}

func completedStream(chunks []string, fullText string) *scriptedStream {
	events := []generation.Event{}
	for i, chunk := range chunks {
		events = append(events, generation.Chunk{Text: chunk, Index: i})
	}
	events = append(events, generation.Done{FullText: fullText})
	return &scriptedStream{events: events}
}

func TestEngineSendStreamsAnswer(t *testing.T) {
	generator := &fakeGenerator{streams: []*scriptedStream{
		completedStream([]string{"Hel", "lo ", "world"}, "Hello world"),
	}}

	engine := NewEngine(WithGenerationClient(generator), WithLanguage("EN"))
	defer engine.Close()

	finalText := make(chan string, 1)
	engine.Open(context.Background(), WithResponseEndCallback(func(text string) {
		finalText <- text
	}))

	messageID, err := engine.Send("What is up?")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case text := <-finalText:
		if text != "Hello world" {
			t.Fatalf("expected final text %q, got %q", "Hello world", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the answer")
	}
	engine.currentSession().AwaitCompletion()

	messages := engine.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected a user and an assistant message, got %d", len(messages))
	}
	if messages[0].Role != RoleUser || messages[0].Text != "What is up?" {
		t.Fatalf("unexpected user message %+v", messages[0])
	}
	if messages[1].ID != messageID || messages[1].Text != "Hello world" {
		t.Fatalf("unexpected assistant message %+v", messages[1])
	}
	if engine.IsStreaming() {
		t.Fatalf("expected streaming to end after completion")
	}
}

func TestEngineSendBeforeOpenFails(t *testing.T) {
	engine := NewEngine(WithGenerationClient(&fakeGenerator{}))

	if _, err := engine.Send("hello"); err == nil {
		t.Fatalf("expected an error before Open")
	}
}

func TestEngineSendWithoutGeneratorFails(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()
	engine.Open(context.Background())

	if _, err := engine.Send("hello"); err == nil {
		t.Fatalf("expected an error without a generation client")
	}
}

func TestEngineNewSendCancelsOpenTurn(t *testing.T) {
	first := &scriptedStream{
		events:  []generation.Event{generation.Chunk{Text: "Hel", Index: 0}},
		gate:    true,
		started: make(chan struct{}),
	}
	second := completedStream([]string{"Second"}, "Second")
	generator := &fakeGenerator{streams: []*scriptedStream{first, second}}

	engine := NewEngine(WithGenerationClient(generator))
	defer engine.Close()
	engine.Open(context.Background())

	firstID, err := engine.Send("first question")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	select {
	case <-first.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the first stream")
	}
	firstSession := engine.currentSession()

	secondID, err := engine.Send("second question")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	firstSession.AwaitCompletion()
	engine.currentSession().AwaitCompletion()

	var firstMessage, secondMessage Message
	for _, message := range engine.Messages() {
		switch message.ID {
		case firstID:
			firstMessage = message
		case secondID:
			secondMessage = message
		}
	}

	if !firstMessage.Cancelled {
		t.Fatalf("expected the first turn to be cancelled")
	}
	if firstMessage.Text != "Hel" {
		t.Fatalf("expected the first turn to keep its partial text, got %q", firstMessage.Text)
	}
	if secondMessage.Text != "Second" {
		t.Fatalf("expected the second turn to complete, got %q", secondMessage.Text)
	}
}

func TestEngineCancelTurnKeepsPartialText(t *testing.T) {
	stream := &scriptedStream{
		events:  []generation.Event{generation.Chunk{Text: "Hel", Index: 0}},
		gate:    true,
		started: make(chan struct{}),
	}
	generator := &fakeGenerator{streams: []*scriptedStream{stream}}

	engine := NewEngine(WithGenerationClient(generator))
	defer engine.Close()

	cancelledText := make(chan string, 1)
	engine.Open(context.Background(), WithCancellationCallback(func(partialText string) {
		cancelledText <- partialText
	}))

	if _, err := engine.Send("question"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	select {
	case <-stream.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the stream")
	}

	engine.CancelTurn()
	engine.currentSession().AwaitCompletion()

	select {
	case partial := <-cancelledText:
		if partial != "Hel" {
			t.Fatalf("expected partial text %q, got %q", "Hel", partial)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the cancellation callback")
	}
}

func TestEngineNarratesCompletedAnswer(t *testing.T) {
	generator := &fakeGenerator{streams: []*scriptedStream{
		completedStream([]string{"Hello world"}, "Hello world"),
	}}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	engine := NewEngine(
		WithGenerationClient(generator),
		WithNarrationClient(synthesizer),
		WithAudioPlayer(player),
	)
	defer engine.Close()
	engine.Open(context.Background())

	if _, err := engine.Send("question"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	engine.currentSession().AwaitCompletion()

	if synthesizer.calls() != 1 {
		t.Fatalf("expected the completed answer to be synthesized, got %d calls", synthesizer.calls())
	}
	if plays, _ := player.counts(); plays != 1 {
		t.Fatalf("expected one narration playback, got %d", plays)
	}
	if !engine.IsSpeaking() {
		t.Fatalf("expected the engine to report active narration")
	}

	engine.StopSpeaking()
	if engine.IsSpeaking() {
		t.Fatalf("expected narration to stop")
	}
}

func TestEngineVoiceDisabledSkipsNarration(t *testing.T) {
	generator := &fakeGenerator{streams: []*scriptedStream{
		completedStream([]string{"Hello world"}, "Hello world"),
	}}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	engine := NewEngine(
		WithGenerationClient(generator),
		WithNarrationClient(synthesizer),
		WithAudioPlayer(player),
		WithVoiceEnabled(false),
	)
	defer engine.Close()
	engine.Open(context.Background())

	if _, err := engine.Send("question"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	engine.currentSession().AwaitCompletion()

	if synthesizer.calls() != 0 {
		t.Fatalf("expected no synthesis with voice disabled, got %d calls", synthesizer.calls())
	}

	message := engine.Messages()[1]
	if message.Text != "Hello world" {
		t.Fatalf("expected the text conversation to be unaffected, got %q", message.Text)
	}
}

func TestEngineCredentialWarningFiresOnce(t *testing.T) {
	generator := &fakeGenerator{streams: []*scriptedStream{
		completedStream([]string{"one"}, "one"),
		completedStream([]string{"two"}, "two"),
	}}
	synthesizer := &fakeSynthesizer{err: narration.ErrMissingCredential}

	engine := NewEngine(
		WithGenerationClient(generator),
		WithNarrationClient(synthesizer),
		WithAudioPlayer(&fakePlayer{}),
	)
	defer engine.Close()

	warnings := 0
	engine.Open(context.Background(), WithWarningCallback(func(message string) {
		warnings++
	}))

	for _, query := range []string{"first", "second"} {
		if _, err := engine.Send(query); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		engine.currentSession().AwaitCompletion()
	}

	if warnings != 1 {
		t.Fatalf("expected exactly one configuration warning, got %d", warnings)
	}
}

func TestEngineRetryPendingNarration(t *testing.T) {
	generator := &fakeGenerator{streams: []*scriptedStream{
		completedStream([]string{"Hello world"}, "Hello world"),
	}}
	player := &fakePlayer{blocked: true}

	engine := NewEngine(
		WithGenerationClient(generator),
		WithNarrationClient(&fakeSynthesizer{}),
		WithAudioPlayer(player),
	)
	defer engine.Close()

	pendingStates := make(chan bool, 2)
	engine.Open(context.Background(), WithPendingNarrationCallback(func(pending bool) {
		pendingStates <- pending
	}))

	if _, err := engine.Send("question"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	engine.currentSession().AwaitCompletion()

	if !engine.HasPendingNarration() {
		t.Fatalf("expected held-back narration after blocked playback")
	}
	select {
	case pending := <-pendingStates:
		if !pending {
			t.Fatalf("expected the pending indicator to raise")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the pending indicator")
	}

	player.setBlocked(false)
	if !engine.RetryPendingNarration() {
		t.Fatalf("expected the retry to play the held-back narration")
	}
	if engine.HasPendingNarration() {
		t.Fatalf("expected the pending slot to clear after retry")
	}
	if !engine.IsSpeaking() {
		t.Fatalf("expected narration to play after retry")
	}
}

func TestEngineOpenAppendsGreeting(t *testing.T) {
	engine := NewEngine(
		WithGenerationClient(&fakeGenerator{}),
		WithGreeting("How can I help you today?"),
	)
	defer engine.Close()
	engine.Open(context.Background())

	messages := engine.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected the greeting message, got %d messages", len(messages))
	}
	if messages[0].Role != RoleAssistant || messages[0].Text != "How can I help you today?" {
		t.Fatalf("unexpected greeting message %+v", messages[0])
	}
}

func TestEngineSetVoiceEnabled(t *testing.T) {
	engine := NewEngine(WithGenerationClient(&fakeGenerator{}))
	defer engine.Close()
	engine.Open(context.Background())

	if !engine.IsVoiceEnabled() {
		t.Fatalf("expected voice to default to enabled")
	}
	engine.SetVoiceEnabled(false)
	if engine.IsVoiceEnabled() {
		t.Fatalf("expected voice to be disabled")
	}
}
