package conversation

import (
	"sync"

	"github.com/jinzhu/copier"

	"github.com/functiomed/assistant-core/core/generation"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageMetadata carries the retrieval annotations and generation metrics
// attached to an assistant message.
type MessageMetadata struct {
	Sources          []generation.Source
	ConfidenceScore  float64
	DetectedLanguage string
	Metrics          *generation.Metrics
}

// Message is one entry of the conversation transcript. While Streaming is
// true the message is mutated exclusively by the session that owns it; once
// a terminal state is reached it is immutable.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Streaming bool
	Cancelled bool
	Metadata  *MessageMetadata
}

type messageStore struct {
	mu       sync.RWMutex
	messages []Message
}

func newMessageStore() *messageStore {
	return &messageStore{}
}

func (s *messageStore) append(message Message) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
}

func (s *messageStore) update(id string, update func(*Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			update(&s.messages[i])
			return true
		}
	}
	return false
}

func (s *messageStore) get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, message := range s.messages {
		if message.ID == id {
			return message, true
		}
	}
	return Message{}, false
}

// Snapshot returns a deep copy of the transcript so callers can iterate it
// without observing in-flight mutation of streaming messages.
func (s *messageStore) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []Message
	if err := copier.CopyWithOption(&messages, &s.messages, copier.Option{DeepCopy: true}); err != nil {
		messages = make([]Message, len(s.messages))
		copy(messages, s.messages)
	}
	return messages
}

func (s *messageStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
