package narration

import (
	"context"
	"errors"
	"sync"

	"github.com/functiomed/assistant-core/core/audio"
)

// ErrMissingCredential reports that the narration service rejected the
// request because no (or an invalid) service credential was configured.
// Callers surface this one specifically; every other synthesis failure is
// logged and narration is silently skipped.
var ErrMissingCredential = errors.New("narration service credential missing or invalid")

// Synthesizer converts finalized text into a playable audio resource.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...SynthesisOption) (*Audio, error)
}

type SynthesisOptions struct {
	// Language is the narration language tag (DE, EN or FR).
	Language string

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithLanguage(language string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Language = language }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// Audio is one synthesized narration resource. Fingerprint is the content
// hash of the narrated text and doubles as the cache key.
type Audio struct {
	mu   sync.Mutex
	data []byte

	MIMEType    string
	Encoding    audio.EncodingInfo
	Fingerprint string
	DurationSec float64
}

func NewAudio(data []byte, mimeType string, encoding audio.EncodingInfo) *Audio {
	return &Audio{data: data, MIMEType: mimeType, Encoding: encoding}
}

// Clip returns the playable form of the resource. The zero clip is returned
// after Release.
func (a *Audio) Clip() audio.Clip {
	if a == nil {
		return audio.Clip{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return audio.Clip{Data: a.data, Encoding: a.Encoding, MIMEType: a.MIMEType}
}

// Release drops the underlying binary so no dangling reference keeps it
// alive after cache eviction. Safe to call more than once.
func (a *Audio) Release() {
	if a == nil {
		return
	}

	a.mu.Lock()
	a.data = nil
	a.mu.Unlock()
}

// Released reports whether the underlying binary has been dropped.
func (a *Audio) Released() bool {
	if a == nil {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data == nil
}
