package conversation

import (
	"sync"

	"github.com/functiomed/assistant-core/core/narration"
)

// pendingNarration holds the single narration whose playback was refused by
// the platform, so it can be retried once a user gesture unblocks audio. A
// newer blocked narration overwrites an older one without releasing it; the
// cache owns the resource lifetime.
type pendingNarration struct {
	mu sync.Mutex

	text     string
	key      string
	resource *narration.Audio
	occupied bool
}

func (p *pendingNarration) Set(text, key string, resource *narration.Audio) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.text = text
	p.key = key
	p.resource = resource
	p.occupied = true
}

// Take clears the slot and returns its content. The second return is false
// when the slot was empty.
func (p *pendingNarration) Take() (text, key string, resource *narration.Audio, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.occupied {
		return "", "", nil, false
	}

	text, key, resource = p.text, p.key, p.resource
	p.text, p.key, p.resource, p.occupied = "", "", nil, false
	return text, key, resource, true
}

func (p *pendingNarration) Occupied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.occupied
}

func (p *pendingNarration) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text, p.key, p.resource, p.occupied = "", "", nil, false
}
