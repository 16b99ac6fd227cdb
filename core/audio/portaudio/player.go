package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/functiomed/assistant-core/core/audio"
)

// Player plays linear16 PCM clips through the default output device using
// PortAudio's blocking write API.
type Player struct {
	bufferSize int
	stream     *portaudio.Stream
	out        []int16

	mu         sync.Mutex
	generation atomic.Int64
	closed     atomic.Bool
}

func NewPlayer(bufferSize int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, audio.DefaultSampleRate, bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	return &Player{
		bufferSize: bufferSize,
		stream:     stream,
		out:        out,
	}, nil
}

// Play pumps the clip to the output stream on a background goroutine.
// A later Play or Stop call preempts the pump mid-clip.
func (p *Player) Play(ctx context.Context, clip audio.Clip, onEnded func()) error {
	if clip.IsZero() {
		return fmt.Errorf("clip has no audio data")
	}
	if p.closed.Load() {
		return fmt.Errorf("player is closed")
	}

	generation := p.generation.Add(1)
	data := append([]byte(nil), clip.Data...)

	go func() {
		chunkSize := p.bufferSize * 2
		for offset := 0; offset < len(data); offset += chunkSize {
			if ctx.Err() != nil || p.closed.Load() || p.generation.Load() != generation {
				return
			}

			end := min(offset+chunkSize, len(data))
			chunk := make([]byte, chunkSize)
			copy(chunk, data[offset:end])

			p.mu.Lock()
			if err := binary.Read(bytes.NewBuffer(chunk), binary.LittleEndian, p.out); err != nil {
				p.mu.Unlock()
				return
			}
			if err := p.stream.Write(); err != nil {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		}

		if p.generation.Load() == generation && onEnded != nil {
			onEnded()
		}
	}()

	return nil
}

func (p *Player) Stop() error {
	p.generation.Add(1)
	return nil
}

func (p *Player) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.generation.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.stream.Close()
	_ = portaudio.Terminate()
}
