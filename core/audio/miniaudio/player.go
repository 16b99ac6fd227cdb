package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/functiomed/assistant-core/core/audio"
)

// Player plays linear16 PCM clips through the default output device using
// miniaudio.
type Player struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encoding     audio.EncodingInfo

	mu      sync.Mutex
	audioMu sync.Mutex

	pending []byte
	playing bool
	onEnded func()
}

func NewPlayer() (*Player, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	player := &Player{audioContext: audioCtx}
	if err := player.initDevice(audio.GetDefaultEncodingInfo()); err != nil {
		player.Close()
		return nil, err
	}

	return player, nil
}

func (p *Player) initDevice(encoding audio.EncodingInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		if encoding == p.encoding {
			return nil
		}
		p.device.Uninit()
		p.device = nil
	}

	sampleRate := uint32(encoding.SampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	p.config = malgo.DefaultDeviceConfig(malgo.Playback)
	p.config.SampleRate = sampleRate
	p.config.Playback.Format = format
	p.config.Playback.Channels = uint32(channels)
	p.config.Alsa.NoMMap = 1
	p.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	p.config.Periods = 4

	device, err := malgo.InitDevice(
		p.audioContext.Context,
		p.config,
		malgo.DeviceCallbacks{Data: p.processAudio(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.device = device
	p.encoding = encoding
	return nil
}

// Play replaces whatever is currently buffered with the given clip.
func (p *Player) Play(_ context.Context, clip audio.Clip, onEnded func()) error {
	if clip.IsZero() {
		return fmt.Errorf("clip has no audio data")
	}

	encoding := clip.Encoding
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Format.ByteSize() <= 0 {
		return fmt.Errorf("unsupported clip encoding %q", encoding.Format.Name())
	}
	if err := p.initDevice(encoding); err != nil {
		return err
	}

	p.audioMu.Lock()
	p.pending = append([]byte(nil), clip.Data...)
	p.playing = true
	p.onEnded = onEnded
	p.audioMu.Unlock()

	return nil
}

func (p *Player) Stop() error {
	p.audioMu.Lock()
	p.pending = nil
	p.playing = false
	p.onEnded = nil
	p.audioMu.Unlock()
	return nil
}

func (p *Player) Close() {
	p.mu.Lock()
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	p.mu.Unlock()

	_ = p.Stop()

	if p.audioContext != nil {
		_ = p.audioContext.Uninit()
		p.audioContext.Free()
		p.audioContext = nil
	}
}

func (p *Player) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.audioMu.Lock()
		if len(p.pending) == 0 {
			if p.playing {
				p.playing = false
				if ended := p.onEnded; ended != nil {
					p.onEnded = nil
					go ended()
				}
			}
			p.audioMu.Unlock()
			return
		}

		if len(p.pending) < need {
			_ = copy(pOutput, p.pending)
			p.pending = nil
		} else {
			_ = copy(pOutput, p.pending[:need])
			p.pending = p.pending[need:]
		}
		p.audioMu.Unlock()
	}
}
