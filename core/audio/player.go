package audio

import (
	"context"
	"errors"
	"time"
)

// ErrPlaybackBlocked is returned by a [Player] when the platform refuses to
// start playback without a direct user gesture (browser autoplay policy).
// It is not a failure: the caller is expected to hold the clip and retry in
// response to a gesture.
var ErrPlaybackBlocked = errors.New("playback blocked by platform autoplay policy")

// Clip is one playable audio resource.
type Clip struct {
	Data     []byte
	Encoding EncodingInfo
	MIMEType string
}

func (c Clip) IsZero() bool { return len(c.Data) == 0 }

// Duration reports the playback duration of the clip. It returns zero for
// encodings without a fixed byte-per-sample size (compressed containers).
func (c Clip) Duration() time.Duration {
	if c.Encoding.IsZero() || c.Encoding.Format.ByteSize() <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Data)) / float64(c.Encoding.SampleRate) * float64(time.Second) / float64(c.Encoding.Format.ByteSize()))
}

// Player plays one clip at a time. Starting a new playback replaces whatever
// was playing before.
type Player interface {
	// Play commits the clip for playback and returns once playback has
	// started; onEnded is invoked asynchronously when the clip finishes
	// playing naturally (not when it is stopped or replaced). Play returns
	// [ErrPlaybackBlocked] when the platform refuses to start playback.
	Play(ctx context.Context, clip Clip, onEnded func()) error
	// Stop halts playback and drops any buffered audio. It is idempotent.
	Stop() error
}
