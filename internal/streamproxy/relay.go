package streamproxy

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// Relayer runs relay mode: transcode the upstream stream through ffmpeg
// per a channel's resolved RelayProfile, guarded by a per-host circuit
// breaker so a dead source fails fast for subsequent viewers instead of
// spawning a new ffmpeg process per request that's doomed to fail.
type Relayer struct {
	Breakers *HostBreakers
	Logger   zerolog.Logger
}

func NewRelayer(breakers *HostBreakers, logger zerolog.Logger) *Relayer {
	return &Relayer{Breakers: breakers, Logger: logger}
}

// Relay runs the transcode for one client request, writing MPEG-TS to w
// until ctx is canceled (client disconnect) or ffmpeg exits.
func (rl *Relayer) Relay(ctx context.Context, sourceURL string, profile domain.RelayProfile, w io.Writer) error {
	err := rl.Breakers.Call(sourceURL, func() error {
		return runFFmpegRelay(ctx, rl.Logger, sourceURL, profile, w)
	})
	if err != nil {
		return fmt.Errorf("relay %s: %w", sourceURL, err)
	}
	return nil
}
