package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// probeStream describes one ffprobe-reported stream, trimmed to the fields
// relay-profile selection needs.
type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// Prober runs a lightweight ffprobe pass against a channel's upstream URL
// to determine its current video/audio codec and resolution, without a
// full decode, grounded on the original stream-prober service's ffprobe
// invocation shape. The result feeds domain.LastKnownCodecs, which relay
// mode consults to pick a RelayProfile without re-probing every request.
type Prober struct {
	FFprobeBin string
	Timeout    time.Duration
}

// NewProber returns a Prober using ffprobeBin (falling back to "ffprobe")
// with a 10s probe timeout.
func NewProber(ffprobeBin string) *Prober {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Prober{FFprobeBin: ffprobeBin, Timeout: 10 * time.Second}
}

// Probe inspects sourceURL and returns the channel's current codec/resolution
// reading. It does not persist the result; callers upsert via CodecRepo.
func (p *Prober) Probe(ctx context.Context, channelID uuid.UUID, sourceURL string) (domain.LastKnownCodecs, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_entries", "stream=codec_type,codec_name,width,height",
		"-analyzeduration", "5000000",
		"-probesize", "5000000",
		sourceURL,
	}

	// #nosec G204 -- args are built entirely from server-side config and the channel's own stored StreamURL, not raw client input
	cmd := exec.CommandContext(ctx, p.FFprobeBin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return domain.LastKnownCodecs{}, fmt.Errorf("ffprobe %s: %w", sourceURL, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return domain.LastKnownCodecs{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := domain.LastKnownCodecs{ChannelID: channelID, ProbedAt: time.Now().UTC()}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec == "" {
				result.VideoCodec = s.CodecName
				result.Width = s.Width
				result.Height = s.Height
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		}
	}
	return result, nil
}
