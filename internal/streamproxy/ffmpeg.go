package streamproxy

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// buildFFmpegArgs turns a RelayProfile into the argument list for
// transcoding sourceURL into a continuous MPEG-TS stream on stdout,
// suitable for relay mode.
func buildFFmpegArgs(sourceURL string, profile domain.RelayProfile) []string {
	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-reconnect", "1", "-reconnect_at_eof", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-fflags", "+genpts+discardcorrupt",
	}
	if profile.HardwareAccel != "" {
		args = append(args, "-hwaccel", profile.HardwareAccel)
	}
	args = append(args, "-i", sourceURL)

	if profile.VideoCodec == "" || profile.VideoCodec == "copy" {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-c:v", profile.VideoCodec)
		if profile.VideoBitrateKbps > 0 {
			args = append(args, "-b:v", strconv.Itoa(profile.VideoBitrateKbps)+"k")
		}
	}

	if profile.AudioCodec == "" || profile.AudioCodec == "copy" {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", profile.AudioCodec)
		if profile.AudioBitrateKbps > 0 {
			args = append(args, "-b:a", strconv.Itoa(profile.AudioBitrateKbps)+"k")
		}
	}

	args = append(args, "-f", "mpegts", "pipe:1")
	return args
}

// runFFmpegRelay starts ffmpeg against sourceURL using profile, streaming
// its stdout (MPEG-TS) to out until ctx is canceled or the process exits.
// stderr lines are logged at debug, except lines containing "error" which
// log at warn, mirroring how upstream connection resets surface in
// ffmpeg's own diagnostic output.
func runFFmpegRelay(ctx context.Context, logger zerolog.Logger, sourceURL string, profile domain.RelayProfile, out io.Writer) error {
	args := buildFFmpegArgs(sourceURL, profile)

	// #nosec G204 -- args are built entirely from server-side RelayProfile fields and the resolved channel URL, not raw client input
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = out

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderr)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.Contains(strings.ToLower(line), "error") {
				logger.Warn().Str("ffmpeg", line).Msg("relay transcode warning")
			} else {
				logger.Debug().Str("ffmpeg", line).Msg("relay transcode stderr")
			}
		}
	}()

	waitErr := cmd.Wait()
	<-done
	return waitErr
}
