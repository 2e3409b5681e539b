// Package generator renders a pipeline run's surviving channels and
// programmes into the M3U and XMLTV artifacts a proxy publishes, and
// manages their atomic, versioned publication on disk.
package generator

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// WriteM3U writes an extended M3U playlist for channels, in the order
// given (the caller is expected to have already applied numbering/sort).
// streamURL rewrites each channel's StreamURL into a proxy URL when the
// proxy's mode requires routing playback through the streaming proxy
// rather than redirecting straight to the upstream; pass nil to emit the
// channel's StreamURL unchanged (redirect mode).
func WriteM3U(w io.Writer, channels []domain.Channel, xTvgURL string, streamURL func(domain.Channel) string) error {
	buf := &bytes.Buffer{}
	if xTvgURL != "" {
		fmt.Fprintf(buf, `#EXTM3U x-tvg-url="%s"`+"\n", xTvgURL)
	} else {
		buf.WriteString("#EXTM3U\n")
	}

	for _, ch := range channels {
		if ch.Removed {
			continue
		}

		attrs := &bytes.Buffer{}
		if ch.TvgChno != "" {
			fmt.Fprintf(attrs, `tvg-chno="%s" `, escapeAttr(ch.TvgChno))
		}
		fmt.Fprintf(attrs, `tvg-id="%s" `, escapeAttr(ch.TvgID))
		fmt.Fprintf(attrs, `tvg-name="%s" `, escapeAttr(ch.TvgName))
		if ch.TvgLogo != "" {
			fmt.Fprintf(attrs, `tvg-logo="%s" `, escapeAttr(ch.TvgLogo))
		}
		if ch.TvgShift != "" {
			fmt.Fprintf(attrs, `tvg-shift="%s" `, escapeAttr(ch.TvgShift))
		}
		fmt.Fprintf(attrs, `group-title="%s"`, escapeAttr(ch.GroupTitle))

		fmt.Fprintf(buf, "#EXTINF:-1 %s,%s\n", attrs.String(), ch.DisplayName)

		url := ch.StreamURL
		if streamURL != nil {
			url = streamURL(ch)
		}
		buf.WriteString(url + "\n")
	}

	_, err := io.Copy(w, buf)
	return err
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, `"`, `'`)
	return s
}
