package ingest

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// ParseM3U streams #EXTINF/url pairs from r, calling emit for each decoded
// channel. Attribute extraction follows the same quoted-key/value scan the
// teacher's M3U parser uses, generalized to stream line-by-line instead of
// splitting the whole document, so a multi-gigabyte playlist never needs to
// live in memory as one []string.
func ParseM3U(r io.Reader, sourceID uuid.UUID, emit func(domain.Channel) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var current domain.Channel
	haveExtinf := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			current = domain.Channel{SourceID: sourceID}
			current.TvgChno = extractAttr(line, "tvg-chno")
			current.TvgID = extractAttr(line, "tvg-id")
			current.TvgName = extractAttr(line, "tvg-name")
			current.TvgLogo = extractAttr(line, "tvg-logo")
			current.TvgShift = extractAttr(line, "tvg-shift")
			current.GroupTitle = extractAttr(line, "group-title")
			if idx := strings.LastIndex(line, ","); idx != -1 {
				current.DisplayName = strings.TrimSpace(line[idx+1:])
			}
			haveExtinf = true
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			if !haveExtinf {
				continue
			}
			current.StreamURL = line
			current.ID = uuid.New()
			if current.Valid() {
				if err := emit(current); err != nil {
					return err
				}
			}
			haveExtinf = false
		}
	}
	return scanner.Err()
}

// extractAttr pulls a quoted `key="value"` attribute out of an EXTINF line.
func extractAttr(line, key string) string {
	needle := key + `="`
	idx := strings.Index(line, needle)
	if idx == -1 {
		return ""
	}
	start := idx + len(needle)
	end := strings.Index(line[start:], `"`)
	if end == -1 {
		return ""
	}
	return line[start : start+end]
}
