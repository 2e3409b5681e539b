package generator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

func TestWriteM3UBasic(t *testing.T) {
	channels := []domain.Channel{
		{DisplayName: "Sports One", StreamURL: "http://origin/a.ts", TvgID: "sports.one", TvgName: "Sports One", GroupTitle: "Sports"},
		{DisplayName: "Removed Channel", StreamURL: "http://origin/b.ts", Removed: true},
	}

	var buf bytes.Buffer
	if err := WriteM3U(&buf, channels, "", nil); err != nil {
		t.Fatalf("WriteM3U: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("expected bare #EXTM3U header, got:\n%s", out)
	}
	if !strings.Contains(out, `tvg-id="sports.one"`) {
		t.Fatalf("expected tvg-id attribute, got:\n%s", out)
	}
	if !strings.Contains(out, "http://origin/a.ts") {
		t.Fatalf("expected stream URL passed through, got:\n%s", out)
	}
	if strings.Contains(out, "Removed Channel") {
		t.Fatalf("expected removed channel to be skipped, got:\n%s", out)
	}
}

func TestWriteM3UWithTvgURLAndRewrite(t *testing.T) {
	channels := []domain.Channel{
		{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), DisplayName: "News", StreamURL: "http://origin/news.ts", TvgChno: "101", TvgLogo: "http://logos/news.png", TvgShift: "+1"},
	}
	rewrite := func(ch domain.Channel) string { return "http://proxy.local/stream/demo/" + ch.ID.String() }

	var buf bytes.Buffer
	if err := WriteM3U(&buf, channels, "http://proxy.local/demo/epg.xml", rewrite); err != nil {
		t.Fatalf("WriteM3U: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, `x-tvg-url="http://proxy.local/demo/epg.xml"`) {
		t.Fatalf("expected x-tvg-url attribute on header, got:\n%s", out)
	}
	if !strings.Contains(out, `tvg-chno="101"`) {
		t.Fatalf("expected tvg-chno attribute, got:\n%s", out)
	}
	if !strings.Contains(out, `tvg-shift="+1"`) {
		t.Fatalf("expected tvg-shift attribute, got:\n%s", out)
	}
	if !strings.Contains(out, "http://proxy.local/stream/demo/11111111-1111-1111-1111-111111111111") {
		t.Fatalf("expected rewritten stream URL, got:\n%s", out)
	}
	if strings.Contains(out, "http://origin/news.ts") {
		t.Fatalf("expected original stream URL not to leak through when a rewrite func is given, got:\n%s", out)
	}
}

func TestEscapeAttrReplacesDoubleQuotes(t *testing.T) {
	if got := escapeAttr(`Say "hi"`); got != `Say 'hi'` {
		t.Fatalf("expected quotes replaced with single quotes, got %q", got)
	}
}
