package streamproxy

import (
	"net/url"
	"strings"
	"testing"
)

const mediaPlaylistFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-KEY:METHOD=AES-128,URI="key.bin"
#EXTINF:10.0,
segment0.ts
#EXTINF:10.0,
segment1.ts
#EXT-X-ENDLIST
`

func TestRewriteMediaPlaylistAbsolutizesSegments(t *testing.T) {
	out, err := RewriteMediaPlaylist([]byte(mediaPlaylistFixture), "http://origin.example/live/index.m3u8")
	if err != nil {
		t.Fatalf("RewriteMediaPlaylist: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		"http://origin.example/live/segment0.ts",
		"http://origin.example/live/segment1.ts",
		"http://origin.example/live/key.bin",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected rewritten playlist to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "\nsegment0.ts") {
		t.Fatalf("expected relative segment URI to be gone, got:\n%s", text)
	}
}

func TestRewriteMediaPlaylistLeavesAbsoluteURIsAlone(t *testing.T) {
	fixture := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
http://cdn.other.example/seg0.ts
#EXT-X-ENDLIST
`
	out, err := RewriteMediaPlaylist([]byte(fixture), "http://origin.example/live/index.m3u8")
	if err != nil {
		t.Fatalf("RewriteMediaPlaylist: %v", err)
	}
	if !strings.Contains(string(out), "http://cdn.other.example/seg0.ts") {
		t.Fatalf("expected already-absolute URI to survive unchanged, got:\n%s", string(out))
	}
}

const masterPlaylistFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,AUDIO="aac"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,AUDIO="aac"
high/index.m3u8
`

func TestRewriteMasterPlaylistAbsolutizesVariantsAndAlternatives(t *testing.T) {
	out, err := RewriteMediaPlaylist([]byte(masterPlaylistFixture), "http://origin.example/live/master.m3u8")
	if err != nil {
		t.Fatalf("RewriteMediaPlaylist: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		"http://origin.example/live/low/index.m3u8",
		"http://origin.example/live/high/index.m3u8",
		"http://origin.example/live/audio/en.m3u8",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected rewritten master playlist to contain %q, got:\n%s", want, text)
		}
	}
}

func TestResolveLeavesEmptyURIAlone(t *testing.T) {
	base, err := url.Parse("http://origin.example/live/index.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	if got := resolve(base, ""); got != "" {
		t.Fatalf("expected empty URI to remain empty, got %q", got)
	}
}
