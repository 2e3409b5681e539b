package streamproxy

import (
	"net/http/httptest"
	"testing"
)

func TestIsHLSPlaylistByContentType(t *testing.T) {
	cases := []struct {
		contentType string
		url         string
		want        bool
	}{
		{"application/vnd.apple.mpegurl", "http://x/stream", true},
		{"application/x-mpegurl", "http://x/stream", true},
		{"", "http://x/stream/index.m3u8", true},
		{"video/mp2t", "http://x/stream.ts", false},
		{"", "http://x/stream.ts", false},
	}
	for _, c := range cases {
		if got := isHLSPlaylist(c.contentType, c.url); got != c.want {
			t.Errorf("isHLSPlaylist(%q, %q) = %v, want %v", c.contentType, c.url, got, c.want)
		}
	}
}

func TestFlushWriterFlushesOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	fw := &flushWriter{w: rec, flusher: rec}
	n, err := fw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}
	if !rec.Flushed {
		t.Fatal("expected Flush to be called after write")
	}
}
