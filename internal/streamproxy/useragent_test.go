package streamproxy

import (
	"strings"
	"testing"
)

func TestRewriteUserAgentIncludesClientUA(t *testing.T) {
	got := RewriteUserAgent("VLC/3.0.18 LibVLC/3.0.18")
	if !strings.HasPrefix(got, "m3u-proxy/") {
		t.Fatalf("expected proxy identity prefix, got %q", got)
	}
	if !strings.Contains(got, "VLC/3.0.18 LibVLC/3.0.18") {
		t.Fatalf("expected client UA embedded, got %q", got)
	}
}

func TestRewriteUserAgentEmptyClient(t *testing.T) {
	got := RewriteUserAgent("")
	if !strings.HasPrefix(got, "m3u-proxy/") {
		t.Fatalf("expected proxy identity prefix, got %q", got)
	}
	if strings.Contains(got, "()") {
		t.Fatalf("expected no empty parens for blank client UA, got %q", got)
	}
}
