package streamproxy

import "fmt"

// AppVersion is stamped into the outbound User-Agent sent to upstreams;
// overridden at build time via -ldflags.
var AppVersion = "dev"

// RewriteUserAgent builds the User-Agent the proxy presents to the
// upstream source: its own identity plus the original client's UA, so
// upstream access logs can still distinguish real client types (useful
// when a source applies per-client-type quirks) without the proxy lying
// about who it is.
func RewriteUserAgent(clientUA string) string {
	if clientUA == "" {
		return fmt.Sprintf("m3u-proxy/%s", AppVersion)
	}
	return fmt.Sprintf("m3u-proxy/%s (%s)", AppVersion, clientUA)
}

// ResponseVersionHeader names the proxy-build header. No handler sets it on
// responses or on upstream requests; the build is identified upstream only
// through RewriteUserAgent.
const ResponseVersionHeader = "m3u-proxy-version"
