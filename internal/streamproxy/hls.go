package streamproxy

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	m3u8 "github.com/mogiioin/hls-m3u8/m3u8"
)

// RewriteHeader is the response header signaling that segment/key/map URIs
// in the returned playlist were rewritten to absolute URIs by the proxy
// rather than passed through relative to the upstream as-is.
const RewriteHeader = "X-Playlist-Rewritten"

// RewriteMediaPlaylist decodes an HLS media playlist fetched from
// fetchURL, rewrites every segment, key, and init-segment URI that is
// relative into an absolute URI resolved against fetchURL, and re-encodes
// the result. Absolute URIs already present are left untouched.
//
// Clients fetch segments directly from the origin after this rewrite;
// the proxy only ever serves the playlist itself, not every segment,
// which is what lets mode=proxy avoid becoming a full reverse-proxy for
// every byte of the stream.
func RewriteMediaPlaylist(body []byte, fetchURL string) ([]byte, error) {
	base, err := url.Parse(fetchURL)
	if err != nil {
		return nil, fmt.Errorf("parse playlist fetch url: %w", err)
	}

	playlist, listType, err := m3u8.Decode(*bytes.NewBuffer(body), false)
	if err != nil {
		return nil, fmt.Errorf("decode media playlist: %w", err)
	}

	switch listType {
	case m3u8.MEDIA:
		mp, ok := playlist.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected playlist type for MEDIA list")
		}
		rewriteMediaPlaylist(mp, base)
		return mp.Encode().Bytes(), nil
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected playlist type for MASTER list")
		}
		rewriteMasterPlaylist(master, base)
		return master.Encode().Bytes(), nil
	default:
		return nil, fmt.Errorf("unrecognized playlist type")
	}
}

func rewriteMediaPlaylist(mp *m3u8.MediaPlaylist, base *url.URL) {
	if mp.Key != nil {
		mp.Key.URI = resolve(base, mp.Key.URI)
	}
	if mp.Map != nil {
		mp.Map.URI = resolve(base, mp.Map.URI)
	}
	for _, seg := range mp.Segments {
		if seg == nil {
			continue
		}
		seg.URI = resolve(base, seg.URI)
		if seg.Key != nil {
			seg.Key.URI = resolve(base, seg.Key.URI)
		}
		if seg.Map != nil {
			seg.Map.URI = resolve(base, seg.Map.URI)
		}
	}
}

func rewriteMasterPlaylist(master *m3u8.MasterPlaylist, base *url.URL) {
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		v.URI = resolve(base, v.URI)
	}
	for _, alt := range master.GetAllAlternatives() {
		if alt.URI != "" {
			alt.URI = resolve(base, alt.URI)
		}
	}
}

// resolve turns uri into an absolute URL against base, leaving already-
// absolute or empty URIs unchanged.
func resolve(base *url.URL, uri string) string {
	if uri == "" || strings.Contains(uri, "://") {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}
