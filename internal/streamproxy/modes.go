package streamproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/httpx"
)

// Serve dispatches a channel's upstream according to the proxy's mode:
// redirect issues a 302 straight to the upstream URL; proxy relays the
// response body, rewriting it as an HLS playlist when the upstream is
// one; relay transcodes through ffmpeg per the given RelayProfile.
func (h *Handlers) Serve(w http.ResponseWriter, r *http.Request, mode domain.ProxyMode, upstreamURL string, profile *domain.RelayProfile) error {
	switch mode {
	case domain.ProxyModeRedirect:
		decorate(w, "stream", "redirect", string(mode))
		http.Redirect(w, r, upstreamURL, http.StatusFound)
		return nil
	case domain.ProxyModeProxy:
		return h.serveProxy(w, r, upstreamURL)
	case domain.ProxyModeRelay:
		if profile == nil {
			return fmt.Errorf("relay mode requires a RelayProfile")
		}
		return h.serveRelay(w, r, upstreamURL, *profile)
	default:
		return fmt.Errorf("unknown proxy mode %q", mode)
	}
}

// serveProxy fetches upstreamURL and relays it to the client. If the
// response looks like an HLS media/master playlist (by Content-Type or
// file extension) its URIs are rewritten to absolute before forwarding;
// otherwise the body streams through unmodified.
func (h *Handlers) serveProxy(w http.ResponseWriter, r *http.Request, upstreamURL string) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstreamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", RewriteUserAgent(r.UserAgent()))

	var resp *http.Response
	err = h.Breakers.Call(upstreamURL, func() error {
		return httpx.ConnectWithRetry(r.Context(), httpx.DefaultConnectRetryPolicy, func() error {
			var doErr error
			resp, doErr = h.UpstreamClient.Do(req)
			return doErr
		})
	})
	if err != nil {
		return fmt.Errorf("fetch upstream: %w", err)
	}
	defer resp.Body.Close()

	decorate(w, "stream", "proxy", string(domain.ProxyModeProxy))

	if isHLSPlaylist(resp.Header.Get("Content-Type"), upstreamURL) {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read playlist body: %w", err)
		}
		rewritten, err := RewriteMediaPlaylist(body, upstreamURL)
		if err != nil {
			// Fall back to passing the original bytes through rather than
			// failing playback outright on a rewrite bug.
			w.Header().Set(RewriteHeader, "failed")
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.WriteHeader(http.StatusOK)
			_, werr := w.Write(body)
			return werr
		}
		w.Header().Set(RewriteHeader, "absolute-uris")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		_, werr := w.Write(rewritten)
		return werr
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, err = io.Copy(w, resp.Body)
	return err
}

func (h *Handlers) serveRelay(w http.ResponseWriter, r *http.Request, upstreamURL string, profile domain.RelayProfile) error {
	decorate(w, "stream", "relay", string(domain.ProxyModeRelay))
	w.Header().Set(HeaderRelayProfileID, profile.ID.String())
	w.Header().Set("Content-Type", "video/mp2t")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	fw := &flushWriter{w: w, flusher: flusher}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	err := h.Relayer.Relay(ctx, upstreamURL, profile, fw)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// flushWriter flushes after every write so a relay session streams to
// the client as ffmpeg produces output, instead of buffering behind the
// ResponseWriter's default buffering.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil && fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}

func isHLSPlaylist(contentType, upstreamURL string) bool {
	switch contentType {
	case "application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl":
		return true
	}
	return len(upstreamURL) > 5 && upstreamURL[len(upstreamURL)-5:] == ".m3u8"
}
