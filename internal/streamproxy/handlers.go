package streamproxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/ratelimit"
	"github.com/m3uproxy/m3uproxy/internal/sandbox"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

// Handlers wires the chi routes that serve a published proxy's artifacts
// and live streams: the generated M3U/XMLTV, per-channel stream delivery
// in whichever of the proxy's three modes applies, and logo blobs.
type Handlers struct {
	Proxies  *sqlite.ProxyRepo
	Channels *sqlite.ChannelRepo
	Logos    *sqlite.LogoRepo

	ArtifactDir string // directory holding <slug>.m3u / <slug>.xml symlinks, see generator.Publisher
	LogoSandbox *sandbox.Sandbox

	UpstreamClient *http.Client
	Breakers       *HostBreakers
	Limiter        *ratelimit.HostLimiter
	Sessions       *SessionTracker
	Relayer        *Relayer

	Logger zerolog.Logger
}

// Routes registers this Handlers' endpoints onto r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/stream/{slug}/{channelID}", h.handleStream)
	r.Get("/{slug}/playlist.m3u", h.handlePlaylist)
	r.Get("/{slug}/epg.xml", h.handleEPG)
	r.Get("/logos/{id}", h.handleLogoAsset)
	r.Get("/logos/cached/{cacheID}", h.handleLogoCached)
}

func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	channelIDStr := chi.URLParam(r, "channelID")

	channelID, err := uuid.Parse(channelIDStr)
	if err != nil {
		writeError(w, apperr.Validation("invalid channel id %q", channelIDStr))
		return
	}

	proxy, err := h.Proxies.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, apperr.NotFound("no proxy named %q", slug))
			return
		}
		writeError(w, apperr.Database(err, "load proxy %q", slug))
		return
	}

	channel, err := h.Channels.GetByID(ctx, channelID)
	if err != nil {
		writeError(w, apperr.Database(err, "load channel %s", channelID))
		return
	}
	if channel == nil || channel.Removed {
		writeError(w, apperr.NotFound("no channel %s on proxy %q", channelID, slug))
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(channel.StreamURL) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "upstream host rate limited, try again shortly", http.StatusTooManyRequests)
		return
	}

	var profile *domain.RelayProfile
	if proxy.Mode == domain.ProxyModeRelay {
		if proxy.RelayProfileID == nil {
			writeError(w, apperr.Validation("proxy %q is in relay mode but has no relay profile", slug))
			return
		}
		p, err := h.Proxies.GetRelayProfile(ctx, *proxy.RelayProfileID)
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				writeError(w, apperr.NotFound("relay profile %s not found", *proxy.RelayProfileID))
				return
			}
			writeError(w, apperr.Database(err, "load relay profile %s", *proxy.RelayProfileID))
			return
		}
		profile = p
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := h.Sessions.Register(r, slug, channel.ID.String(), channel.DisplayName, string(proxy.Mode), cancel)
	defer h.Sessions.Unregister(sess.ID)

	r = r.WithContext(sessCtx)

	cw := &countingWriter{ResponseWriter: w, session: sess}
	if err := h.Serve(cw, r, proxy.Mode, channel.StreamURL, profile); err != nil {
		if !errors.Is(err, context.Canceled) {
			h.Logger.Warn().Err(err).Str("proxy", slug).Str("channel", channel.ID.String()).Msg("stream serve failed")
		}
	}
}

func (h *Handlers) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	path := filepath.Join(h.ArtifactDir, slug+".m3u")
	w.Header().Set("Content-Type", "application/x-mpegurl")
	http.ServeFile(w, r, path)
}

func (h *Handlers) handleEPG(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	path := filepath.Join(h.ArtifactDir, slug+".xml")
	w.Header().Set("Content-Type", "application/xml")
	http.ServeFile(w, r, path)
}

func (h *Handlers) handleLogoAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, apperr.Validation("invalid logo id %q", idStr))
		return
	}
	asset, err := h.Logos.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, apperr.NotFound("logo %s not found", id))
			return
		}
		writeError(w, apperr.Database(err, "load logo asset %s", id))
		return
	}
	path, err := h.LogoSandbox.Resolve(filepath.Join("assets", asset.Filename))
	if err != nil {
		writeError(w, apperr.Critical(err, "resolve logo asset path"))
		return
	}
	if asset.MimeType != "" {
		w.Header().Set("Content-Type", asset.MimeType)
	}
	http.ServeFile(w, r, path)
}

func (h *Handlers) handleLogoCached(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cacheID := chi.URLParam(r, "cacheID")
	logo, err := h.Logos.GetCached(ctx, cacheID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, apperr.NotFound("cached logo %q not found", cacheID))
			return
		}
		writeError(w, apperr.Database(err, "load cached logo %q", cacheID))
		return
	}
	path, err := h.LogoSandbox.Resolve(filepath.Join("cache", logo.CacheID))
	if err != nil {
		writeError(w, apperr.Critical(err, "resolve cached logo path"))
		return
	}
	if logo.MimeType != "" {
		w.Header().Set("Content-Type", logo.MimeType)
	}
	w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
	http.ServeFile(w, r, path)
}

// countingWriter feeds bytes written to the client back into the session's
// BytesSent/last-activity counters so idle sweeping and stats reflect the
// actual stream, not just request setup.
type countingWriter struct {
	http.ResponseWriter
	session *Session
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.ResponseWriter.Write(p)
	if n > 0 {
		c.session.UpdateActivity(n)
	}
	return n, err
}

func (c *countingWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Kind.String(),
		"detail": err.Message,
	})
}
