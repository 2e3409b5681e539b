package streamproxy

import "net/http"

// Decision/origin/mode headers the handlers set on every streaming
// response so a client or an operator curling the endpoint can see how
// the request was served without needing server-side logs.
const (
	HeaderStreamOriginKind = "X-Stream-Origin-Kind" // always "stream"; the source type is not reported
	HeaderStreamDecision   = "X-Stream-Decision"    // "redirect" | "proxy" | "relay"
	HeaderStreamMode       = "X-Stream-Mode"        // the proxy's configured ProxyMode
	HeaderVariantSelected  = "X-Variant-Selected"
	HeaderTargetDuration   = "X-Target-Duration"
	HeaderStreamFallback   = "X-Stream-Fallback" // declared only; relay has no fallback and no handler sets it
	HeaderRelayProfileID   = "X-Relay-Profile-ID"
	headerExposeHeaders    = "Access-Control-Expose-Headers"
)

// decorate sets the common response headers describing how this request
// was served, and exposes them to cross-origin JS clients.
func decorate(w http.ResponseWriter, originKind, decision, mode string) {
	h := w.Header()
	h.Set(HeaderStreamOriginKind, originKind)
	h.Set(HeaderStreamDecision, decision)
	h.Set(HeaderStreamMode, mode)
	h.Set(headerExposeHeaders, "*")
}
