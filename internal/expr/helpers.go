package expr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
)

// LogoLookup resolves a cached-logo UUID token (@logo:<uuid>) to the URL the
// generator should emit in its place. It returns an *apperr.Error of kind
// KindNotFound when id is well-formed but no asset exists for it; any other
// error is treated as a Critical failure by the caller and halts the run.
type LogoLookup func(ctx context.Context, id uuid.UUID) (url string, err error)

var (
	backrefPattern    = regexp.MustCompile(`\$(\d+)`)
	timeHelperPattern = regexp.MustCompile(`@time:now\(([+-]?[0-9hms]*)\)`)
	logoHelperPattern = regexp.MustCompile(`@logo:([0-9a-fA-F-]{36})`)
)

// Resolver applies helper tokens and regex backreferences when materializing
// a SET assignment's value against a matched record.
type Resolver struct {
	Time  TimeSnapshot
	Logos LogoLookup
}

// NewResolver builds a Resolver; a nil LogoLookup leaves @logo: tokens
// unresolved (no cache wired) rather than attempting a lookup.
func NewResolver(snapshot TimeSnapshot, logos LogoLookup) *Resolver {
	return &Resolver{Time: snapshot, Logos: logos}
}

// ResolveBackrefs expands only $N backreferences in raw, leaving any
// @time:/@logo: helper tokens untouched. The data-mapping stage uses this so
// helper-token expansion (which may require a logo-cache lookup) is
// deferred to the helper-resolution stage, after filtering has already
// dropped non-surviving records.
func (r *Resolver) ResolveBackrefs(raw string, submatches []string) string {
	return backrefPattern.ReplaceAllStringFunc(raw, func(tok string) string {
		n, err := strconv.Atoi(tok[1:])
		if err != nil || n < 0 || n >= len(submatches) {
			return tok
		}
		return submatches[n]
	})
}

// Resolve expands raw (a channel field already carrying $N backreferences
// substituted in) against @time:now(±offset) and @logo:<uuid> helper
// tokens, in that order.
//
// A @logo: token resolves to one of three outcomes (spec.md §4.1, §4.3(4),
// §7): the asset's URL on success; field removal, not an empty string or
// the bare token, when the uuid is malformed or unknown — remove reports
// this, and warning carries a message for the malformed case the caller
// should log; or, when the lookup itself fails (a database error surviving
// the retry budget below), a non-nil err the caller must treat as Critical
// and use to halt the run rather than publish a partial record.
func (r *Resolver) Resolve(ctx context.Context, raw string, submatches []string) (value string, remove bool, warning string, err error) {
	out := r.ResolveBackrefs(raw, submatches)

	out = timeHelperPattern.ReplaceAllStringFunc(out, func(tok string) string {
		m := timeHelperPattern.FindStringSubmatch(tok)
		offsetSeconds, perr := ParseTimeOffset(m[1])
		if perr != nil {
			return tok
		}
		t := ApplyTimeOffset(r.Time.Now, offsetSeconds)
		return t.UTC().Format("20060102150405 -0700")
	})

	// A field carries at most one @logo: token (the grammar's helper-call
	// form), so a single match is resolved against the whole field.
	m := logoHelperPattern.FindStringSubmatch(out)
	if m == nil {
		return out, false, "", nil
	}
	if r.Logos == nil {
		return out, false, "", nil
	}

	rawID := m[1]
	id, perr := uuid.Parse(rawID)
	if perr != nil {
		return "", true, fmt.Sprintf("malformed logo uuid %q: %v", rawID, perr), nil
	}

	url, lerr := resolveLogoWithRetry(ctx, r.Logos, id)
	if lerr != nil {
		if apperr.Is(lerr, apperr.KindNotFound) {
			return "", true, "", nil
		}
		return "", false, "", apperr.Critical(lerr, "logo lookup for %s", id)
	}

	return logoHelperPattern.ReplaceAllString(out, url), false, "", nil
}

// resolveLogoWithRetry calls lookup up to 3 times with exponential backoff
// starting at 100ms (spec.md §4.3(4): "Logo UUIDs are validated against the
// database with retry (3 attempts, exponential backoff from 100ms)"). A
// not-found result is never retried — the record genuinely doesn't exist,
// and retrying would only delay reporting that.
func resolveLogoWithRetry(ctx context.Context, lookup LogoLookup, id uuid.UUID) (string, error) {
	const maxAttempts = 3
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		url, err := lookup(ctx, id)
		if err == nil {
			return url, nil
		}
		if apperr.Is(err, apperr.KindNotFound) {
			return "", err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", lastErr
}

// Submatches returns the regex capture groups produced by matching cond's
// pattern (only meaningful for OpMatches/OpNotMatches conditions) against
// value, for use as backreferences in an assignment's value.
func (ev *Evaluator) Submatches(cond Condition, value string) []string {
	base, _ := isNegated(cond.Op)
	if base != OpMatches {
		return nil
	}
	re, err := ev.compile(cond.Literal)
	if err != nil {
		return nil
	}
	return re.FindStringSubmatch(value)
}

// hasHelperTokens reports whether raw contains any helper token recognized
// by Resolve; used by callers deciding whether a plain string copy suffices.
func hasHelperTokens(raw string) bool {
	return strings.Contains(raw, "$") || strings.Contains(raw, "@time:now(") || strings.Contains(raw, "@logo:")
}
