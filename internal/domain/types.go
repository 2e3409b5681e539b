// Package domain defines the persisted entities shared across ingestion,
// the pipeline, the generator and the streaming proxy.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind distinguishes where a stream source's data comes from.
type SourceKind string

const (
	SourceKindM3U     SourceKind = "m3u"
	SourceKindXtream  SourceKind = "xtream"
)

// EpgKind distinguishes where an EPG source's data comes from.
type EpgKind string

const (
	EpgKindXMLTV  EpgKind = "xmltv"
	EpgKindXtream EpgKind = "xtream"
)

// ProxyMode selects how the streaming proxy serves a channel's upstream.
type ProxyMode string

const (
	ProxyModeRedirect ProxyMode = "redirect"
	ProxyModeProxy    ProxyMode = "proxy"
	ProxyModeRelay    ProxyMode = "relay"
)

// FilterSourceKind is the record type a filter or data-mapping rule applies to.
type FilterSourceKind string

const (
	FilterSourceStream FilterSourceKind = "stream"
	FilterSourceEPG    FilterSourceKind = "epg"
)

// RuleScope records whether a data-mapping rule was authored against one
// source or all sources of its kind. It is persisted and round-tripped but,
// matching the original implementation it was ported from, never gates
// which records a rule's own condition is evaluated against — see
// DESIGN.md's open-question entry on RuleScope.
type RuleScope string

const (
	RuleScopeIndividual RuleScope = "individual"
	RuleScopeSourceWide RuleScope = "source-wide"
)

// StreamSource is an upstream M3U playlist or Xtream Codes panel.
type StreamSource struct {
	ID             uuid.UUID
	Name           string
	Kind           SourceKind
	URL            string
	Username       string
	Password       string
	CronSchedule   string
	LastIngestedAt *time.Time
	LastError      string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EpgSource is an upstream XMLTV document or Xtream EPG export.
type EpgSource struct {
	ID             uuid.UUID
	Name           string
	Kind           EpgKind
	URL            string
	Username       string
	Password       string
	Timezone       string // IANA name, optional
	TimeOffset     string // textual offset e.g. "+1h30m", validated by expr.ParseTimeOffset
	CronSchedule   string
	LastIngestedAt *time.Time
	LastError      string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Channel is a single playable entry ingested from a StreamSource.
type Channel struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	DisplayName string
	StreamURL   string
	TvgID       string
	TvgName     string
	TvgChno     string
	TvgLogo     string
	TvgShift    string
	GroupTitle  string
	Removed     bool // set by a data-mapping rule's remove_channel action
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Valid reports whether the invariants from the data model hold.
func (c Channel) Valid() bool {
	return c.DisplayName != "" && c.StreamURL != ""
}

// EpgProgram is a single scheduled programme from an EpgSource.
type EpgProgram struct {
	ID           uuid.UUID
	SourceID     uuid.UUID
	ChannelID    string // string key, matched against Channel.TvgID, not a FK
	ChannelName  string
	Title        string
	Description  string
	Category     string
	Subtitle     string
	Icon         string
	Episode      string
	Season       string
	Language     string
	Rating       string
	AspectRatio  string
	StartTime    time.Time // UTC
	EndTime      time.Time // UTC
}

// Valid reports whether EndTime is strictly after StartTime, per the data model.
func (p EpgProgram) Valid() bool {
	return p.EndTime.After(p.StartTime)
}

// Filter is a user-defined include/exclude rule over channels or programs.
type Filter struct {
	ID         uuid.UUID
	Name       string
	SourceKind FilterSourceKind
	Inverse    bool // true => exclude matches
	Expression string
	CreatedAt  time.Time
}

// DataMappingRule conditionally rewrites fields on matching records.
type DataMappingRule struct {
	ID         uuid.UUID
	Name       string
	SourceKind FilterSourceKind
	Scope      RuleScope
	SortOrder  int
	Active     bool
	Expression string
	CreatedAt  time.Time
}

// ProxySource links a StreamSource to a Proxy with a priority order.
type ProxySource struct {
	ProxyID       uuid.UUID
	StreamSourceID uuid.UUID
	PriorityOrder int
}

// ProxyEpgSource links an EpgSource to a Proxy with a priority order.
type ProxyEpgSource struct {
	ProxyID       uuid.UUID
	EpgSourceID   uuid.UUID
	PriorityOrder int
}

// ProxyFilter links a Filter to a Proxy with an application order.
type ProxyFilter struct {
	ProxyID       uuid.UUID
	FilterID      uuid.UUID
	PriorityOrder int
}

// Proxy is a published aggregation: a set of sources, filters, and output rules.
type Proxy struct {
	ID                   uuid.UUID
	Slug                 string
	Name                 string
	Mode                 ProxyMode
	StartingChannelNumber int
	VersionsToKeep       int
	RelayProfileID       *uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Populated by the repository layer; not persisted as columns.
	Sources    []ProxySource
	EpgSources []ProxyEpgSource
	Filters    []ProxyFilter
}

// RelayProfile parametrizes the ffmpeg-like transcoder used by relay mode.
type RelayProfile struct {
	ID               uuid.UUID
	Name             string
	VideoCodec       string
	AudioCodec       string
	VideoBitrateKbps int
	AudioBitrateKbps int
	HardwareAccel    string // "", "vaapi", "nvenc", "qsv", ...
	SegmentSeconds   int
	SegmentCount     int
	CreatedAt        time.Time
}

// CachedLogo is a content-addressed, sandboxed logo blob fetched from a channel's tvg-logo.
type CachedLogo struct {
	CacheID     string // content hash, also the filename
	MimeType    string
	OriginalURL string
	ChannelName string
	Tags        []string
	CachedAt    time.Time
	UpdatedAt   time.Time
}

// LogoAsset is a user-uploaded logo, addressed by UUID rather than content hash.
type LogoAsset struct {
	ID        uuid.UUID
	MimeType  string
	Filename  string
	CreatedAt time.Time
}

// LastKnownCodecs records the most recently probed codec parameters for a channel,
// used to pick a RelayProfile without re-probing on every relay request.
type LastKnownCodecs struct {
	ChannelID    uuid.UUID
	VideoCodec   string
	AudioCodec   string
	Width        int
	Height       int
	ProbedAt     time.Time
}
