package expr

import "strings"

// FieldID is the canonical integer form of a field name, resolved once at
// parse time so the hot evaluation path never does string dispatch (spec
// section 9: "Avoid per-field virtual dispatch in hot paths by
// canonicalizing field names to a small integer enum at parse time").
type FieldID int

const (
	FieldUnknown FieldID = iota
	FieldDisplayName
	FieldStreamURL
	FieldTvgID
	FieldTvgName
	FieldTvgChno
	FieldTvgLogo
	FieldTvgShift
	FieldGroupTitle
	FieldChannelName // alias for DisplayName used by some upstream rule sets
	FieldTitle
	FieldDescription
	FieldCategory
	FieldSubtitle
	FieldIcon
	FieldEpisode
	FieldSeason
	FieldLanguage
	FieldRating
	FieldAspectRatio
	FieldStartTime
	FieldEndTime
)

var fieldNames = map[string]FieldID{
	"display_name": FieldDisplayName,
	"channel_name": FieldChannelName,
	"stream_url":   FieldStreamURL,
	"tvg_id":       FieldTvgID,
	"tvg_name":     FieldTvgName,
	"tvg_chno":     FieldTvgChno,
	"tvg_logo":     FieldTvgLogo,
	"tvg_shift":    FieldTvgShift,
	"group_title":  FieldGroupTitle,
	"title":        FieldTitle,
	"description":  FieldDescription,
	"category":     FieldCategory,
	"subtitle":     FieldSubtitle,
	"icon":         FieldIcon,
	"episode":      FieldEpisode,
	"season":       FieldSeason,
	"language":     FieldLanguage,
	"rating":       FieldRating,
	"aspect_ratio": FieldAspectRatio,
	"start_time":   FieldStartTime,
	"end_time":     FieldEndTime,
}

// ResolveField canonicalizes a field name from source text. Unknown names
// still resolve (to FieldUnknown) so that accessors can fall back to a
// dynamic lookup; this keeps the parser permissive for custom/future fields.
func ResolveField(name string) FieldID {
	if id, ok := fieldNames[strings.ToLower(name)]; ok {
		return id
	}
	return FieldUnknown
}

// FieldAccessor abstracts the record type being evaluated: channels and EPG
// programs both implement it so the engine has one evaluation path.
type FieldAccessor interface {
	// Field returns the string value of a canonical field, and whether the
	// field exists on this record type at all (distinct from being empty).
	Field(id FieldID, name string) (value string, ok bool)

	// SetField assigns a new string value to a field, used when applying a
	// data-mapping rule's SET clause. Implementations for record types with
	// immutable fields may ignore unknown ids.
	SetField(id FieldID, name string, value string)

	// RemoveField clears a field entirely (distinct from setting it to "").
	RemoveField(id FieldID, name string)
}
