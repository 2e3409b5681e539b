package pipeline

import (
	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
)

// ChannelAccessor adapts a *domain.Channel to expr.FieldAccessor so the
// expression engine has one evaluation path for both channels and EPG
// programs (per the canonical-FieldID design in internal/expr).
type ChannelAccessor struct{ C *domain.Channel }

func (a ChannelAccessor) Field(id expr.FieldID, name string) (string, bool) {
	switch id {
	case expr.FieldDisplayName, expr.FieldChannelName:
		return a.C.DisplayName, true
	case expr.FieldStreamURL:
		return a.C.StreamURL, true
	case expr.FieldTvgID:
		return a.C.TvgID, true
	case expr.FieldTvgName:
		return a.C.TvgName, true
	case expr.FieldTvgChno:
		return a.C.TvgChno, true
	case expr.FieldTvgLogo:
		return a.C.TvgLogo, true
	case expr.FieldTvgShift:
		return a.C.TvgShift, true
	case expr.FieldGroupTitle:
		return a.C.GroupTitle, true
	default:
		return "", false
	}
}

func (a ChannelAccessor) SetField(id expr.FieldID, name string, value string) {
	switch id {
	case expr.FieldDisplayName, expr.FieldChannelName:
		a.C.DisplayName = value
	case expr.FieldStreamURL:
		a.C.StreamURL = value
	case expr.FieldTvgID:
		a.C.TvgID = value
	case expr.FieldTvgName:
		a.C.TvgName = value
	case expr.FieldTvgChno:
		a.C.TvgChno = value
	case expr.FieldTvgLogo:
		a.C.TvgLogo = value
	case expr.FieldTvgShift:
		a.C.TvgShift = value
	case expr.FieldGroupTitle:
		a.C.GroupTitle = value
	}
}

func (a ChannelAccessor) RemoveField(id expr.FieldID, name string) {
	a.SetField(id, name, "")
}

// EpgProgramAccessor adapts a *domain.EpgProgram to expr.FieldAccessor.
type EpgProgramAccessor struct{ P *domain.EpgProgram }

func (a EpgProgramAccessor) Field(id expr.FieldID, name string) (string, bool) {
	switch id {
	case expr.FieldTitle:
		return a.P.Title, true
	case expr.FieldDescription:
		return a.P.Description, true
	case expr.FieldCategory:
		return a.P.Category, true
	case expr.FieldSubtitle:
		return a.P.Subtitle, true
	case expr.FieldIcon:
		return a.P.Icon, true
	case expr.FieldEpisode:
		return a.P.Episode, true
	case expr.FieldSeason:
		return a.P.Season, true
	case expr.FieldLanguage:
		return a.P.Language, true
	case expr.FieldRating:
		return a.P.Rating, true
	case expr.FieldAspectRatio:
		return a.P.AspectRatio, true
	case expr.FieldChannelName:
		return a.P.ChannelName, true
	default:
		return "", false
	}
}

func (a EpgProgramAccessor) SetField(id expr.FieldID, name string, value string) {
	switch id {
	case expr.FieldTitle:
		a.P.Title = value
	case expr.FieldDescription:
		a.P.Description = value
	case expr.FieldCategory:
		a.P.Category = value
	case expr.FieldSubtitle:
		a.P.Subtitle = value
	case expr.FieldIcon:
		a.P.Icon = value
	case expr.FieldEpisode:
		a.P.Episode = value
	case expr.FieldSeason:
		a.P.Season = value
	case expr.FieldLanguage:
		a.P.Language = value
	case expr.FieldRating:
		a.P.Rating = value
	case expr.FieldAspectRatio:
		a.P.AspectRatio = value
	case expr.FieldChannelName:
		a.P.ChannelName = value
	}
}

func (a EpgProgramAccessor) RemoveField(id expr.FieldID, name string) {
	a.SetField(id, name, "")
}

// RemoveChannelField is a sentinel pseudo-field recognized by the
// data-mapping stage: a SET clause assigning to it marks the channel
// removed rather than mutating a real column.
const RemoveChannelField = "remove_channel"
