package generator

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

func TestWriteXMLTVSkipsChannelsWithoutTvgID(t *testing.T) {
	channels := []domain.Channel{
		{DisplayName: "Has ID", TvgID: "has.id"},
		{DisplayName: "No ID", TvgID: ""},
		{DisplayName: "Removed", TvgID: "removed.id", Removed: true},
	}
	var buf bytes.Buffer
	if err := WriteXMLTV(&buf, channels, nil); err != nil {
		t.Fatalf("WriteXMLTV: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, `id="has.id"`) {
		t.Fatalf("expected channel with TvgID included, got:\n%s", out)
	}
	if strings.Contains(out, "No ID") || strings.Contains(out, "Removed") {
		t.Fatalf("expected channels without TvgID or marked Removed to be skipped, got:\n%s", out)
	}
}

func TestWriteXMLTVProgrammeFields(t *testing.T) {
	start := time.Date(2026, 7, 31, 20, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	programs := []domain.EpgProgram{
		{
			ChannelID:   "sports.one",
			Title:       "Big Match",
			Description: "A big match.",
			Subtitle:    "Final",
			Category:    "Sports",
			Episode:     "S01E02",
			Rating:      "PG",
			Icon:        "http://logos/match.png",
			StartTime:   start,
			EndTime:     end,
		},
	}
	var buf bytes.Buffer
	if err := WriteXMLTV(&buf, nil, programs); err != nil {
		t.Fatalf("WriteXMLTV: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Big Match", "Final", "Sports", "S01E02", "PG", "http://logos/match.png", `channel="sports.one"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if !strings.Contains(out, start.Format(xmltvTimeLayout)) {
		t.Fatalf("expected start time formatted per XMLTV layout, got:\n%s", out)
	}
}

func TestWriteXMLTVEmitsDoctypeAndHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXMLTV(&buf, nil, nil); err != nil {
		t.Fatalf("WriteXMLTV: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<?xml`) {
		t.Fatalf("expected xml header, got:\n%s", out)
	}
	if !strings.Contains(out, `<!DOCTYPE tv SYSTEM "xmltv.dtd">`) {
		t.Fatalf("expected XMLTV doctype, got:\n%s", out)
	}
}
