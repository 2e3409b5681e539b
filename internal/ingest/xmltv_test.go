package ingest

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

const sampleXMLTV = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="sky1.uk">
    <display-name>Sky One</display-name>
  </channel>
  <programme start="20260102120000 +0000" stop="20260102130000 +0000" channel="sky1.uk">
    <title>Test Programme</title>
    <desc>A description</desc>
    <category>Drama</category>
  </programme>
</tv>`

func TestParseXMLTV(t *testing.T) {
	sourceID := uuid.New()
	var channels []xmltvChannelRef
	var programs []domain.EpgProgram

	err := ParseXMLTV(strings.NewReader(sampleXMLTV), sourceID, 0,
		func(c xmltvChannelRef) error { channels = append(channels, c); return nil },
		func(p domain.EpgProgram) error { programs = append(programs, p); return nil },
	)
	if err != nil {
		t.Fatalf("ParseXMLTV: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != "sky1.uk" {
		t.Fatalf("unexpected channels: %+v", channels)
	}
	if len(programs) != 1 {
		t.Fatalf("expected 1 programme, got %d", len(programs))
	}
	p := programs[0]
	if p.Title != "Test Programme" || p.ChannelID != "sky1.uk" {
		t.Fatalf("unexpected programme: %+v", p)
	}
	if !p.EndTime.After(p.StartTime) {
		t.Fatalf("expected end after start")
	}
}

func TestParseXMLTVAppliesTimeOffset(t *testing.T) {
	sourceID := uuid.New()
	var programs []domain.EpgProgram
	err := ParseXMLTV(strings.NewReader(sampleXMLTV), sourceID, 3600,
		func(c xmltvChannelRef) error { return nil },
		func(p domain.EpgProgram) error { programs = append(programs, p); return nil },
	)
	if err != nil {
		t.Fatalf("ParseXMLTV: %v", err)
	}
	if programs[0].StartTime.Hour() != 13 {
		t.Fatalf("expected +1h offset applied, got hour %d", programs[0].StartTime.Hour())
	}
}
