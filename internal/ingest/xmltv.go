package ingest

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
)

// xmltvProgramme mirrors the subset of the XMLTV <programme> element this
// ingester understands; unknown elements are ignored by xml.Decoder.
type xmltvProgramme struct {
	Channel string `xml:"channel,attr"`
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Title   struct {
		Value string `xml:",chardata"`
	} `xml:"title"`
	SubTitle struct {
		Value string `xml:",chardata"`
	} `xml:"sub-title"`
	Desc struct {
		Value string `xml:",chardata"`
	} `xml:"desc"`
	Category []struct {
		Value string `xml:",chardata"`
	} `xml:"category"`
	Episode []struct {
		System string `xml:"system,attr"`
		Value  string `xml:",chardata"`
	} `xml:"episode-num"`
	Icon struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
	Language struct {
		Value string `xml:",chardata"`
	} `xml:"language"`
	Rating struct {
		Value struct {
			Text string `xml:",chardata"`
		} `xml:"value"`
	} `xml:"rating"`
}

// xmltvChannel mirrors <channel id="..."><display-name>...</display-name></channel>.
type xmltvChannel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
}

// ParseXMLTV streams <channel> and <programme> elements from r without
// materializing the whole document tree, applying timeOffset (parsed by
// expr.ParseTimeOffset) to every programme's start/stop time. XXE is not a
// concern here: encoding/xml never resolves external entities or DTDs.
func ParseXMLTV(r io.Reader, sourceID uuid.UUID, timeOffsetSeconds int,
	emitChannel func(xmltvChannelRef) error, emitProgramme func(domain.EpgProgram) error) error {

	dec := xml.NewDecoder(r)
	dec.Strict = true

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ingest: xmltv token: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "channel":
			var ch xmltvChannel
			if err := dec.DecodeElement(&ch, &start); err != nil {
				return fmt.Errorf("ingest: decode xmltv channel: %w", err)
			}
			if ch.ID == "" {
				continue
			}
			if err := emitChannel(xmltvChannelRef{ID: ch.ID, DisplayNames: ch.DisplayName}); err != nil {
				return err
			}
		case "programme":
			var p xmltvProgramme
			if err := dec.DecodeElement(&p, &start); err != nil {
				return fmt.Errorf("ingest: decode xmltv programme: %w", err)
			}
			program, ok := xmltvToProgram(p, sourceID, timeOffsetSeconds)
			if !ok {
				continue
			}
			if err := emitProgramme(program); err != nil {
				return err
			}
		}
	}
	return nil
}

// xmltvChannelRef is the minimal channel-mapping data an XMLTV <channel>
// element carries, handed to ParseXMLTV's emitChannel callback. Runner
// discards these refs: stored programmes keep only their channel attribute.
type xmltvChannelRef struct {
	ID           string
	DisplayNames []string
}

const xmltvTimeLayout = "20060102150405 -0700"

func xmltvToProgram(p xmltvProgramme, sourceID uuid.UUID, offsetSeconds int) (domain.EpgProgram, bool) {
	start, err := time.Parse(xmltvTimeLayout, p.Start)
	if err != nil {
		return domain.EpgProgram{}, false
	}
	end, err := time.Parse(xmltvTimeLayout, p.Stop)
	if err != nil {
		return domain.EpgProgram{}, false
	}

	start = expr.ApplyTimeOffset(start.UTC(), offsetSeconds)
	end = expr.ApplyTimeOffset(end.UTC(), offsetSeconds)

	var categories []string
	for _, c := range p.Category {
		categories = append(categories, c.Value)
	}

	var episode string
	for _, e := range p.Episode {
		if e.System == "xmltv_ns" || episode == "" {
			episode = e.Value
		}
	}

	program := domain.EpgProgram{
		ID:          uuid.New(),
		SourceID:    sourceID,
		ChannelID:   p.Channel,
		Title:       p.Title.Value,
		Description: p.Desc.Value,
		Category:    strings.Join(categories, ","),
		Subtitle:    p.SubTitle.Value,
		Icon:        p.Icon.Src,
		Episode:     episode,
		Language:    p.Language.Value,
		Rating:      p.Rating.Value.Text,
		StartTime:   start,
		EndTime:     end,
	}
	if !program.Valid() {
		return domain.EpgProgram{}, false
	}
	return program, true
}
