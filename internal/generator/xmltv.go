package generator

import (
	"encoding/xml"
	"io"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

const xmltvTimeLayout = "20060102150405 -0700"

// tv is the XMLTV document root.
type tv struct {
	XMLName      xml.Name    `xml:"tv"`
	Generator    string      `xml:"generator-info-name,attr,omitempty"`
	GeneratorURL string      `xml:"generator-info-url,attr,omitempty"`
	Channels     []xmlChannel `xml:"channel"`
	Programmes   []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
	Icon        *xmlIcon `xml:"icon,omitempty"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlProgramme struct {
	Start    string     `xml:"start,attr"`
	Stop     string     `xml:"stop,attr"`
	Channel  string     `xml:"channel,attr"`
	Title    xmlTitle   `xml:"title"`
	Subtitle string     `xml:"sub-title,omitempty"`
	Desc     string     `xml:"desc,omitempty"`
	Category []string   `xml:"category,omitempty"`
	Episode  string     `xml:"episode-num,omitempty"`
	Rating   *xmlRating `xml:"rating,omitempty"`
	Icon     *xmlIcon   `xml:"icon,omitempty"`
}

type xmlTitle struct {
	Lang string `xml:"lang,attr,omitempty"`
	Text string `xml:",chardata"`
}

type xmlRating struct {
	Value string `xml:"value"`
}

// WriteXMLTV converts the surviving channels and programmes of one
// pipeline run into an XMLTV document and encodes it to w. Channels
// without a TvgID are omitted from the <channel> list (XMLTV requires a
// stable id); a channel with no TvgID has no programmes matched against
// it in the first place, by construction of the helper-resolution
// stage's join.
func WriteXMLTV(w io.Writer, channels []domain.Channel, programs []domain.EpgProgram) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `<!DOCTYPE tv SYSTEM "xmltv.dtd">`+"\n"); err != nil {
		return err
	}

	doc := tv{Generator: "m3u-proxy", GeneratorURL: "https://github.com/m3uproxy/m3uproxy"}
	for _, ch := range channels {
		if ch.Removed || ch.TvgID == "" {
			continue
		}
		xc := xmlChannel{ID: ch.TvgID, DisplayName: []string{ch.DisplayName}}
		if ch.TvgLogo != "" {
			xc.Icon = &xmlIcon{Src: ch.TvgLogo}
		}
		doc.Channels = append(doc.Channels, xc)
	}
	for _, p := range programs {
		xp := xmlProgramme{
			Start:    p.StartTime.Format(xmltvTimeLayout),
			Stop:     p.EndTime.Format(xmltvTimeLayout),
			Channel:  p.ChannelID,
			Title:    xmlTitle{Lang: p.Language, Text: p.Title},
			Subtitle: p.Subtitle,
			Desc:     p.Description,
		}
		if p.Category != "" {
			xp.Category = []string{p.Category}
		}
		if p.Episode != "" {
			xp.Episode = p.Episode
		}
		if p.Rating != "" {
			xp.Rating = &xmlRating{Value: p.Rating}
		}
		if p.Icon != "" {
			xp.Icon = &xmlIcon{Src: p.Icon}
		}
		doc.Programmes = append(doc.Programmes, xp)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}
