package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// XtreamClient speaks the Xtream Codes panel API (player_api.php) for
// live-stream listings (get_live_streams) and per-stream EPG
// (get_short_epg). The panel's xmltv.php export is not used.
type XtreamClient struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

func NewXtreamClient(baseURL, username, password string, client *http.Client) *XtreamClient {
	return &XtreamClient{BaseURL: baseURL, Username: username, Password: password, HTTP: client}
}

func (c *XtreamClient) apiURL(action string, extra url.Values) string {
	v := url.Values{}
	v.Set("username", c.Username)
	v.Set("password", c.Password)
	if action != "" {
		v.Set("action", action)
	}
	for k, vs := range extra {
		for _, val := range vs {
			v.Add(k, val)
		}
	}
	return fmt.Sprintf("%s/player_api.php?%s", c.BaseURL, v.Encode())
}

type xtreamLiveStream struct {
	Num         int    `json:"num"`
	Name        string `json:"name"`
	StreamID    int    `json:"stream_id"`
	StreamIcon  string `json:"stream_icon"`
	EPGChannelID string `json:"epg_channel_id"`
	CategoryName string `json:"category_name"`
}

// ListLiveStreams fetches get_live_streams and converts each entry into a
// Channel whose StreamURL points at this panel's live-stream endpoint
// (http(s)://host/<user>/<pass>/<stream_id>).
func (c *XtreamClient) ListLiveStreams(ctx context.Context, sourceID uuid.UUID) ([]domain.Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("get_live_streams", nil), nil)
	if err != nil {
		return nil, err
	}
	resp, err := FetchWithRetry(ctx, c.HTTP, req, DefaultRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("xtream: get_live_streams: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("xtream: get_live_streams returned HTTP %d", resp.StatusCode)
	}

	var streams []xtreamLiveStream
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("xtream: decode get_live_streams: %w", err)
	}

	out := make([]domain.Channel, 0, len(streams))
	for _, s := range streams {
		ch := domain.Channel{
			ID:          uuid.New(),
			SourceID:    sourceID,
			DisplayName: s.Name,
			StreamURL:   fmt.Sprintf("%s/%s/%s/%d", c.BaseURL, c.Username, c.Password, s.StreamID),
			TvgID:       s.EPGChannelID,
			TvgChno:     fmt.Sprintf("%d", s.Num),
			TvgLogo:     s.StreamIcon,
			GroupTitle:  s.CategoryName,
		}
		if ch.Valid() {
			out = append(out, ch)
		}
	}
	return out, nil
}

type xtreamShortEpgEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"` // "2026-01-02 03:04:05"
	End         string `json:"end"`
}

type xtreamShortEpgResponse struct {
	EpgListings []xtreamShortEpgEntry `json:"epg_listings"`
}

const xtreamEpgTimeLayout = "2006-01-02 15:04:05"

// FetchShortEPG retrieves the rolling program guide for one stream id via
// get_short_epg, the lowest-latency Xtream EPG endpoint.
func (c *XtreamClient) FetchShortEPG(ctx context.Context, sourceID uuid.UUID, streamID, channelRef string, limit int) ([]domain.EpgProgram, error) {
	extra := url.Values{"stream_id": {streamID}}
	if limit > 0 {
		extra.Set("limit", fmt.Sprintf("%d", limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("get_short_epg", extra), nil)
	if err != nil {
		return nil, err
	}
	resp, err := FetchWithRetry(ctx, c.HTTP, req, DefaultRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("xtream: get_short_epg: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("xtream: get_short_epg returned HTTP %d", resp.StatusCode)
	}

	var parsed xtreamShortEpgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("xtream: decode get_short_epg: %w", err)
	}

	out := make([]domain.EpgProgram, 0, len(parsed.EpgListings))
	for _, e := range parsed.EpgListings {
		start, err1 := time.Parse(xtreamEpgTimeLayout, e.Start)
		end, err2 := time.Parse(xtreamEpgTimeLayout, e.End)
		if err1 != nil || err2 != nil {
			continue
		}
		p := domain.EpgProgram{
			ID:          uuid.New(),
			SourceID:    sourceID,
			ChannelID:   channelRef,
			Title:       e.Title,
			Description: e.Description,
			StartTime:   start.UTC(),
			EndTime:     end.UTC(),
		}
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out, nil
}
