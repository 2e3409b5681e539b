package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

type ProxyRepo struct{ db *DB }

func NewProxyRepo(db *DB) *ProxyRepo { return &ProxyRepo{db: db} }

func (r *ProxyRepo) GetBySlug(ctx context.Context, slug string) (*domain.Proxy, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, slug, name, mode, starting_channel_number,
		versions_to_keep, relay_profile_id, created_at, updated_at FROM proxies WHERE slug = ?`, slug)

	var p domain.Proxy
	var id, mode, createdAt, updatedAt string
	var relayProfileID sql.NullString
	if err := row.Scan(&id, &p.Slug, &p.Name, &mode, &p.StartingChannelNumber,
		&p.VersionsToKeep, &relayProfileID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.ID = uuid.MustParse(id)
	p.Mode = domain.ProxyMode(mode)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if relayProfileID.Valid {
		id := uuid.MustParse(relayProfileID.String)
		p.RelayProfileID = &id
	}

	sources, err := r.listSources(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Sources = sources

	epgSources, err := r.listEpgSources(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.EpgSources = epgSources

	filters, err := r.listFilters(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Filters = filters

	return &p, nil
}

func (r *ProxyRepo) listSources(ctx context.Context, proxyID uuid.UUID) ([]domain.ProxySource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source_id, priority_order FROM proxy_sources WHERE proxy_id = ? ORDER BY priority_order`,
		proxyID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProxySource
	for rows.Next() {
		var s domain.ProxySource
		var sourceID string
		if err := rows.Scan(&sourceID, &s.PriorityOrder); err != nil {
			return nil, err
		}
		s.ProxyID = proxyID
		s.StreamSourceID = uuid.MustParse(sourceID)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ProxyRepo) listEpgSources(ctx context.Context, proxyID uuid.UUID) ([]domain.ProxyEpgSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT epg_source_id, priority_order FROM proxy_epg_sources WHERE proxy_id = ? ORDER BY priority_order`,
		proxyID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProxyEpgSource
	for rows.Next() {
		var s domain.ProxyEpgSource
		var epgID string
		if err := rows.Scan(&epgID, &s.PriorityOrder); err != nil {
			return nil, err
		}
		s.ProxyID = proxyID
		s.EpgSourceID = uuid.MustParse(epgID)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ProxyRepo) listFilters(ctx context.Context, proxyID uuid.UUID) ([]domain.ProxyFilter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT filter_id, priority_order FROM proxy_filters WHERE proxy_id = ? ORDER BY priority_order`,
		proxyID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProxyFilter
	for rows.Next() {
		var f domain.ProxyFilter
		var filterID string
		if err := rows.Scan(&filterID, &f.PriorityOrder); err != nil {
			return nil, err
		}
		f.ProxyID = proxyID
		f.FilterID = uuid.MustParse(filterID)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *ProxyRepo) ListAll(ctx context.Context) ([]domain.Proxy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slug FROM proxies ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			rows.Close()
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	rows.Close()

	out := make([]domain.Proxy, 0, len(slugs))
	for _, slug := range slugs {
		p, err := r.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProxyRepo) GetRelayProfile(ctx context.Context, id uuid.UUID) (*domain.RelayProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, video_codec, audio_codec,
		video_bitrate_kbps, audio_bitrate_kbps, hardware_accel, segment_seconds, segment_count, created_at
		FROM relay_profiles WHERE id = ?`, id.String())

	var p domain.RelayProfile
	var pid, createdAt string
	if err := row.Scan(&pid, &p.Name, &p.VideoCodec, &p.AudioCodec, &p.VideoBitrateKbps,
		&p.AudioBitrateKbps, &p.HardwareAccel, &p.SegmentSeconds, &p.SegmentCount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.ID = uuid.MustParse(pid)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}
