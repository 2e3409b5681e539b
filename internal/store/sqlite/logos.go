package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

type LogoRepo struct{ db *DB }

func NewLogoRepo(db *DB) *LogoRepo { return &LogoRepo{db: db} }

// GetCached looks up a content-addressed cached logo by its cache id, a
// content hash rather than a UUID. @logo:<uuid> tokens refer to
// user-uploaded LogoAsset records instead, which GetAsset looks up.
func (r *LogoRepo) GetCached(ctx context.Context, cacheID string) (*domain.CachedLogo, error) {
	row := r.db.QueryRowContext(ctx, `SELECT cache_id, mime_type, original_url, channel_name,
		tags, cached_at, updated_at FROM cached_logos WHERE cache_id = ?`, cacheID)

	var l domain.CachedLogo
	var tags sql.NullString
	var cachedAt, updatedAt string
	if err := row.Scan(&l.CacheID, &l.MimeType, &l.OriginalURL, &l.ChannelName, &tags, &cachedAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if tags.Valid && tags.String != "" {
		l.Tags = strings.Split(tags.String, ",")
	}
	l.CachedAt, _ = time.Parse(time.RFC3339, cachedAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &l, nil
}

func (r *LogoRepo) UpsertCached(ctx context.Context, l domain.CachedLogo) error {
	return WithRetry(ctx, func() error {
		now := time.Now().UTC().Format(time.RFC3339)
		_, err := r.db.ExecContext(ctx, `INSERT INTO cached_logos
			(cache_id, mime_type, original_url, channel_name, tags, cached_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(cache_id) DO UPDATE SET
				mime_type=excluded.mime_type, original_url=excluded.original_url,
				channel_name=excluded.channel_name, tags=excluded.tags, updated_at=excluded.updated_at`,
			l.CacheID, l.MimeType, l.OriginalURL, l.ChannelName, strings.Join(l.Tags, ","), now, now)
		return err
	})
}

// GetAsset resolves a user-uploaded logo by its UUID, the form an
// "@logo:<uuid>" helper token actually refers to.
func (r *LogoRepo) GetAsset(ctx context.Context, id uuid.UUID) (*domain.LogoAsset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, mime_type, filename, created_at FROM logo_assets WHERE id = ?`, id.String())

	var a domain.LogoAsset
	var aid, createdAt string
	if err := row.Scan(&aid, &a.MimeType, &a.Filename, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.ID = uuid.MustParse(aid)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func (r *LogoRepo) InsertAsset(ctx context.Context, a domain.LogoAsset) error {
	return WithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO logo_assets (id, mime_type, filename, created_at) VALUES (?, ?, ?, ?)`,
			a.ID.String(), a.MimeType, a.Filename, a.CreatedAt.UTC().Format(time.RFC3339))
		return err
	})
}
