package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// SourceRepo persists StreamSource and EpgSource definitions.
type SourceRepo struct{ db *DB }

func NewSourceRepo(db *DB) *SourceRepo { return &SourceRepo{db: db} }

func (r *SourceRepo) ListStreamSources(ctx context.Context) ([]domain.StreamSource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind, url, username, password,
		cron_schedule, last_ingested_at, last_error, active, created_at, updated_at
		FROM stream_sources ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreamSource
	for rows.Next() {
		var s domain.StreamSource
		var id string
		var lastIngested, lastError sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&id, &s.Name, &s.Kind, &s.URL, &s.Username, &s.Password,
			&s.CronSchedule, &lastIngested, &lastError, &s.Active, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.ID = uuid.MustParse(id)
		if lastIngested.Valid {
			t, err := time.Parse(time.RFC3339, lastIngested.String)
			if err == nil {
				s.LastIngestedAt = &t
			}
		}
		if lastError.Valid {
			s.LastError = lastError.String
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SourceRepo) UpsertStreamSource(ctx context.Context, s domain.StreamSource) error {
	return WithRetry(ctx, func() error {
		var lastIngested any
		if s.LastIngestedAt != nil {
			lastIngested = s.LastIngestedAt.Format(time.RFC3339)
		}
		_, err := r.db.ExecContext(ctx, `INSERT INTO stream_sources
			(id, name, kind, url, username, password, cron_schedule, last_ingested_at,
			 last_error, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name=excluded.name, kind=excluded.kind, url=excluded.url,
				username=excluded.username, password=excluded.password,
				cron_schedule=excluded.cron_schedule, last_ingested_at=excluded.last_ingested_at,
				last_error=excluded.last_error, active=excluded.active, updated_at=excluded.updated_at`,
			s.ID.String(), s.Name, s.Kind, s.URL, s.Username, s.Password, s.CronSchedule,
			lastIngested, s.LastError, s.Active,
			s.CreatedAt.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

func (r *SourceRepo) MarkIngested(ctx context.Context, id uuid.UUID, at time.Time, ingestErr error) error {
	return WithRetry(ctx, func() error {
		var errMsg any
		if ingestErr != nil {
			errMsg = ingestErr.Error()
		}
		_, err := r.db.ExecContext(ctx,
			`UPDATE stream_sources SET last_ingested_at = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			at.Format(time.RFC3339), errMsg, time.Now().UTC().Format(time.RFC3339), id.String())
		return err
	})
}

func (r *SourceRepo) ListEpgSources(ctx context.Context) ([]domain.EpgSource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind, url, username, password,
		timezone, time_offset, cron_schedule, last_ingested_at, last_error, active, created_at, updated_at
		FROM epg_sources ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EpgSource
	for rows.Next() {
		var s domain.EpgSource
		var id string
		var lastIngested, lastError sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&id, &s.Name, &s.Kind, &s.URL, &s.Username, &s.Password,
			&s.Timezone, &s.TimeOffset, &s.CronSchedule, &lastIngested, &lastError,
			&s.Active, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.ID = uuid.MustParse(id)
		if lastIngested.Valid {
			t, err := time.Parse(time.RFC3339, lastIngested.String)
			if err == nil {
				s.LastIngestedAt = &t
			}
		}
		if lastError.Valid {
			s.LastError = lastError.String
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
