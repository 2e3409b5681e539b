package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// ChannelRepo persists Channel records. channelFields must match the column
// list used by ReplaceForSource's batch insert so BatchSize's clamp stays
// correct if the schema grows a column.
const channelFields = 13

type ChannelRepo struct{ db *DB }

func NewChannelRepo(db *DB) *ChannelRepo { return &ChannelRepo{db: db} }

// ReplaceForSource swaps in a freshly-ingested channel set for one source
// inside a single transaction, batching inserts to respect SQLite's bound
// parameter limit.
func (r *ChannelRepo) ReplaceForSource(ctx context.Context, sourceID uuid.UUID, channels []domain.Channel) error {
	return WithRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE source_id = ?`, sourceID.String()); err != nil {
			return err
		}

		batchSize := BatchSize(channelFields)
		for i := 0; i < len(channels); i += batchSize {
			end := i + batchSize
			if end > len(channels) {
				end = len(channels)
			}
			if err := insertChannelBatch(ctx, tx, channels[i:end]); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func insertChannelBatch(ctx context.Context, tx *sql.Tx, batch []domain.Channel) error {
	if len(batch) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO channels
		(id, source_id, display_name, stream_url, tvg_id, tvg_name, tvg_chno,
		 tvg_logo, tvg_shift, group_title, removed, created_at, updated_at) VALUES `)

	args := make([]any, 0, len(batch)*channelFields)
	now := time.Now().UTC().Format(time.RFC3339)
	for i, c := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		args = append(args, id.String(), c.SourceID.String(), c.DisplayName, c.StreamURL,
			c.TvgID, c.TvgName, c.TvgChno, c.TvgLogo, c.TvgShift, c.GroupTitle, c.Removed, now, now)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("sqlite: insert channel batch: %w", err)
	}
	return nil
}

// GetByID fetches a single channel regardless of its removed state, for
// streaming handlers that resolve a channel directly by ID.
func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, source_id, display_name, stream_url,
		tvg_id, tvg_name, tvg_chno, tvg_logo, tvg_shift, group_title, removed, created_at, updated_at
		FROM channels WHERE id = ?`, id.String())

	var c domain.Channel
	var cid, srcID, createdAt, updatedAt string
	if err := row.Scan(&cid, &srcID, &c.DisplayName, &c.StreamURL, &c.TvgID, &c.TvgName,
		&c.TvgChno, &c.TvgLogo, &c.TvgShift, &c.GroupTitle, &c.Removed, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.ID = uuid.MustParse(cid)
	c.SourceID = uuid.MustParse(srcID)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// ListBySource returns all non-removed channels for sourceID in insertion order.
func (r *ChannelRepo) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, source_id, display_name, stream_url,
		tvg_id, tvg_name, tvg_chno, tvg_logo, tvg_shift, group_title, removed, created_at, updated_at
		FROM channels WHERE source_id = ? AND removed = 0 ORDER BY created_at, rowid`, sourceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var c domain.Channel
		var id, srcID, createdAt, updatedAt string
		if err := rows.Scan(&id, &srcID, &c.DisplayName, &c.StreamURL, &c.TvgID, &c.TvgName,
			&c.TvgChno, &c.TvgLogo, &c.TvgShift, &c.GroupTitle, &c.Removed, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.ID = uuid.MustParse(id)
		c.SourceID = uuid.MustParse(srcID)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
