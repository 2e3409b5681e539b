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

const epgProgramFields = 14

type EpgRepo struct{ db *DB }

func NewEpgRepo(db *DB) *EpgRepo { return &EpgRepo{db: db} }

// ReplaceForSource swaps in a freshly-ingested program set for one EPG
// source, batched per ParameterLimit like ChannelRepo.ReplaceForSource.
func (r *EpgRepo) ReplaceForSource(ctx context.Context, sourceID uuid.UUID, programs []domain.EpgProgram) error {
	return WithRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM epg_programs WHERE source_id = ?`, sourceID.String()); err != nil {
			return err
		}

		batchSize := BatchSize(epgProgramFields + 1)
		for i := 0; i < len(programs); i += batchSize {
			end := i + batchSize
			if end > len(programs) {
				end = len(programs)
			}
			if err := insertProgramBatch(ctx, tx, sourceID, programs[i:end]); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func insertProgramBatch(ctx context.Context, tx *sql.Tx, sourceID uuid.UUID, batch []domain.EpgProgram) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO epg_programs
		(id, source_id, channel_id, title, description, category, subtitle, icon,
		 episode, season, language, rating, aspect_ratio, start_time, end_time) VALUES `)

	args := make([]any, 0, len(batch)*(epgProgramFields+1))
	for i, p := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		id := p.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		args = append(args, id.String(), sourceID.String(), p.ChannelID, p.Title, p.Description,
			p.Category, p.Subtitle, p.Icon, p.Episode, p.Season, p.Language, p.Rating,
			p.AspectRatio, p.StartTime.UTC().Format(time.RFC3339), p.EndTime.UTC().Format(time.RFC3339))
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("sqlite: insert epg program batch: %w", err)
	}
	return nil
}

// ListWindow returns programs for sourceID whose [start,end) window overlaps
// [from,to). The pipeline loader passes an unbounded window to read a
// source's whole programme set.
func (r *EpgRepo) ListWindow(ctx context.Context, sourceID uuid.UUID, from, to time.Time) ([]domain.EpgProgram, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, channel_id, title, description, category,
		subtitle, icon, episode, season, language, rating, aspect_ratio, start_time, end_time
		FROM epg_programs WHERE source_id = ? AND start_time < ? AND end_time > ?
		ORDER BY channel_id, start_time`,
		sourceID.String(), to.UTC().Format(time.RFC3339), from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EpgProgram
	for rows.Next() {
		var p domain.EpgProgram
		var id, start, end string
		if err := rows.Scan(&id, &p.ChannelID, &p.Title, &p.Description, &p.Category,
			&p.Subtitle, &p.Icon, &p.Episode, &p.Season, &p.Language, &p.Rating,
			&p.AspectRatio, &start, &end); err != nil {
			return nil, err
		}
		p.ID = uuid.MustParse(id)
		p.SourceID = sourceID
		p.StartTime, _ = time.Parse(time.RFC3339, start)
		p.EndTime, _ = time.Parse(time.RFC3339, end)
		out = append(out, p)
	}
	return out, rows.Err()
}
