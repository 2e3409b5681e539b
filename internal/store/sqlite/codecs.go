package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

type CodecRepo struct{ db *DB }

func NewCodecRepo(db *DB) *CodecRepo { return &CodecRepo{db: db} }

func (r *CodecRepo) Get(ctx context.Context, channelID uuid.UUID) (*domain.LastKnownCodecs, error) {
	row := r.db.QueryRowContext(ctx, `SELECT channel_id, video_codec, audio_codec, width, height, probed_at
		FROM last_known_codecs WHERE channel_id = ?`, channelID.String())

	var c domain.LastKnownCodecs
	var cid, probedAt string
	if err := row.Scan(&cid, &c.VideoCodec, &c.AudioCodec, &c.Width, &c.Height, &probedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.ChannelID = uuid.MustParse(cid)
	c.ProbedAt, _ = time.Parse(time.RFC3339, probedAt)
	return &c, nil
}

func (r *CodecRepo) Upsert(ctx context.Context, c domain.LastKnownCodecs) error {
	return WithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `INSERT INTO last_known_codecs
			(channel_id, video_codec, audio_codec, width, height, probed_at) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET
				video_codec=excluded.video_codec, audio_codec=excluded.audio_codec,
				width=excluded.width, height=excluded.height, probed_at=excluded.probed_at`,
			c.ChannelID.String(), c.VideoCodec, c.AudioCodec, c.Width, c.Height,
			c.ProbedAt.UTC().Format(time.RFC3339))
		return err
	})
}
