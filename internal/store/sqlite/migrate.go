package sqlite

import "context"

// schema is applied idempotently with `CREATE TABLE IF NOT EXISTS` rather
// than a numbered migration chain; the domain model is young enough that a
// single additive schema file is simpler than a migrations directory, and
// the teacher's own persistence layer favors directly-applied DDL over a
// migration framework.
const schema = `
CREATE TABLE IF NOT EXISTS stream_sources (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	url             TEXT NOT NULL,
	username        TEXT,
	password        TEXT,
	cron_schedule   TEXT,
	last_ingested_at TEXT,
	last_error      TEXT,
	active          INTEGER NOT NULL DEFAULT 1,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS epg_sources (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	url             TEXT NOT NULL,
	username        TEXT,
	password        TEXT,
	timezone        TEXT,
	time_offset     TEXT,
	cron_schedule   TEXT,
	last_ingested_at TEXT,
	last_error      TEXT,
	active          INTEGER NOT NULL DEFAULT 1,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL REFERENCES stream_sources(id) ON DELETE CASCADE,
	display_name TEXT NOT NULL,
	stream_url   TEXT NOT NULL,
	tvg_id       TEXT,
	tvg_name     TEXT,
	tvg_chno     TEXT,
	tvg_logo     TEXT,
	tvg_shift    TEXT,
	group_title  TEXT,
	removed      INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_channels_source ON channels(source_id);

CREATE TABLE IF NOT EXISTS epg_programs (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES epg_sources(id) ON DELETE CASCADE,
	channel_id TEXT NOT NULL,
	title       TEXT,
	description TEXT,
	category    TEXT,
	subtitle    TEXT,
	icon        TEXT,
	episode     TEXT,
	season      TEXT,
	language    TEXT,
	rating      TEXT,
	aspect_ratio TEXT,
	start_time  TEXT NOT NULL,
	end_time    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_epg_programs_source_channel ON epg_programs(source_id, channel_id);
CREATE INDEX IF NOT EXISTS idx_epg_programs_window ON epg_programs(start_time, end_time);

CREATE TABLE IF NOT EXISTS filters (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	inverse     INTEGER NOT NULL DEFAULT 0,
	expression  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS data_mapping_rules (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	scope       TEXT NOT NULL,
	sort_order  INTEGER NOT NULL DEFAULT 0,
	active      INTEGER NOT NULL DEFAULT 1,
	expression  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_data_mapping_rules_order ON data_mapping_rules(sort_order, created_at);

CREATE TABLE IF NOT EXISTS relay_profiles (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	video_codec        TEXT NOT NULL,
	audio_codec        TEXT NOT NULL,
	video_bitrate_kbps INTEGER NOT NULL DEFAULT 0,
	audio_bitrate_kbps INTEGER NOT NULL DEFAULT 0,
	hardware_accel     TEXT,
	segment_seconds    INTEGER NOT NULL DEFAULT 6,
	segment_count      INTEGER NOT NULL DEFAULT 5,
	created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS proxies (
	id                      TEXT PRIMARY KEY,
	slug                    TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL,
	mode                    TEXT NOT NULL,
	starting_channel_number INTEGER NOT NULL DEFAULT 1,
	versions_to_keep        INTEGER NOT NULL DEFAULT 3,
	relay_profile_id        TEXT REFERENCES relay_profiles(id),
	created_at              TEXT NOT NULL,
	updated_at              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS proxy_sources (
	proxy_id       TEXT NOT NULL REFERENCES proxies(id) ON DELETE CASCADE,
	source_id      TEXT NOT NULL REFERENCES stream_sources(id) ON DELETE CASCADE,
	priority_order  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (proxy_id, source_id)
);

CREATE TABLE IF NOT EXISTS proxy_epg_sources (
	proxy_id       TEXT NOT NULL REFERENCES proxies(id) ON DELETE CASCADE,
	epg_source_id  TEXT NOT NULL REFERENCES epg_sources(id) ON DELETE CASCADE,
	priority_order  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (proxy_id, epg_source_id)
);

CREATE TABLE IF NOT EXISTS proxy_filters (
	proxy_id       TEXT NOT NULL REFERENCES proxies(id) ON DELETE CASCADE,
	filter_id      TEXT NOT NULL REFERENCES filters(id) ON DELETE CASCADE,
	priority_order  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (proxy_id, filter_id)
);

CREATE TABLE IF NOT EXISTS cached_logos (
	cache_id      TEXT PRIMARY KEY,
	mime_type     TEXT NOT NULL,
	original_url  TEXT NOT NULL,
	channel_name  TEXT,
	tags          TEXT,
	cached_at     TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS logo_assets (
	id         TEXT PRIMARY KEY,
	mime_type  TEXT NOT NULL,
	filename   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS last_known_codecs (
	channel_id  TEXT PRIMARY KEY,
	video_codec TEXT,
	audio_codec TEXT,
	width       INTEGER,
	height      INTEGER,
	probed_at   TEXT NOT NULL
);
`

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, db *DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
