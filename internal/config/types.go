// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon's runtime configuration from a TOML
// file (overlaid by environment variables) and supports hot reload via
// an fsnotify-watched file, mirroring the teacher's Loader/ConfigHolder
// split: Loader resolves precedence once, Holder holds the live,
// atomically-swappable result for the rest of the process.
package config

import "time"

// AppConfig is the fully-resolved runtime configuration, after file load,
// env overlay, and defaulting.
type AppConfig struct {
	Version string

	LogLevel   string
	LogService string

	HTTP      HTTPConfig
	Store     StoreConfig
	Ingest    IngestConfig
	Streaming StreamingConfig
	Schedule  ScheduleConfig
	FFmpeg    FFmpegConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// HTTPConfig controls the daemon's listen address and request timeouts.
type HTTPConfig struct {
	ListenAddr      string
	PublicBaseURL   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	UpstreamTimeout time.Duration
}

// StoreConfig points at the SQLite database and the directories where
// generated M3U/XMLTV artifacts, spooled downloads, and cached logos are
// written.
type StoreConfig struct {
	DatabasePath string
	ArtifactDir  string
	SandboxDir   string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// IngestConfig bounds how many sources may be fetched/parsed concurrently.
// FetchTimeout is loaded and defaulted but no fetch path reads it:
// ingestion fetches run on a connect-timeout-only client.
type IngestConfig struct {
	MaxConcurrency int
	FetchTimeout   time.Duration
}

// StreamingConfig controls per-host upstream rate limiting and idle
// session reaping for the streaming proxy's redirect/proxy/relay handlers.
type StreamingConfig struct {
	PerHostRequestsPerSecond float64
	PerHostBurst             int
	IdleSessionTimeout       time.Duration
}

// ScheduleConfig sets the cron expression on which every active source is
// ingested, and the proxy-regeneration trigger cadence. A source's own
// CronSchedule is stored but not consulted by the scheduler.
type ScheduleConfig struct {
	DefaultIngestCron string
	RegenerateCron    string
}

// FFmpegConfig locates the ffmpeg binary used by relay-mode transcoding.
type FFmpegConfig struct {
	Bin string
}

// RedisConfig optionally mirrors streamproxy.SessionTracker's active
// sessions into redis, so a multi-instance deployment's session listing
// reflects sessions held by every instance rather than just the one a
// status request happens to land on. An empty Addr disables mirroring.
type RedisConfig struct {
	Addr      string
	KeyPrefix string
}

// TelemetryConfig controls OpenTelemetry trace export; disabled by default
// (internal/telemetry.NewProvider installs a noop tracer provider when
// Enabled is false).
type TelemetryConfig struct {
	Enabled      bool
	ExporterType string
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the strict TOML structure read from disk; every field is
// optional so a config file may set only what it needs to override.
type FileConfig struct {
	LogLevel   string `toml:"log_level,omitempty"`
	LogService string `toml:"log_service,omitempty"`

	HTTP      *FileHTTPConfig      `toml:"http,omitempty"`
	Store     *FileStoreConfig     `toml:"store,omitempty"`
	Ingest    *FileIngestConfig    `toml:"ingest,omitempty"`
	Streaming *FileStreamingConfig `toml:"streaming,omitempty"`
	Schedule  *FileScheduleConfig  `toml:"schedule,omitempty"`
	FFmpeg    *FileFFmpegConfig    `toml:"ffmpeg,omitempty"`
	Redis     *FileRedisConfig     `toml:"redis,omitempty"`
	Telemetry *FileTelemetryConfig `toml:"telemetry,omitempty"`
}

type FileHTTPConfig struct {
	ListenAddr      string `toml:"listen_addr,omitempty"`
	PublicBaseURL   string `toml:"public_base_url,omitempty"`
	ReadTimeout     string `toml:"read_timeout,omitempty"`
	WriteTimeout    string `toml:"write_timeout,omitempty"`
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
}

type FileStoreConfig struct {
	DatabasePath string `toml:"database_path,omitempty"`
	ArtifactDir  string `toml:"artifact_dir,omitempty"`
	SandboxDir   string `toml:"sandbox_dir,omitempty"`
	BusyTimeout  string `toml:"busy_timeout,omitempty"`
	MaxOpenConns int    `toml:"max_open_conns,omitempty"`
}

type FileIngestConfig struct {
	MaxConcurrency int    `toml:"max_concurrency,omitempty"`
	FetchTimeout   string `toml:"fetch_timeout,omitempty"`
}

type FileStreamingConfig struct {
	PerHostRequestsPerSecond float64 `toml:"per_host_requests_per_second,omitempty"`
	PerHostBurst             int     `toml:"per_host_burst,omitempty"`
	IdleSessionTimeout       string  `toml:"idle_session_timeout,omitempty"`
}

type FileScheduleConfig struct {
	DefaultIngestCron string `toml:"default_ingest_cron,omitempty"`
	RegenerateCron    string `toml:"regenerate_cron,omitempty"`
}

type FileFFmpegConfig struct {
	Bin string `toml:"bin,omitempty"`
}

type FileRedisConfig struct {
	Addr      string `toml:"addr,omitempty"`
	KeyPrefix string `toml:"key_prefix,omitempty"`
}

type FileTelemetryConfig struct {
	Enabled      bool    `toml:"enabled,omitempty"`
	ExporterType string  `toml:"exporter_type,omitempty"`
	Endpoint     string  `toml:"endpoint,omitempty"`
	SamplingRate float64 `toml:"sampling_rate,omitempty"`
}

// DefaultConfigPath is the daemon's config file when neither --config nor
// the CONFIG_FILE env var names one, and m3u-proxyctl's --config default.
const DefaultConfigPath = "config.toml"

// Defaults returns the built-in configuration applied before any file or
// env overlay.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "m3u-proxy",
		HTTP: HTTPConfig{
			ListenAddr:      ":8080",
			PublicBaseURL:   "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // streaming responses must never be write-deadlined
			UpstreamTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			DatabasePath: "data/m3uproxy.db",
			ArtifactDir:  "data/artifacts",
			SandboxDir:   "data/sandbox",
			BusyTimeout:  30 * time.Second,
			MaxOpenConns: 25,
		},
		Ingest: IngestConfig{
			MaxConcurrency: 4,
			FetchTimeout:   30 * time.Second,
		},
		Streaming: StreamingConfig{
			PerHostRequestsPerSecond: 5,
			PerHostBurst:             10,
			IdleSessionTimeout:       5 * time.Minute,
		},
		Schedule: ScheduleConfig{
			DefaultIngestCron: "0 */6 * * *",
			RegenerateCron:    "5 */6 * * *",
		},
		FFmpeg: FFmpegConfig{
			Bin: "ffmpeg",
		},
		Redis: RedisConfig{
			Addr:      "",
			KeyPrefix: "m3uproxy:sessions",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ExporterType: "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
		},
	}
}
