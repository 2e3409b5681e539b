// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type envLookupFunc func(string) (string, bool)

// Loader handles configuration loading with precedence ENV > File > Defaults,
// the same order the teacher's Loader enforces.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
	lookupEnvFn     envLookupFunc
}

// NewLoader creates a Loader reading configPath (may be empty for
// env-only configuration). Environment lookups go through viper's
// AutomaticEnv binding rather than os.LookupEnv directly, the same
// surfacing layer the rest of the tvarr-lineage tooling uses for
// env-var overlay.
func NewLoader(configPath, version string) *Loader {
	return NewLoaderWithEnv(configPath, version, newViperEnvLookup())
}

// newViperEnvLookup returns an envLookupFunc backed by a private viper
// instance. BindEnv+IsSet is used instead of os.LookupEnv so that a
// future file-watch reload (StartWatcher) can share the same viper
// instance's OnConfigChange hook without a second environment-reading
// code path.
func newViperEnvLookup() envLookupFunc {
	v := viper.New()
	v.AutomaticEnv()
	return func(key string) (string, bool) {
		if err := v.BindEnv(key); err != nil {
			return "", false
		}
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}
}

// NewLoaderWithEnv injects an environment source, for deterministic tests.
func NewLoaderWithEnv(configPath, version string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
		lookupEnvFn:     lookup,
	}
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return l.lookupEnvFn(key)
}

// Load resolves AppConfig from defaults, the TOML file at configPath (if
// set), then environment variables, and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("config: load file: %w", err)
		}
		if fileCfg != nil {
			mergeFile(&cfg, fileCfg)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile strictly decodes path as TOML; unknown keys are rejected so a
// typo'd setting fails fast instead of silently using the default.
func loadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fc FileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

func mergeFile(cfg *AppConfig, fc *FileConfig) {
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogService != "" {
		cfg.LogService = fc.LogService
	}
	if h := fc.HTTP; h != nil {
		if h.ListenAddr != "" {
			cfg.HTTP.ListenAddr = h.ListenAddr
		}
		if h.PublicBaseURL != "" {
			cfg.HTTP.PublicBaseURL = h.PublicBaseURL
		}
		if d, ok := parseDuration(h.ReadTimeout); ok {
			cfg.HTTP.ReadTimeout = d
		}
		if d, ok := parseDuration(h.WriteTimeout); ok {
			cfg.HTTP.WriteTimeout = d
		}
		if d, ok := parseDuration(h.UpstreamTimeout); ok {
			cfg.HTTP.UpstreamTimeout = d
		}
	}
	if s := fc.Store; s != nil {
		if s.DatabasePath != "" {
			cfg.Store.DatabasePath = s.DatabasePath
		}
		if s.ArtifactDir != "" {
			cfg.Store.ArtifactDir = s.ArtifactDir
		}
		if s.SandboxDir != "" {
			cfg.Store.SandboxDir = s.SandboxDir
		}
		if d, ok := parseDuration(s.BusyTimeout); ok {
			cfg.Store.BusyTimeout = d
		}
		if s.MaxOpenConns > 0 {
			cfg.Store.MaxOpenConns = s.MaxOpenConns
		}
	}
	if i := fc.Ingest; i != nil {
		if i.MaxConcurrency > 0 {
			cfg.Ingest.MaxConcurrency = i.MaxConcurrency
		}
		if d, ok := parseDuration(i.FetchTimeout); ok {
			cfg.Ingest.FetchTimeout = d
		}
	}
	if st := fc.Streaming; st != nil {
		if st.PerHostRequestsPerSecond > 0 {
			cfg.Streaming.PerHostRequestsPerSecond = st.PerHostRequestsPerSecond
		}
		if st.PerHostBurst > 0 {
			cfg.Streaming.PerHostBurst = st.PerHostBurst
		}
		if d, ok := parseDuration(st.IdleSessionTimeout); ok {
			cfg.Streaming.IdleSessionTimeout = d
		}
	}
	if sc := fc.Schedule; sc != nil {
		if sc.DefaultIngestCron != "" {
			cfg.Schedule.DefaultIngestCron = sc.DefaultIngestCron
		}
		if sc.RegenerateCron != "" {
			cfg.Schedule.RegenerateCron = sc.RegenerateCron
		}
	}
	if f := fc.FFmpeg; f != nil {
		if f.Bin != "" {
			cfg.FFmpeg.Bin = f.Bin
		}
	}
	if rd := fc.Redis; rd != nil {
		if rd.Addr != "" {
			cfg.Redis.Addr = rd.Addr
		}
		if rd.KeyPrefix != "" {
			cfg.Redis.KeyPrefix = rd.KeyPrefix
		}
	}
	if tl := fc.Telemetry; tl != nil {
		if tl.Enabled {
			cfg.Telemetry.Enabled = true
		}
		if tl.ExporterType != "" {
			cfg.Telemetry.ExporterType = tl.ExporterType
		}
		if tl.Endpoint != "" {
			cfg.Telemetry.Endpoint = tl.Endpoint
		}
		if tl.SamplingRate > 0 {
			cfg.Telemetry.SamplingRate = tl.SamplingRate
		}
	}
}

// mergeEnv overlays M3UPROXY_-prefixed environment variables, the highest
// precedence layer.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	if v, ok := l.envLookup("M3UPROXY_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := l.envLookup("M3UPROXY_LOG_SERVICE"); ok {
		cfg.LogService = v
	}
	if v, ok := l.envLookup("M3UPROXY_HTTP_LISTEN_ADDR"); ok {
		cfg.HTTP.ListenAddr = v
	}
	if v, ok := l.envLookup("M3UPROXY_HTTP_PUBLIC_BASE_URL"); ok {
		cfg.HTTP.PublicBaseURL = v
	}
	if v, ok := l.envLookup("M3UPROXY_HTTP_UPSTREAM_TIMEOUT"); ok {
		if d, ok := parseDuration(v); ok {
			cfg.HTTP.UpstreamTimeout = d
		}
	}
	if v, ok := l.envLookup("M3UPROXY_STORE_DATABASE_PATH"); ok {
		cfg.Store.DatabasePath = v
	}
	if v, ok := l.envLookup("M3UPROXY_STORE_ARTIFACT_DIR"); ok {
		cfg.Store.ArtifactDir = v
	}
	if v, ok := l.envLookup("M3UPROXY_STORE_SANDBOX_DIR"); ok {
		cfg.Store.SandboxDir = v
	}
	if v, ok := l.envLookup("M3UPROXY_INGEST_MAX_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.MaxConcurrency = n
		}
	}
	if v, ok := l.envLookup("M3UPROXY_FFMPEG_BIN"); ok {
		cfg.FFmpeg.Bin = v
	}
	if v, ok := l.envLookup("M3UPROXY_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := l.envLookup("M3UPROXY_TELEMETRY_ENABLED"); ok {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v, ok := l.envLookup("M3UPROXY_TELEMETRY_ENDPOINT"); ok {
		cfg.Telemetry.Endpoint = v
	}
}

func parseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}
