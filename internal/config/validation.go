// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "fmt"

// Validate checks cfg for internally-inconsistent or unusable values,
// the way the teacher's Validate rejects a config before it's ever
// applied.
func Validate(cfg AppConfig) error {
	if cfg.HTTP.ListenAddr == "" {
		return fmt.Errorf("config: http.listen_addr must not be empty")
	}
	if cfg.Store.DatabasePath == "" {
		return fmt.Errorf("config: store.database_path must not be empty")
	}
	if cfg.Store.ArtifactDir == "" {
		return fmt.Errorf("config: store.artifact_dir must not be empty")
	}
	if cfg.Store.SandboxDir == "" {
		return fmt.Errorf("config: store.sandbox_dir must not be empty")
	}
	if cfg.Store.MaxOpenConns <= 0 {
		return fmt.Errorf("config: store.max_open_conns must be positive, got %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Ingest.MaxConcurrency <= 0 {
		return fmt.Errorf("config: ingest.max_concurrency must be positive, got %d", cfg.Ingest.MaxConcurrency)
	}
	if cfg.Streaming.PerHostRequestsPerSecond < 0 {
		return fmt.Errorf("config: streaming.per_host_requests_per_second must not be negative")
	}
	if cfg.FFmpeg.Bin == "" {
		return fmt.Errorf("config: ffmpeg.bin must not be empty")
	}
	return nil
}
