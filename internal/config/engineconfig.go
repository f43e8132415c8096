// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

// Config is the engine's top-level configuration, per spec.md §6.
// Field names and JSON tags match the four documented keys exactly:
// unit_dirs, notification_sockets_dir, target_unit, logging.dir.
// StatusAPIAddr is a SPEC_FULL.md addition: internal/control/statusapi
// needs a bind address for its read-only HTTP/WebSocket surface, and
// the original config has no such key to reuse.
type Config struct {
	UnitDirs               []string `json:"unit_dirs"`
	NotificationSocketsDir string   `json:"notification_sockets_dir"`
	TargetUnit             string   `json:"target_unit"`
	StatusAPIAddr          string   `json:"status_api_addr"`
	Logging                struct {
		Dir string `json:"dir"`
	} `json:"logging"`
}

// applyDefaults fills in the handful of settings that have a sane
// default when the config file (or an env override) leaves them
// blank, mirroring trellis's loader.applyDefaults pass.
func applyDefaults(cfg *Config) {
	if cfg.TargetUnit == "" {
		cfg.TargetUnit = "default.target"
	}
	if cfg.NotificationSocketsDir == "" {
		cfg.NotificationSocketsDir = "/run/unitd/notifications"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "/var/log/unitd"
	}
	if cfg.StatusAPIAddr == "" {
		cfg.StatusAPIAddr = "127.0.0.1:8081"
	}
}
