// Package config defines the persistent configuration mapping and its
// defaults, atomic load/save over the config.json store.
package config

import (
	"encoding/json"
	"os"

	"tailscale.com/atomicfile"
)

// EvaluationFramework names the scoring formula used by the session engine.
type EvaluationFramework string

const (
	FrameworkRaw   EvaluationFramework = "raw"
	FrameworkSpace EvaluationFramework = "space"
)

// AuthUser is the authenticated user associated with a remote-sync token.
type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Auth is the optional remote-sync credential; nil when signed out.
type Auth struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// Config is the persistent configuration mapping described in the data
// model: milestone tracking, sync cadence, evaluation framework, and the
// optional remote-sync credential.
type Config struct {
	MilestoneTracking   bool                `json:"milestone_tracking"`
	AutoSync            bool                `json:"auto_sync"`
	SyncIntervalHours   int                 `json:"sync_interval_hours"`
	EvaluationFramework EvaluationFramework `json:"evaluation_framework"`
	LastSyncAt          *string             `json:"last_sync_at"`
	Auth                *Auth               `json:"auth"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		MilestoneTracking:   true,
		AutoSync:            true,
		SyncIntervalHours:   24,
		EvaluationFramework: FrameworkRaw,
		LastSyncAt:          nil,
		Auth:                nil,
	}
}

// Load reads path, returning Default() if the file is missing or malformed
// (per §4.D: readers treat an absent/bad config as its default).
func Load(path string) Config {
	b, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Default()
	}
	if c.EvaluationFramework != FrameworkRaw && c.EvaluationFramework != FrameworkSpace {
		c.EvaluationFramework = FrameworkRaw
	}
	return c
}

// Save writes c to path atomically (temp file + fsync + rename).
func Save(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, b, 0o600)
}

// EffectiveFramework resolves the framework name used for scoring: the
// reserved "space" name is returned as is, anything else resolves to "raw".
// Evaluation.Score applies the raw weights whichever name is returned.
func (c Config) EffectiveFramework() EvaluationFramework {
	if c.EvaluationFramework == FrameworkSpace {
		return FrameworkSpace
	}
	return FrameworkRaw
}
