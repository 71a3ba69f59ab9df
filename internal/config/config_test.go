package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	d := Default()
	if c != d {
		t.Fatalf("expected default config, got %+v", c)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	c := Default()
	c.MilestoneTracking = false
	c.SyncIntervalHours = 6

	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	if loaded.MilestoneTracking != false || loaded.SyncIntervalHours != 6 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestUnknownFrameworkFallsBackToRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Config{EvaluationFramework: "bogus"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := Load(path)
	if loaded.EvaluationFramework != FrameworkRaw {
		t.Fatalf("expected fallback to raw, got %q", loaded.EvaluationFramework)
	}
}

func TestEffectiveFramework(t *testing.T) {
	c := Default()
	if c.EffectiveFramework() != FrameworkRaw {
		t.Fatalf("expected raw")
	}
	c.EvaluationFramework = FrameworkSpace
	if c.EffectiveFramework() != FrameworkSpace {
		t.Fatalf("expected space to pass through (reserved, callers fall back to raw weights)")
	}
}
