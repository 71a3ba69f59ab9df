package stats

import (
	"testing"
	"time"

	"github.com/useai-dev/useai-core/internal/engine"
)

func TestComputeTotalsAndBreakdowns(t *testing.T) {
	now := time.Now().UTC()
	seals := []engine.Seal{
		{SessionID: "a", Client: "claude-code", TaskType: "coding", Languages: []string{"go"}, DurationSeconds: 100, StartedAt: now.Format(time.RFC3339Nano)},
		{SessionID: "b", Client: "claude-code", TaskType: "debugging", Languages: []string{"go"}, DurationSeconds: 50, StartedAt: now.Format(time.RFC3339Nano)},
		{SessionID: "c", Client: "cursor", TaskType: "coding", Languages: []string{"typescript"}, DurationSeconds: 25, StartedAt: now.AddDate(0, 0, -1).Format(time.RFC3339Nano)},
	}

	summary, err := computeFromSeals(seals)
	if err != nil {
		t.Fatalf("computeFromSeals: %v", err)
	}

	if summary.SessionCount != 3 {
		t.Fatalf("expected 3 sessions, got %d", summary.SessionCount)
	}
	if summary.TotalDuration != 175 {
		t.Fatalf("expected total duration 175, got %v", summary.TotalDuration)
	}
	if summary.ByClient["claude-code"] != 150 {
		t.Fatalf("expected claude-code total 150, got %v", summary.ByClient["claude-code"])
	}
	if summary.ByLanguage["go"] != 150 {
		t.Fatalf("expected go total 150, got %v", summary.ByLanguage["go"])
	}
	if summary.ByTaskType["coding"] != 125 {
		t.Fatalf("expected coding total 125, got %v", summary.ByTaskType["coding"])
	}
	if summary.DayStreak != 2 {
		t.Fatalf("expected a 2-day streak (today and yesterday), got %d", summary.DayStreak)
	}
}

func TestComputeEmpty(t *testing.T) {
	summary, err := computeFromSeals(nil)
	if err != nil {
		t.Fatalf("computeFromSeals: %v", err)
	}
	if summary.SessionCount != 0 || summary.DayStreak != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}
