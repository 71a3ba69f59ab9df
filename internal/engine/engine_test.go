package engine

import (
	"path/filepath"
	"testing"

	"github.com/useai-dev/useai-core/internal/config"
	"github.com/useai-dev/useai-core/internal/store"
)

func newTestEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	l := store.NewLayout(t.TempDir())
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return New(l, nil, func() config.Config { return cfg })
}

// E1 — minimal lifecycle.
func TestMinimalLifecycle(t *testing.T) {
	e := newTestEngine(t, config.Default())

	start, err := e.Start(StartParams{TaskType: "coding", Client: "claude-code"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if start.SessionID == "" {
		t.Fatalf("expected session id")
	}

	if _, err := e.Heartbeat(); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	res, err := e.End(EndParams{TaskType: "coding", Languages: []string{"typescript"}, FilesTouchedCount: 3})
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if res.MilestoneCount != 0 {
		t.Fatalf("expected no milestones")
	}

	records, err := store.ReadChain(filepath.Join(e.layout.SealedDir(), start.SessionID+".jsonl"))
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records (start, heartbeat, end, seal), got %d", len(records))
	}

	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	if len(seals) != 1 {
		t.Fatalf("expected sessions-list to grow by 1, got %d", len(seals))
	}
}

// E2 — milestone emission gated by config.
func TestMilestoneGatedByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MilestoneTracking = false
	e := newTestEngine(t, cfg)

	start, err := e.Start(StartParams{TaskType: "coding", Client: "claude-code"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = e.End(EndParams{
		TaskType:          "coding",
		Languages:         []string{"ts"},
		FilesTouchedCount: 1,
		Milestones:        []MilestoneInput{{Title: "X", Category: "feature"}},
	})
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	var milestones []Milestone
	store.LoadJSONList(e.layout.MilestonesPath(), &milestones)
	if len(milestones) != 0 {
		t.Fatalf("expected no milestones persisted, got %d", len(milestones))
	}

	records, err := store.ReadChain(filepath.Join(e.layout.SealedDir(), start.SessionID+".jsonl"))
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected record_count=3 (start, end, seal), got %d", len(records))
	}
}

// E3 — nested child excludes paused wall time from the parent's duration.
func TestNestedChildPausesParent(t *testing.T) {
	e := newTestEngine(t, config.Default())

	a, err := e.Start(StartParams{TaskType: "coding", Client: "claude-code"})
	if err != nil {
		t.Fatalf("Start A: %v", err)
	}

	b, err := e.Start(StartParams{TaskType: "coding", Client: "claude-code"})
	if err != nil {
		t.Fatalf("Start B: %v", err)
	}
	if b.SessionID == a.SessionID {
		t.Fatalf("expected distinct session ids")
	}

	if _, err := e.End(EndParams{TaskType: "coding", Languages: []string{"go"}, FilesTouchedCount: 1}); err != nil {
		t.Fatalf("End B: %v", err)
	}

	if !e.InProgress() {
		t.Fatalf("expected parent A to resume as in-progress")
	}

	if _, err := e.End(EndParams{TaskType: "coding", Languages: []string{"go"}, FilesTouchedCount: 2}); err != nil {
		t.Fatalf("End A: %v", err)
	}

	if e.InProgress() {
		t.Fatalf("expected parent stack to be empty at the end")
	}
	if len(e.parentStack) != 0 {
		t.Fatalf("expected empty parent stack")
	}

	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	if len(seals) != 2 {
		t.Fatalf("expected two sealed sessions, got %d", len(seals))
	}
}

// E4 — crash recovery via SealActive is idempotent.
func TestSealActiveIdempotent(t *testing.T) {
	e := newTestEngine(t, config.Default())

	if _, err := e.Start(StartParams{TaskType: "coding", Client: "claude-code"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.SealActive(); err != nil {
		t.Fatalf("SealActive: %v", err)
	}
	if e.InProgress() {
		t.Fatalf("expected session to be sealed")
	}

	// Second call must be a no-op.
	if err := e.SealActive(); err != nil {
		t.Fatalf("second SealActive: %v", err)
	}

	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	if len(seals) != 1 {
		t.Fatalf("expected exactly one seal after repeated SealActive, got %d", len(seals))
	}
}

func TestHeartbeatAndEndNoActiveSession(t *testing.T) {
	e := newTestEngine(t, config.Default())

	if _, err := e.Heartbeat(); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if _, err := e.End(EndParams{}); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestEndTwiceReturnsNoActiveSession(t *testing.T) {
	e := newTestEngine(t, config.Default())
	if _, err := e.Start(StartParams{TaskType: "coding"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.End(EndParams{TaskType: "coding", Languages: []string{"go"}}); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := e.End(EndParams{TaskType: "coding", Languages: []string{"go"}}); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession on second end, got %v", err)
	}
}

func TestInvalidTaskType(t *testing.T) {
	e := newTestEngine(t, config.Default())
	_, err := e.Start(StartParams{TaskType: "not-a-real-type"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t, config.Default())
	if _, err := e.Start(StartParams{TaskType: "coding"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.End(EndParams{TaskType: "coding", Languages: []string{"go"}}); err != nil {
		t.Fatalf("End: %v", err)
	}

	blob, err := e.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(blob.Sessions) != 1 {
		t.Fatalf("expected 1 session in backup")
	}

	// restore(backup()) must be a no-op: same sets before/after.
	if err := e.Restore(blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	if len(seals) != 1 {
		t.Fatalf("expected restore of an already-present session to be a no-op, got %d seals", len(seals))
	}
}

func TestScoreFormula(t *testing.T) {
	ev := Evaluation{
		PromptQuality:     5,
		ContextProvided:   5,
		ScopeQuality:      5,
		IndependenceLevel: 5,
		ToolsLeveraged:    5,
		TaskOutcome:       "completed",
	}
	if got := ev.Score(); got != 100 {
		t.Fatalf("expected perfect score 100, got %d", got)
	}

	ev.TaskOutcome = "blocked"
	if got := ev.Score(); got != 50 {
		t.Fatalf("expected blocked multiplier to halve the score, got %d", got)
	}

	ev.ToolsLeveraged = 50 // must clamp at 5 internally
	ev.TaskOutcome = "completed"
	if got := ev.Score(); got != 100 {
		t.Fatalf("expected tools_leveraged to clamp at 5, got %d", got)
	}
}
