// Package stats aggregates sealed sessions into totals, per-dimension
// breakdowns, and streak counters. The sessions-list JSON file stays the
// source of truth; this package projects it into an in-memory SQLite table
// so the breakdowns can be expressed as SQL rather than hand-rolled loops.
package stats

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/useai-dev/useai-core/internal/engine"
	"github.com/useai-dev/useai-core/internal/store"
)

// Breakdown is one dimension's total seconds, keyed by the dimension value.
type Breakdown map[string]float64

// Summary is the full statistics view.
type Summary struct {
	SessionCount    int
	TotalDuration   float64
	DayStreak       int
	ByClient        Breakdown
	ByLanguage      Breakdown
	ByTaskType      Breakdown
}

// Compute loads the sessions-list store and returns the aggregated view.
func Compute(l store.Layout) (Summary, error) {
	var seals []engine.Seal
	store.LoadJSONList(l.SessionsPath(), &seals)
	return computeFromSeals(seals)
}

func computeFromSeals(seals []engine.Seal) (Summary, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return Summary{}, fmt.Errorf("open in-memory sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE sessions (
			session_id TEXT,
			client TEXT,
			task_type TEXT,
			language TEXT,
			duration_seconds REAL,
			started_at TEXT
		)`); err != nil {
		return Summary{}, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO sessions (session_id, client, task_type, language, duration_seconds, started_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Summary{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	dayset := map[string]bool{}
	for _, s := range seals {
		lang := ""
		if len(s.Languages) > 0 {
			lang = s.Languages[0]
		}
		if _, err := stmt.Exec(s.SessionID, s.Client, s.TaskType, lang, s.DurationSeconds, s.StartedAt); err != nil {
			return Summary{}, fmt.Errorf("insert session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, s.StartedAt); err == nil {
			dayset[t.Local().Format("2006-01-02")] = true
		}
	}

	summary := Summary{
		ByClient:   Breakdown{},
		ByLanguage: Breakdown{},
		ByTaskType: Breakdown{},
	}

	row := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(duration_seconds), 0) FROM sessions`)
	if err := row.Scan(&summary.SessionCount, &summary.TotalDuration); err != nil {
		return Summary{}, fmt.Errorf("scan totals: %w", err)
	}

	if err := scanBreakdown(db, `SELECT client, SUM(duration_seconds) FROM sessions WHERE client != '' GROUP BY client`, summary.ByClient); err != nil {
		return Summary{}, err
	}
	if err := scanBreakdown(db, `SELECT language, SUM(duration_seconds) FROM sessions WHERE language != '' GROUP BY language`, summary.ByLanguage); err != nil {
		return Summary{}, err
	}
	if err := scanBreakdown(db, `SELECT task_type, SUM(duration_seconds) FROM sessions WHERE task_type != '' GROUP BY task_type`, summary.ByTaskType); err != nil {
		return Summary{}, err
	}

	summary.DayStreak = dayStreak(dayset)
	return summary, nil
}

func scanBreakdown(db *sql.DB, query string, into Breakdown) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var total float64
		if err := rows.Scan(&key, &total); err != nil {
			return fmt.Errorf("scan breakdown row: %w", err)
		}
		into[key] = total
	}
	return rows.Err()
}

// dayStreak counts consecutive local-TZ calendar days, counting backward
// from today, that have at least one session; it stops at the first empty
// day.
func dayStreak(days map[string]bool) int {
	streak := 0
	cursor := time.Now().Local()
	for {
		key := cursor.Format("2006-01-02")
		if !days[key] {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
