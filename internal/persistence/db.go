// Package persistence provides SQLite-based storage for scenario state and
// decision logs.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/world"
)

// DB wraps a SQLite connection for scenario persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		scenario TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		radius REAL NOT NULL,
		stalled INTEGER NOT NULL,
		properties_json TEXT NOT NULL,
		PRIMARY KEY (scenario, name)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent TEXT NOT NULL,
		behavior TEXT NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		score REAL NOT NULL,
		candidates INTEGER NOT NULL,
		stalled INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_run_tick ON decisions(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_decisions_agent ON decisions(agent);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one recorded execution of a scenario.
type Run struct {
	ID        string `db:"id" json:"id"`
	Scenario  string `db:"scenario" json:"scenario"`
	Seed      int64  `db:"seed" json:"seed"`
	StartedAt string `db:"started_at" json:"started_at"`
}

// StartRun registers a new run and returns its ID.
func (db *DB) StartRun(scenario string, seed int64) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, scenario, seed, started_at) VALUES (?, ?, ?, ?)",
		id, scenario, seed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Runs lists the recorded runs of a scenario, newest first.
func (db *DB) Runs(scenario string) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, scenario, seed, started_at FROM runs WHERE scenario = ? ORDER BY started_at DESC, rowid DESC",
		scenario,
	)
	return runs, err
}

// DecisionRow is one agent's decision in one tick.
type DecisionRow struct {
	RunID      string  `db:"run_id" json:"run_id"`
	Tick       uint64  `db:"tick" json:"tick"`
	Agent      string  `db:"agent" json:"agent"`
	Behavior   string  `db:"behavior" json:"behavior"`
	Action     string  `db:"action" json:"action"`
	Target     string  `db:"target" json:"target"`
	Score      float64 `db:"score" json:"score"`
	Candidates int     `db:"candidates" json:"candidates"`
	Stalled    bool    `db:"stalled" json:"stalled"`
}

// DecisionRows flattens a tick report in agent processing order.
func DecisionRows(runID string, r engine.TickReport) []DecisionRow {
	rows := make([]DecisionRow, 0, len(r.Order))
	for _, a := range r.Order {
		h := r.Decisions[a]
		row := DecisionRow{RunID: runID, Tick: r.Tick, Agent: a.Name()}
		if h != nil {
			row.Candidates = len(h.Scored)
		}
		if h == nil || h.Winner == nil {
			row.Stalled = true
		} else {
			row.Behavior = h.Winner.Behavior.Name
			row.Action = h.Winner.Behavior.Action.String()
			if h.Winner.Target != nil {
				row.Target = h.Winner.Target.Name()
			}
			row.Score = h.Winner.FinalScore()
		}
		rows = append(rows, row)
	}
	return rows
}

// RecordTick appends the decisions of one tick.
func (db *DB) RecordTick(runID string, r engine.TickReport) error {
	rows := DecisionRows(runID, r)
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO decisions
		(run_id, tick, agent, behavior, action, target, score, candidates, stalled)
		VALUES (:run_id, :tick, :agent, :behavior, :action, :target, :score, :candidates, :stalled)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert decision %s@%d: %w", row.Agent, row.Tick, err)
		}
	}

	return tx.Commit()
}

// Recorder returns a tick observer that logs every tick under runID.
// Failures are logged, not returned, so a full disk never stops the loop.
func (db *DB) Recorder(runID string) func(engine.TickReport) {
	return func(r engine.TickReport) {
		if err := db.RecordTick(runID, r); err != nil {
			slog.Error("failed to record tick", "run", runID, "tick", r.Tick, "error", err)
		}
	}
}

// RecentDecisions returns the most recent N decisions of a run, newest first.
func (db *DB) RecentDecisions(runID string, limit int) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := db.conn.Select(&rows,
		`SELECT run_id, tick, agent, behavior, action, target, score, candidates, stalled
		 FROM decisions WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	return rows, err
}

// AgentDecisions returns the most recent N decisions of one agent in a run,
// newest first.
func (db *DB) AgentDecisions(runID, agent string, limit int) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := db.conn.Select(&rows,
		`SELECT run_id, tick, agent, behavior, action, target, score, candidates, stalled
		 FROM decisions WHERE run_id = ? AND agent = ? ORDER BY id DESC LIMIT ?`,
		runID, agent, limit,
	)
	return rows, err
}

// BehaviorCount is how often a behavior won in a run.
type BehaviorCount struct {
	Behavior string `db:"behavior" json:"behavior"`
	Wins     int    `db:"wins" json:"wins"`
}

// WinCounts tallies winners per behavior for a run, most frequent first.
// Stalls are counted under the empty behavior name.
func (db *DB) WinCounts(runID string) ([]BehaviorCount, error) {
	var counts []BehaviorCount
	err := db.conn.Select(&counts,
		`SELECT behavior, COUNT(*) AS wins FROM decisions
		 WHERE run_id = ? GROUP BY behavior ORDER BY wins DESC, behavior`,
		runID,
	)
	return counts, err
}

type memberRow struct {
	Scenario       string  `db:"scenario"`
	Name           string  `db:"name"`
	Kind           string  `db:"kind"`
	X              float64 `db:"x"`
	Y              float64 `db:"y"`
	Radius         float64 `db:"radius"`
	Stalled        bool    `db:"stalled"`
	PropertiesJSON string  `db:"properties_json"`
}

// SaveMembers writes every agent and location of s (full replace for s.Name).
func (db *DB) SaveMembers(s *engine.Scenario) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM members WHERE scenario = ?", s.Name); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO members
		(scenario, name, kind, x, y, radius, stalled, properties_json)
		VALUES (:scenario, :name, :kind, :x, :y, :radius, :stalled, :properties_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	insert := func(kind, name string, pos world.Vec2, radius float64, stalled bool, props agents.Properties) error {
		propsJSON, err := json.Marshal(props)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(memberRow{
			Scenario:       s.Name,
			Name:           name,
			Kind:           kind,
			X:              pos.X,
			Y:              pos.Y,
			Radius:         radius,
			Stalled:        stalled,
			PropertiesJSON: string(propsJSON),
		})
		if err != nil {
			return fmt.Errorf("insert %s %q: %w", kind, name, err)
		}
		return nil
	}

	for _, a := range s.Agents {
		if err := insert("agent", a.Name(), a.Pos, a.Size, a.Stalled, a.Props); err != nil {
			return err
		}
	}
	for _, l := range s.Locations {
		if err := insert("location", l.Name(), l.Pos, l.Size, false, l.Props); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RestoreMembers overwrites position, stall flag and properties of every
// member of s that has a saved row with the same name. Members without a row
// keep their project state. It returns how many members were restored.
func (db *DB) RestoreMembers(s *engine.Scenario) (int, error) {
	var rows []memberRow
	if err := db.conn.Select(&rows,
		"SELECT scenario, name, kind, x, y, radius, stalled, properties_json FROM members WHERE scenario = ?",
		s.Name,
	); err != nil {
		return 0, err
	}

	restored := 0
	for _, row := range rows {
		var props agents.Properties
		if err := json.Unmarshal([]byte(row.PropertiesJSON), &props); err != nil {
			return restored, fmt.Errorf("decode properties of %q: %w", row.Name, err)
		}
		pos := world.Vec2{X: row.X, Y: row.Y}

		switch row.Kind {
		case "agent":
			a := s.Agent(row.Name)
			if a == nil {
				continue
			}
			a.Pos = pos
			a.Stalled = row.Stalled
			a.Props = props
		case "location":
			l := s.Location(row.Name)
			if l == nil {
				continue
			}
			l.Pos = pos
			l.Props = props
		default:
			continue
		}
		restored++
	}
	return restored, nil
}

// SaveMeta stores a key-value pair in simulation metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

func tickKey(scenario string) string {
	return "last_tick:" + scenario
}

// SaveScenarioState performs a full save of member state and the tick counter.
func (db *DB) SaveScenarioState(s *engine.Scenario) error {
	slog.Info("saving scenario state", "scenario", s.Name, "agents", len(s.Agents), "locations", len(s.Locations))

	if err := db.SaveMembers(s); err != nil {
		return fmt.Errorf("save members: %w", err)
	}
	if err := db.SaveMeta(tickKey(s.Name), strconv.FormatUint(s.Tick(), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("scenario state saved", "scenario", s.Name, "tick", s.Tick())
	return nil
}

// LoadScenarioState restores member state and the tick counter saved for
// s.Name. It reports false when nothing was saved.
func (db *DB) LoadScenarioState(s *engine.Scenario) (bool, error) {
	v, err := db.GetMeta(tickKey(s.Name))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load meta: %w", err)
	}
	tick, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse last tick %q: %w", v, err)
	}

	n, err := db.RestoreMembers(s)
	if err != nil {
		return false, fmt.Errorf("restore members: %w", err)
	}
	s.SetTick(tick)

	slog.Info("scenario state restored", "scenario", s.Name, "members", n, "tick", tick)
	return true, nil
}
