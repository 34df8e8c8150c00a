package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/active-query/internal/querystrategy"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run or version does not exist.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	strategy      TEXT NOT NULL,
	config_yaml   TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	run_id        TEXT NOT NULL,
	state_json    TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES state_versions(version_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decisions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	round         INTEGER NOT NULL,
	chosen_index  INTEGER NOT NULL,
	unlabeled     INTEGER NOT NULL,
	labeled       INTEGER NOT NULL,
	scores        BLOB,
	score_min     REAL,
	score_max     REAL,
	created_at    TEXT NOT NULL,
	UNIQUE (run_id, round),
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_state (
	run_id        TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);
`
// #endregion schema

// #region store-struct
// Store keeps strategy state versions and the decision log in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion constructor

// #region create-run
// CreateRun registers a run and gives it an empty initial state version,
// which becomes the run's active version.
func (s *Store) CreateRun(strategy, configYAML string) (Run, StateRecord, error) {
	now := time.Now().UTC()
	run := Run{
		RunID:      uuid.New().String(),
		Strategy:   strategy,
		ConfigYAML: configYAML,
		CreatedAt:  now,
	}
	rec := StateRecord{
		VersionID: uuid.New().String(),
		RunID:     run.RunID,
		CreatedAt: now,
	}
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, strategy, config_yaml, created_at) VALUES (?, ?, ?, ?)`,
		run.RunID, strategy, nullIfEmpty(configYAML), now.Format(time.RFC3339Nano),
	); err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO state_versions (version_id, parent_id, run_id, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.VersionID, nil, run.RunID, string(stateJSON), now.Format(time.RFC3339Nano),
	); err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("insert version: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO active_state (run_id, version_id) VALUES (?, ?)`, run.RunID, rec.VersionID,
	); err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("set active: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, StateRecord{}, fmt.Errorf("commit: %w", err)
	}

	run.ActiveVersion = rec.VersionID
	return run, rec, nil
}
// #endregion create-run

// #region runs
// GetRun reads one run with its active version.
func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT r.run_id, r.strategy, r.config_yaml, r.created_at, COALESCE(a.version_id, '')
		 FROM runs r LEFT JOIN active_state a ON a.run_id = r.run_id
		 WHERE r.run_id = ?`, runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT r.run_id, r.strategy, r.config_yaml, r.created_at, COALESCE(a.version_id, '')
		 FROM runs r LEFT JOIN active_state a ON a.run_id = r.run_id
		 ORDER BY r.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var cfg sql.NullString
	var createdStr string
	if err := sc.Scan(&run.RunID, &run.Strategy, &cfg, &createdStr, &run.ActiveVersion); err != nil {
		return Run{}, err
	}
	run.ConfigYAML = cfg.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}
// #endregion runs

// #region get-current
// GetCurrent reads the run's active state version.
func (s *Store) GetCurrent(runID string) (StateRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_state WHERE run_id = ?`, runID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, fmt.Errorf("active version of run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(id string) (StateRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, run_id, state_json, created_at
		 FROM state_versions WHERE version_id = ?`, id,
	)
	rec, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// ListVersions returns a run's most recent state versions.
func (s *Store) ListVersions(runID string, limit int) ([]StateRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, run_id, state_json, created_at
		 FROM state_versions WHERE run_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanVersion(sc scanner) (StateRecord, error) {
	var rec StateRecord
	var parentID sql.NullString
	var stateJSON string
	var createdStr string
	if err := sc.Scan(&rec.VersionID, &parentID, &rec.RunID, &stateJSON, &createdStr); err != nil {
		return StateRecord{}, err
	}
	rec.ParentID = parentID.String
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return StateRecord{}, fmt.Errorf("unmarshal state: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}
// #endregion get-version

// #region commit-state
// CommitState inserts a new version and moves the run's active pointer to it
// atomically. Empty VersionID and CreatedAt are filled in.
func (s *Store) CommitState(rec StateRecord) (StateRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return StateRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err = commitVersion(tx, rec)
	if err != nil {
		return StateRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return StateRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// commitVersion inserts rec and makes it the run's active version.
func commitVersion(tx *sql.Tx, rec StateRecord) (StateRecord, error) {
	if rec.VersionID == "" {
		rec.VersionID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return StateRecord{}, fmt.Errorf("marshal state: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO state_versions (version_id, parent_id, run_id, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), rec.RunID, string(stateJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return StateRecord{}, fmt.Errorf("insert version: %w", err)
	}

	res, err := tx.Exec(`UPDATE active_state SET version_id = ? WHERE run_id = ?`, rec.VersionID, rec.RunID)
	if err != nil {
		return StateRecord{}, fmt.Errorf("update active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return StateRecord{}, fmt.Errorf("update active for run %s: %w", rec.RunID, ErrNotFound)
	}
	return rec, nil
}
// #endregion commit-state

// #region rollback
// Rollback points a run's active version at an earlier version of the same run.
func (s *Store) Rollback(runID, targetVersionID string) error {
	rec, err := s.GetVersion(targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if rec.RunID != runID {
		return fmt.Errorf("rollback: version %s belongs to run %s, not %s: %w", targetVersionID, rec.RunID, runID, ErrNotFound)
	}

	if _, err := s.db.Exec(`UPDATE active_state SET version_id = ? WHERE run_id = ?`, targetVersionID, runID); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SnapshotRecord builds the next version for run from a strategy's current state.
func SnapshotRecord(runID, parentID string, s querystrategy.Strategy) StateRecord {
	return StateRecord{
		RunID:    runID,
		ParentID: parentID,
		State:    querystrategy.SnapshotOf(s),
	}
}
// #endregion helpers
