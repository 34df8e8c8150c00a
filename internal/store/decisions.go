package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// #region log-decision
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogDecision appends a decision to the log. ScoreMin and ScoreMax are
// derived from Scores when it is non-empty.
func (s *Store) LogDecision(d Decision) (Decision, error) {
	return insertDecision(s.db, d)
}

func insertDecision(ex execer, d Decision) (Decision, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if len(d.Scores) > 0 {
		d.ScoreMin = floats.Min(d.Scores)
		d.ScoreMax = floats.Max(d.Scores)
	}

	res, err := ex.Exec(
		`INSERT INTO decisions (run_id, version_id, round, chosen_index, unlabeled, labeled, scores, score_min, score_max, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.VersionID, d.Round, d.ChosenIndex, d.Unlabeled, d.Labeled,
		encodeScores(d.Scores), d.ScoreMin, d.ScoreMax, d.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Decision{}, fmt.Errorf("log decision: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return d, nil
}
// #endregion log-decision

// #region commit-round
// CommitRound stores one query in a single transaction: rec becomes the
// run's active version and d is logged against it with the next round
// number. Either both land or neither does.
func (s *Store) CommitRound(rec StateRecord, d Decision) (StateRecord, Decision, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return StateRecord{}, Decision{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err = commitVersion(tx, rec)
	if err != nil {
		return StateRecord{}, Decision{}, err
	}

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM decisions WHERE run_id = ?`, rec.RunID).Scan(&n); err != nil {
		return StateRecord{}, Decision{}, fmt.Errorf("count decisions: %w", err)
	}
	d.RunID, d.VersionID, d.Round = rec.RunID, rec.VersionID, n+1
	d, err = insertDecision(tx, d)
	if err != nil {
		return StateRecord{}, Decision{}, err
	}

	if err := tx.Commit(); err != nil {
		return StateRecord{}, Decision{}, fmt.Errorf("commit: %w", err)
	}
	return rec, d, nil
}
// #endregion commit-round

// #region list-decisions
// ListDecisions returns a run's most recent decisions, newest first.
func (s *Store) ListDecisions(runID string, limit int) ([]Decision, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, version_id, round, chosen_index, unlabeled, labeled, scores, score_min, score_max, created_at
		 FROM decisions WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var blob []byte
		var lo, hi sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&d.ID, &d.RunID, &d.VersionID, &d.Round, &d.ChosenIndex,
			&d.Unlabeled, &d.Labeled, &blob, &lo, &hi, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Scores = decodeScores(blob)
		d.ScoreMin, d.ScoreMax = lo.Float64, hi.Float64
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// NextRound returns the round number the run's next decision should carry.
func (s *Store) NextRound(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n + 1, nil
}
// #endregion list-decisions

// #region score-encoding
func encodeScores(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeScores(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
// #endregion score-encoding
