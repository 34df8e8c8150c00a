package store

import (
	"time"

	"github.com/danielpatrickdp/active-query/internal/querystrategy"
)

// #region run
// Run is one active-learning session: a strategy configuration and the chain
// of state versions it produced.
type Run struct {
	RunID         string
	Strategy      string
	ConfigYAML    string
	ActiveVersion string
	CreatedAt     time.Time
}
// #endregion run

// #region state-record
// StateRecord is a versioned snapshot of a strategy's memory between rounds.
type StateRecord struct {
	VersionID string
	ParentID  string
	RunID     string
	State     querystrategy.State
	CreatedAt time.Time
}
// #endregion state-record

// #region decision
// Decision is one logged query: which row was chosen, against which set
// sizes, and the full score vector it was chosen from.
type Decision struct {
	ID          int64
	RunID       string
	VersionID   string // state version committed after the choice
	Round       int
	ChosenIndex int
	Unlabeled   int
	Labeled     int
	Scores      []float64
	ScoreMin    float64
	ScoreMax    float64
	CreatedAt   time.Time
}
// #endregion decision
