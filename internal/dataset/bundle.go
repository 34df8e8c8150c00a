package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region bundle-types

// Bundle is the JSON form of one query round's inputs.
type Bundle struct {
	Unlabeled [][]float64   `json:"unlabeled"`
	Labeled   LabeledBundle `json:"labeled"`
}

// LabeledBundle holds labeled rows and their labels.
type LabeledBundle struct {
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

// #endregion bundle-types

// #region bundle-loader

// LoadBundle reads a JSON bundle and returns the unlabeled and labeled sets.
func LoadBundle(path string) (*Dataset, *Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	return b.Sets()
}

// Sets converts the bundle to datasets. An empty labeled section yields an
// empty labeled set with the unlabeled width.
func (b *Bundle) Sets() (*Dataset, *Dataset, error) {
	u, err := New(b.Unlabeled, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("unlabeled: %w", err)
	}
	if len(b.Labeled.X) == 0 {
		return u, Empty(u.Cols(), true), nil
	}
	if b.Labeled.Y == nil {
		return nil, nil, fmt.Errorf("labeled: missing y: %w", ErrShape)
	}
	l, err := New(b.Labeled.X, b.Labeled.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("labeled: %w", err)
	}
	if l.Cols() != u.Cols() {
		return nil, nil, fmt.Errorf("labeled has %d columns, unlabeled %d: %w", l.Cols(), u.Cols(), ErrShape)
	}
	return u, l, nil
}

// #endregion bundle-loader
