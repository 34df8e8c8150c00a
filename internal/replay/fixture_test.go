package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixtures replays every fixture under testdata and compares each round's
// chosen index against the recorded one. This is the primary regression test:
// a change to any formula, tie rule or correction term shows up here.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}
			results, summary, err := RunFixture(context.Background(), f)
			if err != nil {
				t.Fatalf("RunFixture: %v", err)
			}
			if len(results) != f.Rounds {
				t.Fatalf("expected %d rounds, got %d", f.Rounds, len(results))
			}
			for _, r := range results {
				if !r.Match {
					t.Errorf("round %d: expected index %d, got %d (scores %v)", r.Round, r.Expected, r.ChosenIndex, r.Scores)
				}
			}
			if !summary.Passed() {
				t.Errorf("summary reports %d mismatches", summary.Mismatches)
			}
		})
	}
}

func TestFixture_DetectsDivergence(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "min_max.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	f.Expected = []int{0, 2, 0}

	results, summary, err := RunFixture(context.Background(), f)
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	if results[0].Match {
		t.Error("round 1 should diverge")
	}
	if summary.Mismatches != 1 || summary.Matches != 2 {
		t.Errorf("expected 1 mismatch and 2 matches, got %+v", summary)
	}
	if summary.Passed() {
		t.Error("summary should not pass")
	}
}

func TestFixture_Unchecked(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "distdiv_dynamic.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	_, summary, err := RunFixture(context.Background(), f)
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	if summary.Unchecked != 2 || !summary.Passed() {
		t.Errorf("expected 2 unchecked rounds, got %+v", summary)
	}
}

func TestLoadFixture_TooManyRounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	body := `{"strategy": {"name": "random"}, "unlabeled": [{"x": [1]}], "rounds": 2}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for more rounds than rows")
	}
}

func TestLoadFixture_Missing(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// #endregion fixture-tests
