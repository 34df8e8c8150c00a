package config

import (
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/active-query/internal/distance"
	qs "github.com/danielpatrickdp/active-query/internal/querystrategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region load

func TestLoadCombined(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "combined.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "combined", f.Strategy.Name)
	assert.Equal(t, "dynamic", f.Strategy.Beta)
	require.NotNil(t, f.Strategy.QS1)
	assert.True(t, f.Strategy.QS1.ModelChange)
	assert.Equal(t, "cosine", f.Strategy.QS2.Metric)
	assert.Equal(t, LogSpec{Level: "debug", Format: "json"}, f.Log)

	s, err := Build(f.Strategy)
	require.NoError(t, err)
	c, ok := s.(*qs.CombinedSampler)
	require.True(t, ok)
	assert.True(t, c.Beta().IsDynamic())
	assert.Contains(t, s.Name(), "Entropy Sampler + Model Change")
	assert.Contains(t, s.Name(), "Density Sampler")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_key.yaml"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseNumericMixing(t *testing.T) {
	f, err := Parse([]byte("strategy:\n  name: distdiv\n  lambda: 0.25\n  qs1: {name: margin}\n  qs2: {name: min_max}\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", f.Strategy.Lambda)

	s, err := Build(f.Strategy)
	require.NoError(t, err)
	d, ok := s.(*qs.DistDivSampler)
	require.True(t, ok)
	assert.Equal(t, 0.25, d.Lambda().Value())
}

func TestParseNoName(t *testing.T) {
	_, err := Parse([]byte("log:\n  level: info\n"))
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestMarshalRoundTrip(t *testing.T) {
	seed := uint64(9)
	spec := StrategySpec{Name: "random", Seed: &seed}
	out, err := spec.Marshal()
	require.NoError(t, err)

	f, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, spec, f.Strategy)
}

// #endregion load

// #region build

func TestBuildEveryName(t *testing.T) {
	leaf := &StrategySpec{Name: "least_confidence"}
	for _, name := range Names() {
		spec := StrategySpec{Name: name}
		if name == "combined" || name == "distdiv" {
			spec.QS1, spec.QS2 = leaf, leaf
		}
		s, err := Build(spec)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.Name(), name)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		spec StrategySpec
		want error
	}{
		{"unknown name", StrategySpec{Name: "qbc"}, ErrUnknownStrategy},
		{"unknown metric", StrategySpec{Name: "density", Metric: "jaccardish"}, distance.ErrUnknownMetric},
		{"missing child", StrategySpec{Name: "combined", QS1: &StrategySpec{Name: "entropy"}}, qs.ErrMissingChild},
		{"bad child", StrategySpec{Name: "distdiv", QS1: &StrategySpec{Name: "entropy"}, QS2: &StrategySpec{Name: "nope"}}, ErrUnknownStrategy},
		{"lambda out of range", StrategySpec{Name: "distdiv", Lambda: "1.5", QS1: &StrategySpec{Name: "entropy"}, QS2: &StrategySpec{Name: "margin"}}, qs.ErrInvalidArgument},
		{"beta not a number", StrategySpec{Name: "combined", Beta: "lots", QS1: &StrategySpec{Name: "entropy"}, QS2: &StrategySpec{Name: "margin"}}, qs.ErrInvalidArgument},
		{"bad choice", StrategySpec{Name: "combined", Choice: "median", QS1: &StrategySpec{Name: "entropy"}, QS2: &StrategySpec{Name: "margin"}}, qs.ErrInvalidArgument},
		{"model change on geometric", StrategySpec{Name: "min_max", ModelChange: true}, ErrInvalidSpec},
		{"metric on uncertainty", StrategySpec{Name: "entropy", Metric: "cosine"}, ErrInvalidSpec},
		{"beta on leaf", StrategySpec{Name: "margin", Beta: "2"}, ErrInvalidSpec},
		{"lambda on combined", StrategySpec{Name: "combined", Lambda: "0.5"}, ErrInvalidSpec},
		{"seed on entropy", StrategySpec{Name: "entropy", Seed: new(uint64)}, ErrInvalidSpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// #endregion build

// #region env

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvDB, "/tmp/q.db")
	t.Setenv(EnvClassifierAddr, "")
	t.Setenv(EnvLogLevel, "debug")

	p := FromEnv()
	assert.Equal(t, "/tmp/q.db", p.DBPath)
	assert.Equal(t, "", p.ClassifierAddr)
	assert.Equal(t, "debug", p.LogLevel)
}

// #endregion env
