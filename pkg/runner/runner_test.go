package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/problems"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig(kind string) Config {
	config := DefaultConfig()
	config.Sampler = kind
	config.LivePoints = 150
	config.Trajectories = 8
	config.Workers = 4
	config.NUTS.MaxDepth = 6
	return config
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown sampler", func(c *Config) { c.Sampler = "hmc" }},
		{"too few live points", func(c *Config) { c.LivePoints = 1 }},
		{"no trajectories", func(c *Config) { c.Trajectories = 0 }},
		{"no steps", func(c *Config) { c.Steps = 0 }},
		{"zero step scale", func(c *Config) { c.StepScale = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"bad nuts depth", func(c *Config) { c.NUTS.MaxDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestNew_UnknownProblem(t *testing.T) {
	config := smallConfig(SamplerNUTS)
	config.Problem = "nope"
	_, err := New(config, quietLogger(), nil)
	assert.True(t, errors.Is(err, problems.ErrUnknownProblem))
}

func TestNew_LivePointsAboveThreshold(t *testing.T) {
	r, err := New(smallConfig(SamplerNUTS), quietLogger(), nil)
	require.NoError(t, err)

	def, err := problems.Lookup("gaussian-bowl")
	require.NoError(t, err)
	problem := def.Problem(def.Lmin)

	require.Len(t, r.LivePoints(), 150)
	for _, p := range r.LivePoints() {
		_, ok := problem.Evaluate(p)
		assert.True(t, ok)
		assert.True(t, r.Region().Inside(p))
	}
}

func TestRun_AllSamplers(t *testing.T) {
	for _, kind := range []string{SamplerNUTS, SamplerStep, SamplerBisect} {
		t.Run(kind, func(t *testing.T) {
			registry := prometheus.NewRegistry()
			metrics := NewMetrics(registry)
			r, err := New(smallConfig(kind), quietLogger(), metrics)
			require.NoError(t, err)

			results, summary, err := r.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 8)

			def, _ := problems.Lookup("gaussian-bowl")
			problem := def.Problem(def.Lmin)
			for i, result := range results {
				assert.Equal(t, i, result.Trajectory)
				assert.GreaterOrEqual(t, result.Attempts, 1)
				assert.LessOrEqual(t, result.Attempts, 4)
				_, ok := problem.Evaluate(result.Sample.Point)
				assert.True(t, ok, "trajectory %d sample below threshold", i)
			}

			assert.Equal(t, 8, summary.Trajectories)
			assert.Positive(t, summary.Accepted)
			assert.InDelta(t, float64(summary.Accepted)/8, summary.AcceptanceRate, 1e-12)

			total := testutil.ToFloat64(metrics.trajectories.WithLabelValues(kind, "accepted")) +
				testutil.ToFloat64(metrics.trajectories.WithLabelValues(kind, "rejected"))
			assert.Equal(t, 8.0, total)
			assert.Positive(t, testutil.ToFloat64(metrics.evaluations))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	config := smallConfig(SamplerNUTS)
	first, err := New(config, quietLogger(), nil)
	require.NoError(t, err)
	second, err := New(config, quietLogger(), nil)
	require.NoError(t, err)

	a, _, err := first.Run(context.Background())
	require.NoError(t, err)
	b, _, err := second.Run(context.Background())
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Sample.Index, b[i].Sample.Index)
		assert.True(t, a[i].Sample.Point.ApproxEqual(b[i].Sample.Point, 0))
		assert.NotEqual(t, a[i].ID, b[i].ID)
	}
}

func TestRun_Cancelled(t *testing.T) {
	r, err := New(smallConfig(SamplerStep), quietLogger(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrace_KeepsPath(t *testing.T) {
	r, err := New(smallConfig(SamplerStep), quietLogger(), nil)
	require.NoError(t, err)

	result := r.Trace(0)
	require.NotEmpty(t, result.Nodes)
	for k := 1; k < len(result.Nodes); k++ {
		assert.Less(t, result.Nodes[k-1].Index, result.Nodes[k].Index)
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	results := []Result{
		{Accepted: true, Distance: 1, Depth: 2},
		{Accepted: false, Distance: 3, Depth: 4},
	}
	results[0].Stats.Evaluations = 10
	results[1].Stats.Evaluations = 20

	summary := Summarize(results)
	assert.Equal(t, 2, summary.Trajectories)
	assert.Equal(t, 1, summary.Accepted)
	assert.InDelta(t, 0.5, summary.AcceptanceRate, 1e-12)
	assert.InDelta(t, 15, summary.MeanEvaluations, 1e-12)
	assert.InDelta(t, 2, summary.MeanDistance, 1e-12)
	assert.InDelta(t, 1.4142135623730951, summary.StdDistance, 1e-12)
	assert.InDelta(t, 3, summary.MeanDepth, 1e-12)
}

func TestNeedsRetry(t *testing.T) {
	tests := []struct {
		name      string
		ok        bool
		index     int
		exhausted bool
		want      bool
	}{
		{"moved", true, 7, false, false},
		{"moved then exhausted", true, -3, true, false},
		{"seed drawn from an open path", true, 0, false, false},
		{"stuck at seed", true, 0, true, true},
		{"sampler failed", false, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsRetry(tt.ok, tt.index, tt.exhausted))
		})
	}
}

func TestDrawLivePoints_Impossible(t *testing.T) {
	problem := core.Problem{LogLike: func([]float64) float64 { return 0 }, Lmin: 1}
	_, err := drawLivePoints(problem, 2, 1, core.NewSeededSampler(1))
	assert.ErrorIs(t, err, ErrNoLivePoints)
}
