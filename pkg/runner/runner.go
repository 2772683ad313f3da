// Package runner draws a region from live points and runs many trajectory
// samplers over it concurrently.
package runner

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/problems"
	"github.com/df07/go-flatnuts/pkg/region"
	"github.com/df07/go-flatnuts/pkg/sampler"
	"github.com/df07/go-flatnuts/pkg/trajectory"
)

// ErrNoLivePoints is returned when rejection sampling cannot find enough
// points above the threshold.
var ErrNoLivePoints = errors.New("runner: could not draw live points above the threshold")

// maxDrawsPerPoint bounds the rejection sampling of live points
const maxDrawsPerPoint = 100000

// Result is the outcome of one trajectory
type Result struct {
	ID         uuid.UUID
	Trajectory int
	Start      core.Vec
	Sample     sampler.Sample
	Accepted   bool // the sampler produced a sample; a non-exhausted path may still return its seed
	Attempts   int
	Stats      sampler.Stats // summed over attempts
	Depth      int
	Distance   float64
	Duration   time.Duration

	Nodes    []trajectory.Node // recorded path of the final attempt, filled by Trace
	Rejected []trajectory.Node
}

// Summary aggregates a batch of results
type Summary struct {
	Trajectories    int
	Accepted        int
	AcceptanceRate  float64
	MeanEvaluations float64
	MeanReflections float64
	MeanDistance    float64
	StdDistance     float64
	MeanDepth       float64
	Duration        time.Duration
}

// Runner owns the live points and region for one problem
type Runner struct {
	config     Config
	definition problems.Definition
	problem    core.Problem
	live       []core.Vec
	region     *region.Friends
	logger     *slog.Logger
	metrics    *Metrics
}

// New validates config, draws the live points and fits the region.
// metrics may be nil.
func New(config Config, logger *slog.Logger, metrics *Metrics) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	definition, err := problems.Lookup(config.Problem)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		config:     config,
		definition: definition,
		problem:    definition.Problem(definition.Lmin),
		logger:     logger.With("problem", definition.ID, "sampler", config.Sampler),
		metrics:    metrics,
	}

	r.live, err = drawLivePoints(r.problem, definition.Dim, config.LivePoints, core.NewSeededSampler(config.Seed))
	if err != nil {
		return nil, err
	}
	r.region, err = region.NewFriends(r.live, definition.Wrapped, config.Enlarge)
	if err != nil {
		return nil, errors.Wrap(err, "runner: fitting region")
	}

	r.logger.Info("region ready", "live_points", len(r.live), "radius_sq", r.region.MaxRadiusSq())
	return r, nil
}

// drawLivePoints samples the cube uniformly and keeps points above the threshold
func drawLivePoints(problem core.Problem, dim, n int, random core.Sampler) ([]core.Vec, error) {
	live := make([]core.Vec, 0, n)
	for draws := 0; len(live) < n; draws++ {
		if draws >= n*maxDrawsPerPoint {
			return nil, errors.Wrapf(ErrNoLivePoints, "found %d of %d after %d draws", len(live), n, draws)
		}
		u := core.RandomPointInCube(dim, random)
		if _, ok := problem.Evaluate(u); ok {
			live = append(live, u)
		}
	}
	return live, nil
}

// LivePoints returns the points defining the region
func (r *Runner) LivePoints() []core.Vec {
	return r.live
}

// Region returns the shared region
func (r *Runner) Region() *region.Friends {
	return r.region
}

// Run executes every trajectory, at most Workers at a time
func (r *Runner) Run(ctx context.Context) ([]Result, Summary, error) {
	start := time.Now()
	workers := r.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, r.config.Trajectories)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range results {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := r.runTrajectory(i, false)
			results[i] = result
			r.metrics.observe(r.config.Sampler, result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, errors.Wrap(err, "runner: trajectories interrupted")
	}

	summary := Summarize(results)
	summary.Duration = time.Since(start)
	r.logger.Info("run complete",
		"trajectories", summary.Trajectories,
		"accepted", summary.Accepted,
		"mean_evaluations", summary.MeanEvaluations,
		"mean_distance", summary.MeanDistance,
		"duration", summary.Duration)
	return results, summary, nil
}

// Trace runs the trajectory with the given number and keeps its path
func (r *Runner) Trace(trajectoryNumber int) Result {
	result := r.runTrajectory(trajectoryNumber, true)
	r.metrics.observe(r.config.Sampler, result)
	return result
}

// runTrajectory draws one sample, restarting from a fresh seed when the
// sampler fails or is stuck at its starting point.
func (r *Runner) runTrajectory(number int, keepPath bool) Result {
	started := time.Now()
	result := Result{ID: uuid.New(), Trajectory: number}
	logger := r.logger.With("trajectory", result.ID.String()[:8])

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		random := core.NewSeededSampler(r.seedFor(number, attempt))
		start := r.live[random.Intn(len(r.live))]
		v := core.RandomDirection(r.definition.Dim, r.config.StepScale, random)
		startL, _ := r.problem.Evaluate(start)

		path := trajectory.NewSamplingPath(start, v, startL)
		contour := trajectory.NewContourSamplingPath(path, r.region)
		s, depth := r.newSampler(contour, random, logger)

		sample, ok := s.GetIndependentSample(r.problem)
		stats := s.Stats()
		result.Attempts++
		result.Stats.Evaluations += stats.Evaluations
		result.Stats.Reflections += stats.Reflections
		result.Stats.Rejections += stats.Rejections
		result.Start = start
		if depth != nil {
			result.Depth = depth()
		}
		if keepPath {
			result.Nodes = path.Nodes()
			result.Rejected = path.Rejected()
		}
		if !ok {
			sample = sampler.Sample{Point: start.Clone(), LogL: startL}
		}
		result.Sample = sample
		result.Distance = math.Sqrt(start.DistanceSquared(sample.Point))

		if !needsRetry(ok, sample.Index, s.Exhausted()) {
			result.Accepted = true
			logger.Debug("trajectory accepted", "index", sample.Index, "attempt", attempt, "distance", result.Distance)
			break
		}
		logger.Warn("trajectory stuck at its seed", "attempt", attempt, "rejections", stats.Rejections)
	}

	result.Duration = time.Since(started)
	return result
}

// needsRetry reports whether an attempt produced nothing usable. Returning
// the seed is a valid draw unless the path could not move in either direction.
func needsRetry(ok bool, index int, exhausted bool) bool {
	return !ok || (index == 0 && exhausted)
}

// newSampler builds the configured sampler. depth is non-nil for NUTS.
func (r *Runner) newSampler(contour *trajectory.ContourSamplingPath, random core.Sampler, logger *slog.Logger) (sampler.IndependentSampler, func() int) {
	opts := []sampler.Option{sampler.WithLogger(logger)}
	steps := r.config.Steps
	if random.Intn(2) == 1 {
		steps = -steps
	}

	switch r.config.Sampler {
	case SamplerStep:
		s := sampler.NewStepSampler(contour, opts...)
		s.SetNSteps(steps)
		return s, nil
	case SamplerBisect:
		s := sampler.NewBisectSampler(contour, opts...)
		s.SetNSteps(steps)
		return s, nil
	default:
		s := sampler.NewNUTSSampler(contour, random, r.config.NUTS, opts...)
		return s, s.Depth
	}
}

// seedFor derives a distinct deterministic seed per trajectory and attempt
func (r *Runner) seedFor(number, attempt int) int64 {
	return r.config.Seed + 1 + int64(number)*int64(r.config.MaxRetries+1) + int64(attempt)
}

// Summarize aggregates results
func Summarize(results []Result) Summary {
	summary := Summary{Trajectories: len(results)}
	if len(results) == 0 {
		return summary
	}

	evaluations := make([]float64, len(results))
	reflections := make([]float64, len(results))
	distances := make([]float64, len(results))
	depths := make([]float64, len(results))
	for i, result := range results {
		if result.Accepted {
			summary.Accepted++
		}
		evaluations[i] = float64(result.Stats.Evaluations)
		reflections[i] = float64(result.Stats.Reflections)
		distances[i] = result.Distance
		depths[i] = float64(result.Depth)
	}

	summary.AcceptanceRate = float64(summary.Accepted) / float64(len(results))
	summary.MeanEvaluations = stat.Mean(evaluations, nil)
	summary.MeanReflections = stat.Mean(reflections, nil)
	summary.MeanDepth = stat.Mean(depths, nil)
	if len(results) > 1 {
		summary.MeanDistance, summary.StdDistance = stat.MeanStdDev(distances, nil)
	} else {
		summary.MeanDistance = distances[0]
	}
	return summary
}
