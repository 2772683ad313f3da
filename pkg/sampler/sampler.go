// Package sampler drives a reflective trajectory through the unit cube to
// produce a new point above the likelihood threshold. The step and bisect
// samplers are caller-clocked state machines: Next hands out points that
// need a likelihood and consumes the result on the following call.
package sampler

import (
	"log/slog"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/geometry"
	"github.com/df07/go-flatnuts/pkg/trajectory"
)

// Sample is an independent point drawn from the trajectory
type Sample struct {
	Index int
	Point core.Vec
	LogL  float64
}

// Step is the outcome of one Next call. When Independent is false the
// caller must evaluate Point and pass the log-likelihood to the next call.
type Step struct {
	Index       int
	Point       core.Vec
	LogL        float64
	Independent bool
}

// Stats counts the work done by a sampler
type Stats struct {
	Evaluations int // likelihood calls made by GetIndependentSample
	Reflections int // region reflections attempted
	Rejections  int // directions that ended at a non-reflectable point
}

// IndependentSampler is the common surface used by the runner
type IndependentSampler interface {
	GetIndependentSample(p core.Problem) (Sample, bool)
	Path() *trajectory.SamplingPath
	Stats() Stats
	Exhausted() bool
}

// Option configures a sampler
type Option func(*clocked)

// WithLogger sets the logger used for trajectory tracing
func WithLogger(logger *slog.Logger) Option {
	return func(c *clocked) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type expansion int

const (
	stepwise expansion = iota
	bisection
)

type goalKind int

const (
	goalSampleAt goalKind = iota
	goalExpandTo
	goalEvalAt
	goalReflectAt
	goalBisect
	goalRecordAt
)

// bracketEnd is one end of a bisection bracket
type bracketEnd struct {
	index    int
	point    core.Vec
	velocity core.Vec
}

type goal struct {
	kind     goalKind
	index    int
	point    core.Vec
	velocity core.Vec
	sign     int

	// bisection bracket: left is inside, right is outside
	left, mid, right bracketEnd
	hasMid           bool
}

// clocked holds the goal machine shared by the step and bisect samplers.
// Goals are processed front to back; each goal either resolves immediately
// or hands a point to the caller and waits for its likelihood.
type clocked struct {
	contour *trajectory.ContourSamplingPath
	mode    expansion
	goals   []goal
	holes   map[int]bool // bracketed indices found outside on evaluation
	stats   Stats
	logger  *slog.Logger
}

func newClocked(contour *trajectory.ContourSamplingPath, mode expansion, opts []Option) *clocked {
	c := &clocked{
		contour: contour,
		mode:    mode,
		holes:   make(map[int]bool),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contour returns the region-aware path
func (c *clocked) Contour() *trajectory.ContourSamplingPath {
	return c.contour
}

// Path returns the underlying sampling path
func (c *clocked) Path() *trajectory.SamplingPath {
	return c.contour.Path
}

// Points returns the recorded nodes ordered by index
func (c *clocked) Points() []trajectory.Node {
	return c.Path().Nodes()
}

// Stats returns the work counters
func (c *clocked) Stats() Stats {
	return c.stats
}

// IsDone reports whether no goal is pending
func (c *clocked) IsDone() bool {
	return len(c.goals) == 0
}

// Exhausted reports whether the path can grow in neither direction
func (c *clocked) Exhausted() bool {
	return !c.Path().FwdPossible() && !c.Path().RwdPossible()
}

// SetNSteps queues the request for the node n steps from the seed as the
// next independent sample. n=0 yields the seed itself.
func (c *clocked) SetNSteps(n int) {
	c.pushFront(goal{kind: goalSampleAt, index: n})
}

// ExpandOneStep grows the path by one step forward or backward and returns
// the node reached.
func (c *clocked) ExpandOneStep(fwd bool, p core.Problem) (Sample, bool) {
	if fwd {
		return c.ExpandToStep(c.Path().Max().Index+1, p)
	}
	return c.ExpandToStep(c.Path().Min().Index-1, p)
}

// ExpandToStep grows the path until node n is recorded or the direction is
// exhausted, and returns the resulting sample.
func (c *clocked) ExpandToStep(n int, p core.Problem) (Sample, bool) {
	c.SetNSteps(n)
	return c.GetIndependentSample(p)
}

// GetIndependentSample runs Next, evaluating requested points with p, until
// an independent sample is produced or no goal remains.
func (c *clocked) GetIndependentSample(p core.Problem) (Sample, bool) {
	var last *float64
	for {
		step, ok := c.Next(last)
		if !ok {
			return Sample{}, false
		}
		if step.Independent {
			return Sample{Index: step.Index, Point: step.Point, LogL: step.LogL}, true
		}
		last = c.evaluate(step.Point, p)
	}
}

// evaluate returns the log-likelihood of u, or nil when u is outside the
// region or below the threshold.
func (c *clocked) evaluate(u core.Vec, p core.Problem) *float64 {
	if !c.contour.Inside(u) {
		return nil
	}
	c.stats.Evaluations++
	logl, ok := p.Evaluate(u)
	if !ok {
		return nil
	}
	return &logl
}

// GapFree reports whether every index between lo and hi resolves to an
// on-path state whose likelihood is above the threshold. Indices skipped by
// bisection are evaluated here without touching the path.
func (c *clocked) GapFree(lo, hi int, p core.Problem) bool {
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		state, err := c.contour.Interpolate(i)
		if err != nil || !state.OnPath {
			return false
		}
		if state.HasLogL {
			continue
		}
		if !c.contour.Inside(state.Point) {
			return false
		}
		if _, ok := p.Evaluate(state.Point); !ok {
			return false
		}
	}
	return true
}

// Next advances the goal machine. last carries the log-likelihood of the
// point handed out by the previous call, or nil when that point was outside
// the region or below the threshold.
//
// It returns an independent step once a requested node is resolved, a
// dependent step when a point needs evaluating, and false when nothing is
// pending.
func (c *clocked) Next(last *float64) (Step, bool) {
	for len(c.goals) > 0 {
		g := c.popFront()

		switch g.kind {
		case goalSampleAt:
			if step, ok := c.sampleAt(g.index); ok {
				return step, true
			}

		case goalExpandTo:
			if step, ok := c.expandTo(g.index); ok {
				return step, true
			}

		case goalEvalAt:
			step, ok := c.evalAt(g, last)
			last = nil
			if ok {
				return step, true
			}

		case goalReflectAt:
			c.reflectAt(g, last)
			last = nil

		case goalBisect:
			step, ok := c.bisectAt(g, last)
			last = nil
			if ok {
				return step, true
			}

		case goalRecordAt:
			c.recordAt(g, last)
			last = nil
		}
	}
	return Step{}, false
}

// sampleAt resolves a request for node i
func (c *clocked) sampleAt(i int) (Step, bool) {
	path := c.Path()
	if n, ok := path.Node(i); ok {
		c.logger.Debug("returning node", "index", i, "logl", n.LogL)
		return Step{Index: i, Point: n.Point.Clone(), LogL: n.LogL, Independent: true}, true
	}

	// Skipped by bisection: evaluate it now, then answer again
	if !c.holes[i] {
		state, err := path.Interpolate(i)
		if err == nil && state.OnPath && !state.HasLogL {
			c.pushFront(goal{kind: goalSampleAt, index: i})
			c.pushFront(goal{kind: goalRecordAt, index: i, point: state.Point, velocity: state.Velocity})
			return Step{Index: i, Point: state.Point}, true
		}
	}

	c.continueSampling(i)
	return Step{}, false
}

// continueSampling queues the work needed to answer a request for node i
func (c *clocked) continueSampling(i int) {
	path := c.Path()
	sign := signOf(i)
	frontier := path.Frontier(sign)
	beyond := (i-frontier.Index)*sign > 0

	switch {
	case beyond && path.Possible(sign):
		c.pushFront(goal{kind: goalExpandTo, index: i})
		c.pushBack(goal{kind: goalSampleAt, index: i})

	case beyond:
		// Unreachable: mirror the missing steps back from the frontier
		target := 2*frontier.Index - i
		if path.Min().Index == path.Max().Index {
			target = frontier.Index
		}
		c.logger.Debug("reversing", "at", frontier.Index, "requested", i, "target", target)
		c.pushBack(goal{kind: goalSampleAt, index: target})

	default:
		// Inside the recorded range but unusable: fall back toward the seed
		c.pushBack(goal{kind: goalSampleAt, index: c.recordedTowardSeed(i)})
	}
}

// recordedTowardSeed returns the recorded index nearest to i on the seed's side
func (c *clocked) recordedTowardSeed(i int) int {
	best := 0
	for _, n := range c.Path().Nodes() {
		if i > 0 && n.Index <= i && n.Index > best {
			best = n.Index
		}
		if i < 0 && n.Index >= i && n.Index < best {
			best = n.Index
		}
	}
	return best
}

// expandTo takes the next expansion step toward node i
func (c *clocked) expandTo(i int) (Step, bool) {
	path := c.Path()
	sign := signOf(i)
	if i == 0 || !path.Possible(sign) {
		return Step{}, false
	}
	frontier := path.Frontier(sign)
	if (i-frontier.Index)*sign <= 0 {
		return Step{}, false
	}

	if c.mode == bisection {
		x, v, err := path.Extrapolate(i)
		if err != nil {
			return Step{}, false
		}
		c.logger.Debug("jumping", "from", frontier.Index, "to", i)
		c.pushFront(goal{
			kind:  goalBisect,
			left:  bracketEnd{index: frontier.Index, point: frontier.Point, velocity: frontier.Velocity},
			right: bracketEnd{index: i, point: x, velocity: v},
			sign:  sign,
		})
		return Step{Index: i, Point: x}, true
	}

	j := frontier.Index + sign
	x, v, err := path.Extrapolate(j)
	if err != nil {
		return Step{}, false
	}
	if j != i {
		c.pushFront(goal{kind: goalExpandTo, index: i})
	}
	c.pushFront(goal{kind: goalEvalAt, index: j, point: x, velocity: v, sign: sign})
	return Step{Index: j, Point: x}, true
}

// evalAt records the evaluated step or starts a reflection
func (c *clocked) evalAt(g goal, last *float64) (Step, bool) {
	if last != nil {
		c.Path().Add(g.index, g.point, g.velocity, *last)
		return Step{}, false
	}
	return c.reflect(g.index, g.point, g.velocity, g.sign)
}

// reflect bounces off the region boundary at the outside point x and
// proposes the point one step along the new direction for index i.
func (c *clocked) reflect(i int, x, v core.Vec, sign int) (Step, bool) {
	c.stats.Reflections++
	vk, ok := c.contour.Reflect(x, v.Multiply(float64(sign)))
	if !ok {
		c.logger.Debug("no reflecting normal", "index", i)
		c.exhaust(i, x, v, sign)
		return Step{}, false
	}

	xk, vk := geometry.LinearStepsWithReflection(x, vk.Multiply(float64(sign)), float64(sign), c.Path().WrappedDims())
	c.logger.Debug("reflecting", "index", i, "from", v, "to", vk)
	c.pushFront(goal{kind: goalReflectAt, index: i, point: xk, velocity: vk, sign: sign})
	return Step{Index: i, Point: xk}, true
}

// reflectAt records the reflected point, or ends the direction when the
// reflected point is unusable too.
func (c *clocked) reflectAt(g goal, last *float64) {
	if last != nil {
		c.Path().Add(g.index, g.point, g.velocity, *last)
		return
	}
	c.logger.Debug("stuck after reflection", "index", g.index)
	c.exhaust(g.index, g.point, g.velocity, g.sign)
}

// recordAt stores a bracketed point skipped by bisection
func (c *clocked) recordAt(g goal, last *float64) {
	if last != nil {
		c.Path().Add(g.index, g.point, g.velocity, *last)
		return
	}
	c.holes[g.index] = true
}

// bisectAt narrows the bracket [left, right] to the first outside index
// and reflects there.
func (c *clocked) bisectAt(g goal, last *float64) (Step, bool) {
	path := c.Path()
	left, right := g.left, g.right

	if !g.hasMid {
		if last != nil {
			path.Add(right.index, right.point, right.velocity, *last)
			return Step{}, false
		}
	} else if last != nil {
		path.Add(g.mid.index, g.mid.point, g.mid.velocity, *last)
		left = g.mid
	} else {
		right = g.mid
	}

	mid := floorDiv(left.index+right.index, 2)
	if mid == left.index || mid == right.index {
		c.logger.Debug("bisection found boundary", "index", right.index)
		return c.reflect(right.index, right.point, right.velocity, g.sign)
	}

	x, v := geometry.LinearStepsWithReflection(left.point, left.velocity, float64(mid-left.index), path.WrappedDims())
	c.pushFront(goal{
		kind:   goalBisect,
		left:   left,
		mid:    bracketEnd{index: mid, point: x, velocity: v},
		right:  right,
		hasMid: true,
		sign:   g.sign,
	})
	return Step{Index: mid, Point: x}, true
}

// exhaust ends growth in direction sign and keeps the terminal state
func (c *clocked) exhaust(i int, x, v core.Vec, sign int) {
	c.stats.Rejections++
	c.Path().Exhaust(sign)
	c.Path().Reject(i, x, v)
}

func (c *clocked) pushFront(g goal) {
	c.goals = append([]goal{g}, c.goals...)
}

func (c *clocked) pushBack(g goal) {
	c.goals = append(c.goals, g)
}

func (c *clocked) popFront() goal {
	g := c.goals[0]
	c.goals = c.goals[1:]
	return g
}

func signOf(i int) int {
	if i < 0 {
		return -1
	}
	return 1
}

// floorDiv divides rounding toward negative infinity
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
