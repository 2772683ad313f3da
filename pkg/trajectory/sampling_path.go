// Package trajectory records the states visited along one bouncing
// trajectory and replays unrecorded states through the hypercube geometry.
package trajectory

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/geometry"
)

// ErrUnresolved is returned when an index cannot be derived from the
// recorded nodes. The caller has to expand the path first.
var ErrUnresolved = errors.New("trajectory: index not resolvable from recorded nodes")

// bracketTolerance bounds the replay mismatch accepted between two recorded
// nodes that lie on one straight (cube-reflected) segment.
const bracketTolerance = 1e-9

// Node is an exactly evaluated state on the path
type Node struct {
	Index    int
	Point    core.Vec
	Velocity core.Vec
	LogL     float64
}

// State is the answer to an interpolation query
type State struct {
	Point    core.Vec
	Velocity core.Vec
	LogL     float64
	HasLogL  bool // false for synthesized states
	OnPath   bool // false when the query was clamped to an exhausted end
}

// SamplingPath is a sparse record of states along one physical path,
// keyed by signed step index. Index 0 is the seed. Velocities are stored
// in the forward sense; walking backward uses the negated velocity.
type SamplingPath struct {
	nodes       map[int]Node
	indices     []int // sorted recorded indices
	rejected    []Node
	wrapped     []bool
	fwdPossible bool
	rwdPossible bool
}

// NewSamplingPath creates a path seeded at x0 moving with v0, where the seed
// has log-likelihood L0.
func NewSamplingPath(x0, v0 core.Vec, L0 float64) *SamplingPath {
	if len(x0) != len(v0) {
		panic("trajectory: seed point and velocity dimensions differ")
	}
	sp := &SamplingPath{}
	sp.Reset(x0, v0, L0)
	return sp
}

// Reset discards every recorded state and reseeds the path
func (sp *SamplingPath) Reset(x0, v0 core.Vec, L0 float64) {
	sp.nodes = make(map[int]Node)
	sp.indices = nil
	sp.rejected = nil
	sp.fwdPossible = true
	sp.rwdPossible = true
	sp.Add(0, x0, v0, L0)
}

// SetWrappedDims marks periodic dimensions used when replaying states
func (sp *SamplingPath) SetWrappedDims(wrapped []bool) {
	sp.wrapped = append([]bool(nil), wrapped...)
}

// WrappedDims returns the periodic dimension flags
func (sp *SamplingPath) WrappedDims() []bool {
	return sp.wrapped
}

// Dim returns the dimension of the sampling space
func (sp *SamplingPath) Dim() int {
	return len(sp.nodes[0].Point)
}

// Add records an exactly evaluated state. Indices may arrive in any order;
// re-adding an index replaces the stored state.
func (sp *SamplingPath) Add(i int, x, v core.Vec, L float64) {
	if _, exists := sp.nodes[i]; !exists {
		pos := sort.SearchInts(sp.indices, i)
		sp.indices = append(sp.indices, 0)
		copy(sp.indices[pos+1:], sp.indices[pos:])
		sp.indices[pos] = i
	}
	sp.nodes[i] = Node{Index: i, Point: x.Clone(), Velocity: v.Clone(), LogL: L}
}

// Reject remembers a terminal state that failed the likelihood threshold.
// It is kept for inspection only and never answers interpolation queries.
func (sp *SamplingPath) Reject(i int, x, v core.Vec) {
	sp.rejected = append(sp.rejected, Node{Index: i, Point: x.Clone(), Velocity: v.Clone()})
}

// Rejected returns the terminal states that failed the threshold
func (sp *SamplingPath) Rejected() []Node {
	return sp.rejected
}

// Node returns the recorded state at index i
func (sp *SamplingPath) Node(i int) (Node, bool) {
	n, ok := sp.nodes[i]
	return n, ok
}

// Nodes returns all recorded states ordered by index
func (sp *SamplingPath) Nodes() []Node {
	nodes := make([]Node, len(sp.indices))
	for k, i := range sp.indices {
		nodes[k] = sp.nodes[i]
	}
	return nodes
}

// Len returns the number of recorded states
func (sp *SamplingPath) Len() int {
	return len(sp.indices)
}

// Max returns the recorded state with the highest index
func (sp *SamplingPath) Max() Node {
	return sp.nodes[sp.indices[len(sp.indices)-1]]
}

// Min returns the recorded state with the lowest index
func (sp *SamplingPath) Min() Node {
	return sp.nodes[sp.indices[0]]
}

// FwdPossible reports whether the path may still grow forward
func (sp *SamplingPath) FwdPossible() bool { return sp.fwdPossible }

// RwdPossible reports whether the path may still grow backward
func (sp *SamplingPath) RwdPossible() bool { return sp.rwdPossible }

// Possible reports whether the path may still grow in direction sign
func (sp *SamplingPath) Possible(sign int) bool {
	if sign > 0 {
		return sp.fwdPossible
	}
	return sp.rwdPossible
}

// Exhaust stops growth in direction sign (+1 forward, -1 backward)
func (sp *SamplingPath) Exhaust(sign int) {
	if sign > 0 {
		sp.fwdPossible = false
	} else {
		sp.rwdPossible = false
	}
}

// Frontier returns the outermost recorded state in direction sign
func (sp *SamplingPath) Frontier(sign int) Node {
	if sign > 0 {
		return sp.Max()
	}
	return sp.Min()
}

// Interpolate returns the state at index i.
//
// Recorded indices are returned as stored. An unrecorded index between two
// recorded nodes is replayed from the nearer one, provided the two nodes lie
// on one segment of the cube-reflected flight (no region reflection in
// between); its log-likelihood is unknown. Beyond an exhausted end the
// outermost state is returned with OnPath false. Everything else fails with
// ErrUnresolved.
func (sp *SamplingPath) Interpolate(i int) (State, error) {
	if n, ok := sp.nodes[i]; ok {
		return State{Point: n.Point.Clone(), Velocity: n.Velocity.Clone(), LogL: n.LogL, HasLogL: true, OnPath: true}, nil
	}

	pos := sort.SearchInts(sp.indices, i)
	hasBefore := pos > 0
	hasAfter := pos < len(sp.indices)

	if !hasAfter && !sp.fwdPossible {
		n := sp.Max()
		return State{Point: n.Point.Clone(), Velocity: n.Velocity.Clone(), LogL: n.LogL, HasLogL: true, OnPath: false}, nil
	}
	if !hasBefore && !sp.rwdPossible {
		n := sp.Min()
		return State{Point: n.Point.Clone(), Velocity: n.Velocity.Clone(), LogL: n.LogL, HasLogL: true, OnPath: false}, nil
	}
	if !hasBefore || !hasAfter {
		return State{}, errors.Wrapf(ErrUnresolved, "index %d outside recorded range [%d, %d]", i, sp.Min().Index, sp.Max().Index)
	}

	before := sp.nodes[sp.indices[pos-1]]
	after := sp.nodes[sp.indices[pos]]
	if !sp.sameSegment(before, after) {
		return State{}, errors.Wrapf(ErrUnresolved, "index %d brackets a reflection between %d and %d", i, before.Index, after.Index)
	}

	from := before
	if after.Index-i < i-before.Index {
		from = after
	}
	x, v := geometry.LinearStepsWithReflection(from.Point, from.Velocity, float64(i-from.Index), sp.wrapped)
	return State{Point: x, Velocity: v, OnPath: true}, nil
}

// sameSegment reports whether replaying from a reproduces b, i.e. no
// region reflection happened between the two recorded nodes.
func (sp *SamplingPath) sameSegment(a, b Node) bool {
	x, v := geometry.LinearStepsWithReflection(a.Point, a.Velocity, float64(b.Index-a.Index), sp.wrapped)
	return x.ApproxEqual(b.Point, bracketTolerance) && v.ApproxEqual(b.Velocity, bracketTolerance)
}

// Extrapolate replays the flight from the frontier in the direction of i
// out to index i, which must lie beyond that frontier.
func (sp *SamplingPath) Extrapolate(i int) (core.Vec, core.Vec, error) {
	sign := 1
	if i < 0 {
		sign = -1
	}
	frontier := sp.Frontier(sign)
	delta := i - frontier.Index
	if delta*sign <= 0 {
		return nil, nil, errors.Wrapf(ErrUnresolved, "index %d is not beyond frontier %d", i, frontier.Index)
	}
	x, v := geometry.LinearStepsWithReflection(frontier.Point, frontier.Velocity, float64(delta), sp.wrapped)
	return x, v, nil
}
