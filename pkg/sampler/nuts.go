package sampler

import (
	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/geometry"
	"github.com/df07/go-flatnuts/pkg/trajectory"
)

// NUTSSampler grows the path by repeated doubling in a random direction
// until the trajectory turns back on itself, then draws uniformly from the
// valid part of the tree. Expansion is stepwise, so every tree node is an
// evaluated state.
type NUTSSampler struct {
	*StepSampler
	config NUTSConfig
	random core.Sampler
	depth  int
}

// NewNUTSSampler creates a NUTS sampler. random decides the doubling
// directions and the final draw.
func NewNUTSSampler(contour *trajectory.ContourSamplingPath, random core.Sampler, config NUTSConfig, opts ...Option) *NUTSSampler {
	return &NUTSSampler{
		StepSampler: NewStepSampler(contour, opts...),
		config:      config,
		random:      random,
	}
}

// Depth returns the number of doublings of the last tree
func (n *NUTSSampler) Depth() int {
	return n.depth
}

// UTurn reports whether the segment from left to right has started to fold
// back: either end velocity no longer points along the displacement.
func UTurn(left, right trajectory.Node) bool {
	d := right.Point.Subtract(left.Point)
	return geometry.Angle(d, left.Velocity) <= 0 || geometry.Angle(d, right.Velocity) <= 0
}

// GetIndependentSample builds a tree from the seed and returns a node drawn
// uniformly from its valid range. The seed is always valid, so the boolean
// is false only if the seed itself is missing.
func (n *NUTSSampler) GetIndependentSample(p core.Problem) (Sample, bool) {
	path := n.Path()
	seed, ok := path.Node(0)
	if !ok {
		return Sample{}, false
	}

	left, right := seed, seed
	lo, hi := 0, 0
	n.depth = 0

	for {
		sign := 1
		if n.random.Intn(2) == 1 {
			sign = -1
		}
		start := right
		if sign < 0 {
			start = left
		}
		target := start.Index + sign*(1<<n.depth)

		reached := n.expandTowards(target, sign, p)
		stop := !reached
		if reached {
			subLeft, subRight, subLo, subHi, subStop := n.buildTree(start, n.depth, sign)
			if !subStop {
				if sign < 0 {
					left = subLeft
				} else {
					right = subRight
				}
				lo, hi = min(lo, subLo), max(hi, subHi)
			}
			stop = subStop
		}
		n.depth++

		switch {
		case stop:
		case UTurn(left, right):
			stop = true
		case n.Exhausted():
			stop = true
		case n.depth >= n.config.MaxDepth:
			stop = true
		}
		n.logger.Debug("tree doubled", "depth", n.depth, "direction", sign, "lo", lo, "hi", hi, "stop", stop)
		if stop {
			break
		}
	}

	i := lo + n.random.Intn(hi-lo+1)
	node, ok := path.Node(i)
	if !ok {
		node = seed
	}
	return Sample{Index: node.Index, Point: node.Point.Clone(), LogL: node.LogL}, true
}

// expandTowards grows the path one step at a time until target is recorded.
// It returns false when the direction is exhausted first.
func (n *NUTSSampler) expandTowards(target, sign int, p core.Problem) bool {
	path := n.Path()
	for (target-path.Frontier(sign).Index)*sign > 0 {
		if !path.Possible(sign) {
			return false
		}
		n.ExpandOneStep(sign > 0, p)
	}
	return true
}

// buildTree walks the recorded nodes of the subtree of the given depth that
// starts next to start in direction sign. It returns the subtree ends, its
// index range, and whether it stopped early.
func (n *NUTSSampler) buildTree(start trajectory.Node, depth, sign int) (left, right trajectory.Node, lo, hi int, stop bool) {
	if depth == 0 {
		node, ok := n.Path().Node(start.Index + sign)
		if !ok {
			return start, start, start.Index, start.Index, true
		}
		return node, node, node.Index, node.Index, false
	}

	left, right, lo, hi, stop = n.buildTree(start, depth-1, sign)
	if stop {
		return
	}

	next := right
	if sign < 0 {
		next = left
	}
	subLeft, subRight, subLo, subHi, subStop := n.buildTree(next, depth-1, sign)
	if sign < 0 {
		left = subLeft
	} else {
		right = subRight
	}
	lo, hi = min(lo, subLo), max(hi, subHi)
	stop = subStop || UTurn(left, right)
	return
}
