// Package problems holds named likelihood problems used to exercise the
// samplers from the command line and in tests.
package problems

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/df07/go-flatnuts/pkg/core"
)

// ErrUnknownProblem is returned by Lookup for unregistered names
var ErrUnknownProblem = errors.New("problems: unknown problem")

// Info describes a registered problem
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Dim         int    `json:"dim" yaml:"dim"`
}

// Definition is a problem ready to be sampled
type Definition struct {
	Info
	Wrapped   []bool  // periodic dimensions
	Lmin      float64 // default likelihood threshold
	LogLike   core.LogLikelihood
	Transform core.Transform
}

// Problem binds the definition to a likelihood threshold
func (d Definition) Problem(lmin float64) core.Problem {
	return core.Problem{LogLike: d.LogLike, Transform: d.Transform, Lmin: lmin}
}

var registry = map[string]Definition{
	"gaussian-bowl": {
		Info: Info{
			ID:          "gaussian-bowl",
			Name:        "Gaussian Bowl",
			Description: "Narrow Gaussian centred on the x=0 face of the cube",
			Dim:         2,
		},
		Lmin: -0.5,
		LogLike: func(x []float64) float64 {
			dy := (x[1] - 0.5) / 0.2
			return -0.5 * (x[0]*x[0] + dy*dy)
		},
	},
	"gaussian-shell": {
		Info: Info{
			ID:          "gaussian-shell",
			Name:        "Gaussian Shell",
			Description: "Thin ring of radius 0.2 around the cube centre",
			Dim:         2,
		},
		Lmin: -2,
		LogLike: func(x []float64) float64 {
			r := math.Hypot(x[0]-0.5, x[1]-0.5)
			d := (r - 0.2) / 0.02
			return -0.5 * d * d
		},
	},
	"eggbox": {
		Info: Info{
			ID:          "eggbox",
			Name:        "Egg Box",
			Description: "Periodic multimodal surface over two full periods per axis",
			Dim:         2,
		},
		Wrapped: []bool{true, true},
		Lmin:    100,
		Transform: func(u []float64) []float64 {
			for i := range u {
				u[i] *= 8 * math.Pi
			}
			return u
		},
		LogLike: func(x []float64) float64 {
			return math.Pow(2+math.Cos(x[0]/2)*math.Cos(x[1]/2), 5)
		},
	},
}

// Lookup returns the problem registered under id
func Lookup(id string) (Definition, error) {
	def, ok := registry[id]
	if !ok {
		return Definition{}, errors.Wrapf(ErrUnknownProblem, "%q (available: %v)", id, ids())
	}
	return def, nil
}

// List returns every registered problem ordered by display name
func List() []Info {
	infos := make([]Info, 0, len(registry))
	for _, def := range registry {
		infos = append(infos, def.Info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func ids() []string {
	names := make([]string, 0, len(registry))
	for id := range registry {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
