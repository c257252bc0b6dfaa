// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package scene

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/neuroviz/internal/colormap"
	"github.com/born-ml/neuroviz/internal/topology"
)

// Propagation is the state of the forward-pass animation.
//
// Progress runs from 0 (nothing reached) to 1 (output layer reached).
// Layer l is reached once Progress >= l/(NumLayers-1). With Sweep set,
// layers the wave has moved two steps past fade back to black.
type Propagation struct {
	Progress float64
	Sweep    bool
}

// Settled shows every layer lit, no animation.
var Settled = Propagation{Progress: 1}

// values returns per-neuron activations, all zero when snap is nil.
func values(topo *topology.Topology, snap *topology.Snapshot) ([]float32, error) {
	if snap == nil {
		return make([]float32, topo.NumNeurons()), nil
	}
	return topo.Activations(snap)
}

// NeuronColors returns one color per neuron. Neurons in layers the
// propagation has not reached are black.
func NeuronColors(topo *topology.Topology, snap *topology.Snapshot, lut *colormap.Lut, prop Propagation) ([]colorful.Color, error) {
	acts, err := values(topo, snap)
	if err != nil {
		return nil, err
	}

	last := float64(topo.NumLayers() - 1)
	out := make([]colorful.Color, len(acts))
	for n, v := range acts {
		l, _ := topo.LayerOf(n)
		if float64(l)/last > prop.Progress {
			out[n] = colormap.Black
			continue
		}
		out[n] = lut.Color(float64(v))
	}
	return out, nil
}

// SynapseColors returns src rgb followed by dst rgb for every synapse, in
// AllSynapses order. A line takes its source neuron's color and fades
// toward black along its length while the wave is between the two layers.
func SynapseColors(topo *topology.Topology, snap *topology.Snapshot, lut *colormap.Lut, prop Propagation) ([]float32, error) {
	acts, err := values(topo, snap)
	if err != nil {
		return nil, err
	}

	step := 1 / float64(topo.NumLayers()-1)
	out := make([]float32, 0, topo.NumSynapses()*6)

	prevSrc := -1
	var head, tail colorful.Color
	for s := range topo.AllSynapses() {
		if s.Src != prevSrc {
			prevSrc = s.Src
			l, _ := topo.LayerOf(s.Src)
			head, tail = lineColors(lut.Color(float64(acts[s.Src])), prop, prop.Progress-float64(l)*step, step)
		}
		out = append(out,
			float32(head.R), float32(head.G), float32(head.B),
			float32(tail.R), float32(tail.G), float32(tail.B),
		)
	}
	return out, nil
}

// lineColors returns the endpoint colors of a line whose source layer the
// wave passed delta ago (negative: not yet reached).
func lineColors(c colorful.Color, prop Propagation, delta, step float64) (head, tail colorful.Color) {
	switch {
	case delta < 0:
		return colormap.Black, colormap.Black
	case prop.Sweep && delta >= 2*step:
		return colormap.Black, colormap.Fade(c, math.Mod(delta, step)/step)
	case delta >= step:
		return c, c
	default:
		return c, colormap.Fade(c, delta/step)
	}
}

// FitRange returns a copy of lut spanning the snapshot's activation range.
// A nil or constant snapshot leaves the range unchanged.
func FitRange(topo *topology.Topology, snap *topology.Snapshot, lut *colormap.Lut) (*colormap.Lut, error) {
	if snap == nil {
		return lut, nil
	}
	acts, err := topo.Activations(snap)
	if err != nil {
		return nil, err
	}

	vals := make([]float64, len(acts))
	for i, v := range acts {
		vals[i] = float64(v)
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if hi <= lo {
		return lut, nil
	}
	return lut.WithRange(lo, hi), nil
}
