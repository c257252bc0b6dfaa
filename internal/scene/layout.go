// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package scene turns a topology and an activation snapshot into flat,
// renderer-ready buffers: one transform and color per neuron instance,
// and one line segment (two endpoints, two colors) per synapse.
//
// Synapse buffers are indexed by position in topology.AllSynapses, six
// float32 values per synapse.
package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/neuroviz/internal/topology"
)

// Layout scales normalized neuron coordinates into world space.
type Layout struct {
	CubeSide float64 `yaml:"cube_side"` // edge length of one neuron cube
	Spacing  float64 `yaml:"spacing"`   // gap multiplier between neighbouring cubes
	StretchY float64 `yaml:"stretch_y"` // extra separation between layers
}

// DefaultLayout returns the layout used by the visualizer.
func DefaultLayout() Layout {
	return Layout{CubeSide: 0.35, Spacing: 1, StretchY: 40}
}

// Validate checks that all scale factors are positive.
func (l Layout) Validate() error {
	if l.CubeSide <= 0 || l.Spacing <= 0 || l.StretchY <= 0 {
		return fmt.Errorf("scene: layout factors must be positive, got %+v", l)
	}
	return nil
}

// Bounds returns the per-axis world size of one neuron slot.
func (l Layout) Bounds() r3.Vec {
	unit := l.Spacing * l.CubeSide
	return r3.Vec{X: unit, Y: l.StretchY * unit, Z: unit}
}

// LayerExtent returns how many neurons layer l spans along each axis:
// side×1×side for the input grid, size×1×1 for every other layer.
func LayerExtent(topo *topology.Topology, l int) (r3.Vec, error) {
	size, err := topo.LayerSize(l)
	if err != nil {
		return r3.Vec{}, err
	}
	if l == 0 {
		side := float64(topo.InputSide())
		return r3.Vec{X: side, Y: 1, Z: side}, nil
	}
	return r3.Vec{X: float64(size), Y: 1, Z: 1}, nil
}

// WorldPosition returns neuron n's position in world space.
func WorldPosition(topo *topology.Topology, layout Layout, n int) (r3.Vec, error) {
	pos, err := topo.PositionOf(n)
	if err != nil {
		return r3.Vec{}, err
	}
	l, err := topo.LayerOf(n)
	if err != nil {
		return r3.Vec{}, err
	}
	extent, err := LayerExtent(topo, l)
	if err != nil {
		return r3.Vec{}, err
	}
	b := layout.Bounds()
	return r3.Vec{
		X: pos.X * extent.X * b.X,
		Y: pos.Y * extent.Y * b.Y,
		Z: pos.Z * extent.Z * b.Z,
	}, nil
}

// NeuronPositions returns the world position of every neuron, in index order.
func NeuronPositions(topo *topology.Topology, layout Layout) ([]r3.Vec, error) {
	out := make([]r3.Vec, topo.NumNeurons())
	for n := range out {
		pos, err := WorldPosition(topo, layout, n)
		if err != nil {
			return nil, err
		}
		out[n] = pos
	}
	return out, nil
}

// SynapsePositions returns src xyz followed by dst xyz for every synapse,
// in AllSynapses order.
func SynapsePositions(topo *topology.Topology, layout Layout) ([]float32, error) {
	neurons, err := NeuronPositions(topo, layout)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, topo.NumSynapses()*6)
	for s := range topo.AllSynapses() {
		src, dst := neurons[s.Src], neurons[s.Dst]
		out = append(out,
			float32(src.X), float32(src.Y), float32(src.Z),
			float32(dst.X), float32(dst.Y), float32(dst.Z),
		)
	}
	return out, nil
}
