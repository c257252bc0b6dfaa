// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topology

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// LayerOf returns the layer owning neuron n: the last layer whose start
// index does not exceed n.
func (t *Topology) LayerOf(n int) (int, error) {
	if err := t.checkNeuron(n); err != nil {
		return 0, err
	}
	return t.layerOf(n), nil
}

// layerOf assumes n is in range.
func (t *Topology) layerOf(n int) int {
	starts := t.layerStarts[:len(t.layerSizes)]
	return sort.Search(len(starts), func(i int) bool { return starts[i] > n }) - 1
}

// LocalIndex returns the layer of n and n's position within that layer.
func (t *Topology) LocalIndex(n int) (layer, local int, err error) {
	if err := t.checkNeuron(n); err != nil {
		return 0, 0, err
	}
	layer = t.layerOf(n)
	return layer, n - t.layerStarts[layer], nil
}

// PositionOf returns the normalized layout coordinates of neuron n.
//
// Layers are spread along y from -1 (input) to 1 (output). The input
// layer is a side×side grid in the xz plane with row 0 at z = 1; every
// other layer is a row along x at z = 0. All coordinates lie in [-1, 1].
func (t *Topology) PositionOf(n int) (r3.Vec, error) {
	if err := t.checkNeuron(n); err != nil {
		return r3.Vec{}, err
	}
	return t.positionOf(n), nil
}

func (t *Topology) positionOf(n int) r3.Vec {
	l := t.layerOf(n)
	y := 2*float64(l)/float64(len(t.layerSizes)-1) - 1

	if l == 0 {
		side := float64(t.inputSide)
		row := n / t.inputSide
		col := n % t.inputSide
		return r3.Vec{
			X: 2*float64(col)/side - 1,
			Y: y,
			Z: 1 - 2*float64(row)/side,
		}
	}

	local := n - t.layerStarts[l]
	return r3.Vec{
		X: 2*float64(local)/float64(t.layerSizes[l]) - 1,
		Y: y,
		Z: 0,
	}
}
