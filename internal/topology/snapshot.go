// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topology

import (
	"fmt"
	"slices"
)

// Snapshot is one evaluation's worth of per-neuron values: the raw input
// and every non-input layer's output, in layer order.
//
// A Snapshot carries no schema. Consumers check it against a Topology
// with CheckSnapshot before reading. Treat it as read-only once built;
// a newer probe replaces it as a whole.
type Snapshot struct {
	Input        []float32
	LayerOutputs [][]float32
}

// NewSnapshot copies input and outputs into a fresh Snapshot.
func NewSnapshot(input []float32, outputs [][]float32) *Snapshot {
	s := &Snapshot{
		Input:        slices.Clone(input),
		LayerOutputs: make([][]float32, len(outputs)),
	}
	for i, out := range outputs {
		s.LayerOutputs[i] = slices.Clone(out)
	}
	return s
}

// CheckSnapshot verifies that s has one vector per layer with the
// topology's widths.
func (t *Topology) CheckSnapshot(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotShape)
	}
	if len(s.Input) != t.layerSizes[0] {
		return fmt.Errorf("%w: input has %d values, want %d", ErrSnapshotShape, len(s.Input), t.layerSizes[0])
	}
	if len(s.LayerOutputs) != len(t.layerSizes)-1 {
		return fmt.Errorf("%w: %d layer outputs, want %d", ErrSnapshotShape, len(s.LayerOutputs), len(t.layerSizes)-1)
	}
	for i, out := range s.LayerOutputs {
		if len(out) != t.layerSizes[i+1] {
			return fmt.Errorf("%w: layer %d has %d values, want %d", ErrSnapshotShape, i+1, len(out), t.layerSizes[i+1])
		}
	}
	return nil
}

// ActivationOf returns neuron n's value in s. The whole snapshot must
// match the topology.
func (t *Topology) ActivationOf(s *Snapshot, n int) (float32, error) {
	if err := t.checkNeuron(n); err != nil {
		return 0, err
	}
	if err := t.CheckSnapshot(s); err != nil {
		return 0, err
	}

	l := t.layerOf(n)
	if l == 0 {
		return s.Input[n], nil
	}
	return s.LayerOutputs[l-1][n-t.layerStarts[l]], nil
}

// Activations returns every neuron's value in index order.
func (t *Topology) Activations(s *Snapshot) ([]float32, error) {
	if err := t.CheckSnapshot(s); err != nil {
		return nil, err
	}
	flat := make([]float32, 0, t.NumNeurons())
	flat = append(flat, s.Input...)
	for _, out := range s.LayerOutputs {
		flat = append(flat, out...)
	}
	return flat, nil
}
