// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topology

import (
	"fmt"
	"iter"
)

// Synapse is a directed connection from a neuron in layer l to a neuron
// in layer l+1.
type Synapse struct {
	Src int
	Dst int
}

// OutgoingOf returns the ascending indices of every neuron in the layer
// after n's. Neurons in the output layer have no outgoing synapses.
func (t *Topology) OutgoingOf(n int) ([]int, error) {
	if err := t.checkNeuron(n); err != nil {
		return nil, err
	}
	l := t.layerOf(n)
	if l+1 >= len(t.layerSizes) {
		return []int{}, nil
	}
	return t.span(l + 1), nil
}

// FanOut returns len(OutgoingOf(n)) without allocating.
func (t *Topology) FanOut(n int) (int, error) {
	if err := t.checkNeuron(n); err != nil {
		return 0, err
	}
	return t.fanOut(t.layerOf(n)), nil
}

func (t *Topology) fanOut(l int) int {
	if l+1 >= len(t.layerSizes) {
		return 0
	}
	return t.layerSizes[l+1]
}

// SynapsesInLayer returns the number of synapses originating in layer l.
func (t *Topology) SynapsesInLayer(l int) (int, error) {
	if err := t.checkLayer(l); err != nil {
		return 0, err
	}
	return t.layerSizes[l] * t.fanOut(l), nil
}

// AllSynapses enumerates every synapse: sources ascending, and for each
// source its targets ascending.
//
// The order is canonical. Per-synapse buffers (line positions, line
// colors) are indexed by position in this sequence. Each call starts a
// fresh enumeration.
func (t *Topology) AllSynapses() iter.Seq[Synapse] {
	return func(yield func(Synapse) bool) {
		last := len(t.layerSizes) - 1
		for l := 0; l < last; l++ {
			nextStart, nextStop := t.layerStarts[l+1], t.layerStarts[l+2]
			for src := t.layerStarts[l]; src < t.layerStarts[l+1]; src++ {
				for dst := nextStart; dst < nextStop; dst++ {
					if !yield(Synapse{Src: src, Dst: dst}) {
						return
					}
				}
			}
		}
	}
}

// SynapseIndex returns the position of s in the AllSynapses sequence.
func (t *Topology) SynapseIndex(s Synapse) (int, error) {
	if err := t.checkNeuron(s.Src); err != nil {
		return 0, err
	}
	if err := t.checkNeuron(s.Dst); err != nil {
		return 0, err
	}
	l := t.layerOf(s.Src)
	if l+1 >= len(t.layerSizes) || t.layerOf(s.Dst) != l+1 {
		return 0, fmt.Errorf("%w: no synapse %d -> %d", ErrNoSynapse, s.Src, s.Dst)
	}

	offset := 0
	for i := 0; i < l; i++ {
		offset += t.layerSizes[i] * t.layerSizes[i+1]
	}
	srcLocal := s.Src - t.layerStarts[l]
	dstLocal := s.Dst - t.layerStarts[l+1]
	return offset + srcLocal*t.layerSizes[l+1] + dstLocal, nil
}
