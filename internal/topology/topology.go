// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topology

import (
	"fmt"
	"math"
	"slices"
)

// Config describes a multilayer perceptron by its layer widths.
type Config struct {
	InputSize        int   `yaml:"input_size"`
	HiddenLayerSizes []int `yaml:"hidden_layer_sizes"`
	NClasses         int   `yaml:"n_classes"`
}

// Topology is the immutable, precomputed index space of a Config.
//
// Derived values are computed once in New; accessors return copies where
// the value is a slice so callers cannot mutate shared state.
type Topology struct {
	cfg         Config
	layerSizes  []int
	layerStarts []int // len(layerSizes)+1, last entry is the neuron count
	numSynapses int
	inputSide   int
}

// New validates cfg and precomputes the index space.
//
// Rejected configurations (all wrap ErrInvalidTopology):
//   - InputSize, NClasses or any hidden size not positive
//   - InputSize not a perfect square (the input layer is laid out as a grid)
//
// An empty HiddenLayerSizes is allowed and yields a two-layer network.
func New(cfg Config) (*Topology, error) {
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("%w: input size must be positive, got %d", ErrInvalidTopology, cfg.InputSize)
	}
	if cfg.NClasses <= 0 {
		return nil, fmt.Errorf("%w: class count must be positive, got %d", ErrInvalidTopology, cfg.NClasses)
	}
	for i, size := range cfg.HiddenLayerSizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: hidden layer %d size must be positive, got %d", ErrInvalidTopology, i, size)
		}
	}

	side := isqrt(cfg.InputSize)
	if side*side != cfg.InputSize {
		return nil, fmt.Errorf("%w: input size %d is not a perfect square", ErrInvalidTopology, cfg.InputSize)
	}

	sizes := make([]int, 0, len(cfg.HiddenLayerSizes)+2)
	sizes = append(sizes, cfg.InputSize)
	sizes = append(sizes, cfg.HiddenLayerSizes...)
	sizes = append(sizes, cfg.NClasses)

	starts := make([]int, len(sizes)+1)
	for i, size := range sizes {
		starts[i+1] = starts[i] + size
	}

	synapses := 0
	for i := 0; i < len(sizes)-1; i++ {
		synapses += sizes[i] * sizes[i+1]
	}

	cfg.HiddenLayerSizes = slices.Clone(cfg.HiddenLayerSizes)

	return &Topology{
		cfg:         cfg,
		layerSizes:  sizes,
		layerStarts: starts,
		numSynapses: synapses,
		inputSide:   side,
	}, nil
}

// Config returns the configuration the topology was built from.
func (t *Topology) Config() Config {
	cfg := t.cfg
	cfg.HiddenLayerSizes = slices.Clone(cfg.HiddenLayerSizes)
	return cfg
}

// LayerSizes returns [InputSize, hidden..., NClasses].
func (t *Topology) LayerSizes() []int {
	return slices.Clone(t.layerSizes)
}

// LayerSize returns the width of layer l.
func (t *Topology) LayerSize(l int) (int, error) {
	if err := t.checkLayer(l); err != nil {
		return 0, err
	}
	return t.layerSizes[l], nil
}

// LayerStarts returns the first neuron index of every layer.
func (t *Topology) LayerStarts() []int {
	return slices.Clone(t.layerStarts[:len(t.layerSizes)])
}

// LayerStart returns the first neuron index of layer l.
//
// LayerStart(NumLayers()) is accepted and returns NumNeurons().
func (t *Topology) LayerStart(l int) (int, error) {
	if l < 0 || l > len(t.layerSizes) {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrLayerOutOfRange, l, len(t.layerSizes))
	}
	return t.layerStarts[l], nil
}

// NumLayers returns the layer count, always >= 2.
func (t *Topology) NumLayers() int {
	return len(t.layerSizes)
}

// NumNeurons returns the total neuron count across all layers.
func (t *Topology) NumNeurons() int {
	return t.layerStarts[len(t.layerSizes)]
}

// NumSynapses returns the number of connections between adjacent layers.
func (t *Topology) NumSynapses() int {
	return t.numSynapses
}

// InputSide returns the side length of the square input grid.
func (t *Topology) InputSide() int {
	return t.inputSide
}

// MaxNeuronsX returns the widest layer extent along x.
func (t *Topology) MaxNeuronsX() int {
	widest := t.inputSide
	for _, size := range t.layerSizes[1:] {
		widest = max(widest, size)
	}
	return widest
}

// NeuronsInLayer returns the ascending neuron indices of layer l.
func (t *Topology) NeuronsInLayer(l int) ([]int, error) {
	if err := t.checkLayer(l); err != nil {
		return nil, err
	}
	return t.span(l), nil
}

func (t *Topology) span(l int) []int {
	start, stop := t.layerStarts[l], t.layerStarts[l+1]
	out := make([]int, stop-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func (t *Topology) checkLayer(l int) error {
	if l < 0 || l >= len(t.layerSizes) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrLayerOutOfRange, l, len(t.layerSizes))
	}
	return nil
}

func (t *Topology) checkNeuron(n int) error {
	if n < 0 || n >= t.NumNeurons() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrNeuronOutOfRange, n, t.NumNeurons())
	}
	return nil
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
