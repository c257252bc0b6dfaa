// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/neuroviz/internal/topology"
)

// ErrEngine wraps failures raised inside the ML framework.
var ErrEngine = errors.New("model: engine failure")

// Backend is the autodiff-enabled CPU backend used for training.
type Backend = *autodiff.Backend[*cpu.Backend]

// NewBackend returns a fresh autodiff CPU backend.
func NewBackend() Backend {
	return autodiff.New(cpu.New())
}

// tapeOwner is implemented by autodiff backends.
type tapeOwner interface {
	Tape() *autodiff.GradientTape
}

// MLP is a fully connected classifier shaped by a topology.
type MLP[B tensor.Backend] struct {
	topo    *topology.Topology
	seq     *nn.Sequential[B]
	linears []*nn.Linear[B]
	relu    *nn.ReLU[B]
	backend B
}

// NewMLP creates an MLP with Xavier-initialized weights for topo.
func NewMLP[B tensor.Backend](topo *topology.Topology, backend B) *MLP[B] {
	sizes := topo.LayerSizes()
	m := &MLP[B]{
		topo:    topo,
		seq:     nn.NewSequential[B](),
		relu:    nn.NewReLU[B](),
		backend: backend,
	}

	for i := 0; i < len(sizes)-1; i++ {
		lin := nn.NewLinear(sizes[i], sizes[i+1], backend)
		m.linears = append(m.linears, lin)
		m.seq.Add(lin)
		if i < len(sizes)-2 {
			m.seq.Add(m.relu)
		}
	}
	return m
}

// Topology returns the topology the network was built for.
func (m *MLP[B]) Topology() *topology.Topology {
	return m.topo
}

// Backend returns the backend the network computes on.
func (m *MLP[B]) Backend() B {
	return m.backend
}

// Forward maps a [batch, in] input to [batch, out] logits.
func (m *MLP[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.seq.Forward(input)
}

// Parameters returns all weights and biases, layer by layer.
func (m *MLP[B]) Parameters() []*nn.Parameter[B] {
	return m.seq.Parameters()
}

// NumParameters counts trainable scalars.
func (m *MLP[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}

// Probe feeds one sample through the network and captures every layer.
//
// Gradient recording is paused for the duration when the backend has a
// tape. Panics raised by the framework are returned as ErrEngine.
func (m *MLP[B]) Probe(sample []float32) (snap *topology.Snapshot, err error) {
	sizes := m.topo.LayerSizes()
	if len(sample) != sizes[0] {
		return nil, fmt.Errorf("%w: sample has %d values, want %d", topology.ErrSnapshotShape, len(sample), sizes[0])
	}

	if owner, ok := any(m.backend).(tapeOwner); ok {
		tape := owner.Tape()
		if tape.IsRecording() {
			tape.StopRecording()
			defer tape.StartRecording()
		}
	}
	defer recoverEngine(&err)

	x, err := tensor.FromSlice(sample, tensor.Shape{1, sizes[0]}, m.backend)
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", ErrEngine, err)
	}

	outputs := make([][]float32, 0, len(m.linears))
	last := len(m.linears) - 1
	for i, lin := range m.linears {
		x = lin.Forward(x)
		if i < last {
			x = m.relu.Forward(x)
			outputs = append(outputs, x.Data())
			continue
		}
		outputs = append(outputs, Softmax(x.Data()))
	}

	// NewSnapshot copies, so the snapshot does not alias tensor memory.
	return topology.NewSnapshot(sample, outputs), nil
}

// Predict returns the most probable class for sample and its probability.
func (m *MLP[B]) Predict(sample []float32) (class int, prob float32, err error) {
	snap, err := m.Probe(sample)
	if err != nil {
		return 0, 0, err
	}
	probs := snap.LayerOutputs[len(snap.LayerOutputs)-1]
	for i, p := range probs {
		if p > probs[class] {
			class = i
		}
	}
	return class, probs[class], nil
}

// Softmax returns exp(x_i) / sum(exp(x)) computed in float64.
func Softmax(logits []float32) []float32 {
	xs := make([]float64, len(logits))
	for i, v := range logits {
		xs[i] = float64(v)
	}
	lse := floats.LogSumExp(xs)

	out := make([]float32, len(xs))
	for i, v := range xs {
		out[i] = float32(math.Exp(v - lse))
	}
	return out
}

func recoverEngine(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrEngine, r)
	}
}
