// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package scene

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/neuroviz/internal/colormap"
	"github.com/born-ml/neuroviz/internal/topology"
)

// Frame holds every buffer a renderer needs for one snapshot.
// Neuron buffers carry 3 values per neuron, synapse buffers 6 per synapse.
type Frame struct {
	ProbeID          string    `json:"probe_id,omitempty"`
	LayerSizes       []int     `json:"layer_sizes"`
	NeuronPositions  []float32 `json:"neuron_positions"`
	NeuronColors     []float32 `json:"neuron_colors"`
	SynapsePositions []float32 `json:"synapse_positions"`
	SynapseColors    []float32 `json:"synapse_colors"`
}

// FrameOptions selects layout, colors and animation state for BuildFrame.
type FrameOptions struct {
	Layout      Layout
	Lut         *colormap.Lut
	Propagation Propagation
	FitRange    bool // rescale the Lut to the snapshot's activation range
	ProbeID     string
}

// BuildFrame computes all buffers for snap. A nil snap renders every
// neuron with the color of a zero activation.
func BuildFrame(topo *topology.Topology, snap *topology.Snapshot, opts FrameOptions) (*Frame, error) {
	if opts.Lut == nil {
		return nil, fmt.Errorf("scene: frame needs a color map")
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}

	lut := opts.Lut
	if opts.FitRange {
		var err error
		if lut, err = FitRange(topo, snap, lut); err != nil {
			return nil, err
		}
	}

	positions, err := NeuronPositions(topo, opts.Layout)
	if err != nil {
		return nil, err
	}
	colors, err := NeuronColors(topo, snap, lut, opts.Propagation)
	if err != nil {
		return nil, err
	}
	linePos, err := SynapsePositions(topo, opts.Layout)
	if err != nil {
		return nil, err
	}
	lineColors, err := SynapseColors(topo, snap, lut, opts.Propagation)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		ProbeID:          opts.ProbeID,
		LayerSizes:       topo.LayerSizes(),
		NeuronPositions:  make([]float32, 0, len(positions)*3),
		NeuronColors:     make([]float32, 0, len(colors)*3),
		SynapsePositions: linePos,
		SynapseColors:    lineColors,
	}
	for _, p := range positions {
		f.NeuronPositions = append(f.NeuronPositions, float32(p.X), float32(p.Y), float32(p.Z))
	}
	for _, c := range colors {
		f.NeuronColors = append(f.NeuronColors, float32(c.R), float32(c.G), float32(c.B))
	}
	return f, nil
}

// WriteJSON encodes f to w.
func (f *Frame) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("scene: encode frame: %w", err)
	}
	return nil
}
