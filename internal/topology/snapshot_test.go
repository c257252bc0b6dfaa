package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Input:        []float32{0.1, 0.2, 0.3, 0.4},
		LayerOutputs: [][]float32{{0.5, 0.6}, {0.7, 0.8}},
	}
}

func TestActivationOf(t *testing.T) {
	topo := small(t)
	snap := sampleSnapshot()
	require.NoError(t, topo.CheckSnapshot(snap))

	want := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	for n, v := range want {
		got, err := topo.ActivationOf(snap, n)
		require.NoError(t, err)
		assert.Equal(t, v, got, "neuron %d", n)
	}

	_, err := topo.ActivationOf(snap, 8)
	assert.ErrorIs(t, err, ErrNeuronOutOfRange)
}

func TestActivationOf_ShapeMismatch(t *testing.T) {
	topo := small(t)

	tests := []struct {
		name string
		snap *Snapshot
		n    int
	}{
		{"nil", nil, 0},
		{"short input", &Snapshot{Input: []float32{1}, LayerOutputs: [][]float32{{0, 0}, {0, 0}}}, 0},
		{"missing layer", &Snapshot{Input: make([]float32, 4), LayerOutputs: [][]float32{{0, 0}}}, 6},
		{"short layer", &Snapshot{Input: make([]float32, 4), LayerOutputs: [][]float32{{0}, {0, 0}}}, 4},
		{"other layer short", &Snapshot{Input: make([]float32, 4), LayerOutputs: [][]float32{{0.5, 0.6}, {0.7}}}, 4},
		{"input short, neuron in hidden", &Snapshot{Input: []float32{1}, LayerOutputs: [][]float32{{0, 0}, {0, 0}}}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := topo.ActivationOf(tt.snap, tt.n)
			require.ErrorIs(t, err, ErrSnapshotShape)
			require.ErrorIs(t, topo.CheckSnapshot(tt.snap), ErrSnapshotShape)
		})
	}
}

func TestNewSnapshot_Copies(t *testing.T) {
	input := []float32{1, 2}
	outputs := [][]float32{{3}}
	snap := NewSnapshot(input, outputs)

	input[0] = 9
	outputs[0][0] = 9
	assert.Equal(t, float32(1), snap.Input[0])
	assert.Equal(t, float32(3), snap.LayerOutputs[0][0])
}

func TestActivations(t *testing.T) {
	topo := small(t)

	flat, err := topo.Activations(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}, flat)

	_, err = topo.Activations(&Snapshot{})
	assert.ErrorIs(t, err, ErrSnapshotShape)
}
