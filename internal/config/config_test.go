package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	topo, err := cfg.Topology()
	require.NoError(t, err)
	assert.Equal(t, []int{784, 16, 16, 10}, topo.LayerSizes())

	assert.Equal(t, 50, cfg.Training.Epochs)
	assert.Equal(t, 512, cfg.Training.BatchSize)
	assert.InDelta(t, 0.2, cfg.Training.ValidationSplit, 1e-12)
	assert.InDelta(t, 0.001, cfg.Training.LR, 1e-9)

	lut, err := cfg.Lut()
	require.NoError(t, err)
	assert.Equal(t, "cooltowarm", lut.Name())
	lo, hi := lut.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestDecode_Overrides(t *testing.T) {
	src := `
model:
  input_size: 16
  hidden_layer_sizes: [4]
  n_classes: 3
training:
  epochs: 5
colors:
  map: rainbow
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Model.InputSize)
	assert.Equal(t, []int{4}, cfg.Model.HiddenLayerSizes)
	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 512, cfg.Training.BatchSize, "unset keys keep defaults")
	assert.Equal(t, "rainbow", cfg.Colors.Map)
	assert.Equal(t, 40.0, cfg.Layout.StretchY)
}

func TestDecode_Empty(t *testing.T) {
	cfg, err := Decode(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "modle:\n  input_size: 4\n"},
		{"non-square input", "model:\n  input_size: 10\n"},
		{"zero epochs", "training:\n  epochs: 0\n"},
		{"bad layout", "layout:\n  cube_side: 0\n"},
		{"unknown map", "colors:\n  map: viridis\n"},
		{"inverted range", "colors:\n  min: 1\n  max: 0\n"},
		{"negative max samples", "data:\n  max_samples: -1\n"},
		{"malformed", "model: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neuroviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training:\n  epochs: 7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Training.Epochs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Model.HiddenLayerSizes = []int{8}

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
