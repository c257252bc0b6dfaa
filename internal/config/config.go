// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config loads the visualizer settings from YAML.
//
// Every field has a default; a file only needs the values it changes:
//
//	model:
//	  hidden_layer_sizes: [32, 16]
//	training:
//	  epochs: 10
//	colors:
//	  map: rainbow
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/neuroviz/internal/colormap"
	"github.com/born-ml/neuroviz/internal/model"
	"github.com/born-ml/neuroviz/internal/scene"
	"github.com/born-ml/neuroviz/internal/topology"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Colors selects the activation color map and its value range.
type Colors struct {
	Map   string  `yaml:"map"`
	Steps int     `yaml:"steps"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Fit   bool    `yaml:"fit"` // rescale to each snapshot's activation range
}

// Data locates the training samples.
type Data struct {
	Dir        string `yaml:"dir"`         // MNIST IDX directory
	CSV        string `yaml:"csv"`         // label,pixel... file, used instead of Dir when set
	MaxSamples int    `yaml:"max_samples"` // 0 loads everything
	Synthetic  bool   `yaml:"synthetic"`
	PerClass   int    `yaml:"per_class"` // synthetic samples per class
}

// Config is the full settings tree.
type Config struct {
	Model    topology.Config   `yaml:"model"`
	Training model.TrainConfig `yaml:"training"`
	Layout   scene.Layout      `yaml:"layout"`
	Colors   Colors            `yaml:"colors"`
	Data     Data              `yaml:"data"`
	Seed     uint64            `yaml:"seed"`
}

// Default returns a 784-16-16-10 network trained for 50 epochs.
func Default() Config {
	return Config{
		Model: topology.Config{
			InputSize:        784,
			HiddenLayerSizes: []int{16, 16},
			NClasses:         10,
		},
		Training: model.DefaultTrainConfig(),
		Layout:   scene.DefaultLayout(),
		Colors: Colors{
			Map:   "cooltowarm",
			Steps: colormap.DefaultSteps,
			Min:   0,
			Max:   1,
		},
		Data: Data{
			Dir:      "./data",
			PerClass: 100,
		},
		Seed: 1,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	// io.EOF means the document is empty or only comments
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := topology.New(c.Model); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalid, err)
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("%w: training: %w", ErrInvalid, err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: layout: %w", ErrInvalid, err)
	}
	if !slices.Contains(colormap.Names(), c.Colors.Map) {
		return fmt.Errorf("%w: colors: unknown map %q, want one of %v", ErrInvalid, c.Colors.Map, colormap.Names())
	}
	if c.Colors.Steps <= 0 {
		return fmt.Errorf("%w: colors: steps must be positive, got %d", ErrInvalid, c.Colors.Steps)
	}
	if c.Colors.Max <= c.Colors.Min {
		return fmt.Errorf("%w: colors: max %g must exceed min %g", ErrInvalid, c.Colors.Max, c.Colors.Min)
	}
	if c.Data.MaxSamples < 0 {
		return fmt.Errorf("%w: data: max samples must not be negative, got %d", ErrInvalid, c.Data.MaxSamples)
	}
	if c.Data.Synthetic && c.Data.PerClass <= 0 {
		return fmt.Errorf("%w: data: per class must be positive, got %d", ErrInvalid, c.Data.PerClass)
	}
	return nil
}

// Topology builds the network topology of the model section.
func (c Config) Topology() (*topology.Topology, error) {
	return topology.New(c.Model)
}

// Lut builds the color map of the colors section.
func (c Config) Lut() (*colormap.Lut, error) {
	lut, err := colormap.New(c.Colors.Map, c.Colors.Steps)
	if err != nil {
		return nil, err
	}
	return lut.WithRange(c.Colors.Min, c.Colors.Max), nil
}

// WriteYAML encodes c, e.g. to dump the effective settings.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
