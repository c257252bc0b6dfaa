// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package colormap maps scalar activations onto color ramps.
//
// A Lut samples a named ramp into a fixed number of steps and returns the
// nearest step for a value clamped into [Min, Max]:
//
//	lut, _ := colormap.New("cooltowarm", 32)
//	lut = lut.WithRange(0, 1)
//	c := lut.Color(0.75)
package colormap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultSteps is the sample count used when New is given steps <= 0.
const DefaultSteps = 32

// ErrUnknownMap is returned for a ramp name that is not registered.
var ErrUnknownMap = errors.New("colormap: unknown color map")

type stop struct {
	pos float64
	hex string
}

var ramps = map[string][]stop{
	"rainbow": {
		{0.0, "#0000ff"}, {0.2, "#00ffff"}, {0.5, "#00ff00"}, {0.8, "#ffff00"}, {1.0, "#ff0000"},
	},
	"cooltowarm": {
		{0.0, "#3c4ec2"}, {0.2, "#9bbcff"}, {0.5, "#dcdcdc"}, {0.8, "#f6a385"}, {1.0, "#b40426"},
	},
	"blackbody": {
		{0.0, "#000000"}, {0.2, "#780000"}, {0.5, "#e63200"}, {0.8, "#ffff00"}, {1.0, "#ffffff"},
	},
	"grayscale": {
		{0.0, "#000000"}, {0.2, "#404040"}, {0.5, "#7f7f80"}, {0.8, "#bfbfbf"}, {1.0, "#ffffff"},
	},
}

// Names returns the registered ramp names, sorted.
func Names() []string {
	names := make([]string, 0, len(ramps))
	for name := range ramps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Black is the color of unreached or absent activations.
var Black = colorful.Color{}

// Lut is a sampled color ramp. The zero value is not usable; build one
// with New.
type Lut struct {
	name  string
	table []colorful.Color // steps+1 samples, first and last are the ramp ends
	min   float64
	max   float64
}

// New samples ramp name into steps intervals over the range [0, 1].
func New(name string, steps int) (*Lut, error) {
	ramp, ok := ramps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMap, name)
	}
	if steps <= 0 {
		steps = DefaultSteps
	}

	colors := make([]colorful.Color, len(ramp))
	for i, s := range ramp {
		c, err := colorful.Hex(s.hex)
		if err != nil {
			return nil, fmt.Errorf("colormap: ramp %q stop %d: %w", name, i, err)
		}
		colors[i] = c
	}

	table := make([]colorful.Color, 0, steps+1)
	table = append(table, colors[0])
	for i := 1; i < steps; i++ {
		alpha := float64(i) / float64(steps)
		for j := 0; j < len(ramp)-1; j++ {
			lo, hi := ramp[j].pos, ramp[j+1].pos
			if alpha > lo && alpha <= hi {
				table = append(table, colors[j].BlendRgb(colors[j+1], (alpha-lo)/(hi-lo)))
			}
		}
	}
	table = append(table, colors[len(colors)-1])

	return &Lut{name: name, table: table, min: 0, max: 1}, nil
}

// WithRange returns a copy of l mapping [lo, hi] onto the ramp.
// A degenerate range (hi <= lo) maps every value to the ramp start.
func (l *Lut) WithRange(lo, hi float64) *Lut {
	cp := *l
	cp.min, cp.max = lo, hi
	return &cp
}

// Name returns the ramp name.
func (l *Lut) Name() string { return l.name }

// Range returns the mapped value range.
func (l *Lut) Range() (lo, hi float64) { return l.min, l.max }

// Steps returns the number of sampled intervals.
func (l *Lut) Steps() int { return len(l.table) - 1 }

// Color returns the sampled color nearest to v. Values outside the range
// are clamped; NaN maps to the ramp start.
func (l *Lut) Color(v float64) colorful.Color {
	if l.max <= l.min || math.IsNaN(v) {
		return l.table[0]
	}
	v = math.Min(math.Max(v, l.min), l.max)
	alpha := (v - l.min) / (l.max - l.min)
	return l.table[int(math.Round(alpha*float64(l.Steps())))]
}

// Fade blends c toward black by t in [0, 1].
func Fade(c colorful.Color, t float64) colorful.Color {
	return c.BlendRgb(Black, t)
}
