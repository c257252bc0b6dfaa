// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset loads square grayscale digit images (MNIST and
// compatible) as flat float32 vectors in [0, 1] with int32 labels.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrFormat is returned for malformed dataset files.
	ErrFormat = errors.New("dataset: malformed file")

	// ErrEmpty is returned when an operation needs at least one sample.
	ErrEmpty = errors.New("dataset: no samples")
)

// Data is a set of images with matching labels.
type Data struct {
	Images  [][]float32 // [samples][Side*Side], values in [0, 1]
	Labels  []int32
	Side    int
	Classes int
}

// Sample is one image and its label.
type Sample struct {
	Image []float32
	Label int32
}

// NumSamples returns the number of images.
func (d *Data) NumSamples() int {
	return len(d.Images)
}

// InputSize returns the flattened image length.
func (d *Data) InputSize() int {
	return d.Side * d.Side
}

// LoadIDX reads the MNIST IDX files from dir: train-images-idx3-ubyte and
// train-labels-idx1-ubyte, or the t10k-* pair when train is false. Gzipped
// files (".gz") are read transparently. maxSamples <= 0 loads everything.
func LoadIDX(dir string, train bool, maxSamples int) (*Data, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}

	imgFile, err := openIDX(filepath.Join(dir, prefix+"-images-idx3-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("failed to open images: %w", err)
	}
	defer imgFile.Close()

	raw, rows, cols, err := readIDXImages(imgFile, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: images are %dx%d, want square", ErrFormat, rows, cols)
	}

	lblFile, err := openIDX(filepath.Join(dir, prefix+"-labels-idx1-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer lblFile.Close()

	labels, err := readIDXLabels(lblFile, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(raw) != len(labels) {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrFormat, len(raw), len(labels))
	}

	d := &Data{
		Images:  make([][]float32, len(raw)),
		Labels:  make([]int32, len(raw)),
		Side:    rows,
		Classes: 10,
	}
	for i, img := range raw {
		d.Images[i] = normalize(img)
		d.Labels[i] = int32(labels[i])
	}
	return d, nil
}

// LoadCSV reads a Kaggle-style CSV: a header row, then label followed by
// side*side pixel values (0-255) per row.
func LoadCSV(path string, maxSamples int) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: CSV is empty or missing header", ErrFormat)
	}
	records = records[1:]
	if maxSamples > 0 && len(records) > maxSamples {
		records = records[:maxSamples]
	}

	pixels := len(records[0]) - 1
	side := 0
	for side*side < pixels {
		side++
	}
	if side == 0 || side*side != pixels {
		return nil, fmt.Errorf("%w: %d pixels per row is not a square image", ErrFormat, pixels)
	}

	d := &Data{
		Images:  make([][]float32, len(records)),
		Labels:  make([]int32, len(records)),
		Side:    side,
		Classes: 10,
	}
	for i, record := range records {
		if len(record) != pixels+1 {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrFormat, i+1, len(record), pixels+1)
		}
		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: label at row %d: %v", ErrFormat, i+1, err)
		}
		if label < 0 || label > 9 {
			return nil, fmt.Errorf("%w: label out of range [0, 9] at row %d: %d", ErrFormat, i+1, label)
		}
		d.Labels[i] = int32(label)

		img := make([]byte, pixels)
		for j, field := range record[1:] {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil || v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: pixel %d at row %d: %q", ErrFormat, j, i+1, field)
			}
			img[j] = byte(v)
		}
		d.Images[i] = normalize(img)
	}
	return d, nil
}

// Synthetic builds perSample images for each of 10 digit classes. Each
// class lights a horizontal band at a class-specific height, with a little
// noise from rng so samples differ. Useful without MNIST on disk.
func Synthetic(side, perClass int, rng *rand.Rand) *Data {
	const classes = 10
	d := &Data{Side: side, Classes: classes}

	band := max(1, side/4)
	for c := 0; c < classes; c++ {
		startRow := c * (side - band) / (classes - 1)
		for s := 0; s < perClass; s++ {
			img := make([]float32, side*side)
			for row := startRow; row < startRow+band && row < side; row++ {
				for col := side / 6; col < side-side/6; col++ {
					img[row*side+col] = 0.8
				}
			}
			for i := range img {
				if rng.Float32() < 0.05 {
					img[i] = rng.Float32()
				}
			}
			d.Images = append(d.Images, img)
			d.Labels = append(d.Labels, int32(c))
		}
	}
	return d
}

// ShuffleCombo shuffles images and labels with the same permutation.
func (d *Data) ShuffleCombo(rng *rand.Rand) {
	rng.Shuffle(len(d.Images), func(i, j int) {
		d.Images[i], d.Images[j] = d.Images[j], d.Images[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
}

// Split returns the leading (1-validationRatio) share as training data and
// the rest as validation data. Both share backing arrays with d.
func (d *Data) Split(validationRatio float64) (train, validation *Data) {
	splitIdx := int(float64(d.NumSamples()) * (1.0 - validationRatio))
	splitIdx = min(max(splitIdx, 0), d.NumSamples())

	return &Data{
			Images:  d.Images[:splitIdx],
			Labels:  d.Labels[:splitIdx],
			Side:    d.Side,
			Classes: d.Classes,
		}, &Data{
			Images:  d.Images[splitIdx:],
			Labels:  d.Labels[splitIdx:],
			Side:    d.Side,
			Classes: d.Classes,
		}
}

// RandomSample picks one sample uniformly.
func (d *Data) RandomSample(rng *rand.Rand) (Sample, error) {
	if d.NumSamples() == 0 {
		return Sample{}, ErrEmpty
	}
	i := rng.IntN(d.NumSamples())
	return Sample{Image: d.Images[i], Label: d.Labels[i]}, nil
}

// ASCII renders a side×side image with a 5-level character ramp.
func ASCII(image []float32, side int) string {
	const ramp = " .:o@"
	var sb strings.Builder
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			v := image[row*side+col]
			level := int(v * float32(len(ramp)-1))
			level = min(max(level, 0), len(ramp)-1)
			sb.WriteByte(ramp[level])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func normalize(raw []byte) []float32 {
	out := make([]float32, len(raw))
	for i, b := range raw {
		out[i] = float32(b) / 255.0
	}
	return out
}
