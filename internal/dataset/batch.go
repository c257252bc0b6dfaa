// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Batch is a mini-batch as Born tensors.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B] // [Size, InputSize]
	Labels *tensor.Tensor[int32, B]   // [Size]
	Size   int
}

// Batches splits d into mini-batches of batchSize in the current sample
// order. The last batch may be smaller.
func Batches[B tensor.Backend](d *Data, batchSize int, backend B) ([]*Batch[B], error) {
	n := d.NumSamples()
	if n == 0 {
		return nil, ErrEmpty
	}
	if n != len(d.Labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrFormat, n, len(d.Labels))
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", batchSize)
	}

	width := d.InputSize()
	batches := make([]*Batch[B], 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		size := end - start

		imagesRaw, err := tensor.NewRaw(tensor.Shape{size, width}, tensor.Float32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create images tensor: %w", err)
		}
		labelsRaw, err := tensor.NewRaw(tensor.Shape{size}, tensor.Int32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create labels tensor: %w", err)
		}

		pixels := imagesRaw.AsFloat32()
		labels := labelsRaw.AsInt32()
		for i := start; i < end; i++ {
			if len(d.Images[i]) != width {
				return nil, fmt.Errorf("%w: image %d has %d pixels, want %d", ErrFormat, i, len(d.Images[i]), width)
			}
			copy(pixels[(i-start)*width:], d.Images[i])
			labels[i-start] = d.Labels[i]
		}

		batches = append(batches, &Batch[B]{
			Images: tensor.New[float32, B](imagesRaw, backend),
			Labels: tensor.New[int32, B](labelsRaw, backend),
			Size:   size,
		})
	}
	return batches, nil
}
