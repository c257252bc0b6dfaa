// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/neuroviz/internal/dataset"
)

// ErrDiverged is returned when the training loss stops being finite.
var ErrDiverged = errors.New("model: training diverged")

// valBatchSize is larger than the training batch since no gradients are kept.
const valBatchSize = 256

// TrainConfig controls a training run.
type TrainConfig struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	LR              float32 `yaml:"learning_rate"`
	Beta1           float32 `yaml:"beta1"`
	Beta2           float32 `yaml:"beta2"`
	Eps             float32 `yaml:"eps"`
}

// DefaultTrainConfig returns 50 epochs of Adam(lr=0.001) on batches of
// 512 with a 20% validation split.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:          50,
		BatchSize:       512,
		ValidationSplit: 0.2,
		LR:              0.001,
		Beta1:           0.9,
		Beta2:           0.999,
		Eps:             1e-8,
	}
}

// Validate reports the first out-of-range field.
func (c TrainConfig) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("model: epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("model: batch size must be positive, got %d", c.BatchSize)
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return fmt.Errorf("model: validation split must be in [0, 1), got %g", c.ValidationSplit)
	case c.LR <= 0:
		return fmt.Errorf("model: learning rate must be positive, got %g", c.LR)
	}
	return nil
}

// EpochMetrics is reported once per completed epoch.
//
// Validation metrics are NaN when the validation split is empty.
type EpochMetrics struct {
	Epoch       int // zero-based
	Epochs      int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History holds the metrics of every completed epoch in order.
type History []EpochMetrics

// Last returns the final epoch's metrics.
func (h History) Last() (EpochMetrics, bool) {
	if len(h) == 0 {
		return EpochMetrics{}, false
	}
	return h[len(h)-1], true
}

// EpochFunc receives each epoch's metrics. Returning an error stops training.
type EpochFunc func(EpochMetrics) error

// Train fits m to data with Adam and cross-entropy.
//
// The samples are shuffled once and split into training and validation
// sets; the training set is reshuffled every epoch. onEpoch may be nil.
// Cancelling ctx stops the run between batches.
func Train[B tensor.Backend](
	ctx context.Context,
	m *MLP[*autodiff.Backend[B]],
	data *dataset.Data,
	cfg TrainConfig,
	rng *rand.Rand,
	onEpoch EpochFunc,
) (history History, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data.NumSamples() == 0 {
		return nil, dataset.ErrEmpty
	}
	if want := m.Topology().LayerSizes()[0]; data.InputSize() != want {
		return nil, fmt.Errorf("model: data has %d inputs per sample, network expects %d", data.InputSize(), want)
	}

	// work on a private ordering so the caller's data is left as given
	all := &dataset.Data{
		Images:  slices.Clone(data.Images),
		Labels:  slices.Clone(data.Labels),
		Side:    data.Side,
		Classes: data.Classes,
	}
	all.ShuffleCombo(rng)
	trainData, valData := all.Split(cfg.ValidationSplit)
	if trainData.NumSamples() == 0 {
		return nil, fmt.Errorf("%w: validation split %g leaves no training samples", dataset.ErrEmpty, cfg.ValidationSplit)
	}

	backend := m.Backend()
	var valBatches []*dataset.Batch[*autodiff.Backend[B]]
	if valData.NumSamples() > 0 {
		valBatches, err = dataset.Batches(valData, valBatchSize, backend)
		if err != nil {
			return nil, fmt.Errorf("model: validation batches: %w", err)
		}
	}

	optimizer := optim.NewAdam(
		m.Parameters(),
		optim.AdamConfig{
			LR:    cfg.LR,
			Betas: [2]float32{cfg.Beta1, cfg.Beta2},
			Eps:   cfg.Eps,
		},
		backend,
	)

	tape := backend.Tape()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()
	defer recoverEngine(&err)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		trainData.ShuffleCombo(rng)
		batches, err := dataset.Batches(trainData, cfg.BatchSize, backend)
		if err != nil {
			return history, fmt.Errorf("model: training batches: %w", err)
		}

		loss, acc, err := trainEpoch(ctx, m, batches, optimizer, backend)
		if err != nil {
			return history, err
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return history, fmt.Errorf("%w: loss %v at epoch %d", ErrDiverged, loss, epoch+1)
		}

		valLoss, valAcc := math.NaN(), math.NaN()
		if len(valBatches) > 0 {
			valLoss, valAcc = validate(m, valBatches, backend)
		}

		metrics := EpochMetrics{
			Epoch:       epoch,
			Epochs:      cfg.Epochs,
			Loss:        loss,
			Accuracy:    acc,
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		}
		history = append(history, metrics)
		if onEpoch != nil {
			if err := onEpoch(metrics); err != nil {
				return history, err
			}
		}
	}
	return history, nil
}

// trainEpoch runs one pass over batches and returns mean loss and accuracy.
func trainEpoch[B tensor.Backend](
	ctx context.Context,
	m *MLP[*autodiff.Backend[B]],
	batches []*dataset.Batch[*autodiff.Backend[B]],
	optimizer optim.Optimizer,
	backend *autodiff.Backend[B],
) (avgLoss, accuracy float64, err error) {
	totalLoss := 0.0
	totalCorrect := 0.0
	totalSamples := 0

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		optimizer.ZeroGrad()
		logits := m.Forward(batch.Images)

		lossRaw := backend.CrossEntropy(logits.Raw(), batch.Labels.Raw())
		loss := tensor.New[float32, *autodiff.Backend[B]](lossRaw, backend)

		outputGrad, err := tensor.NewRaw(loss.Shape(), loss.DType(), backend.Device())
		if err != nil {
			return 0, 0, fmt.Errorf("%w: output gradient: %v", ErrEngine, err)
		}
		outputGrad.AsFloat32()[0] = 1.0

		grads := backend.Tape().Backward(outputGrad, backend)
		optimizer.Step(grads)

		totalLoss += float64(lossRaw.AsFloat32()[0])
		totalCorrect += float64(nn.Accuracy(logits, batch.Labels)) * float64(batch.Size)
		totalSamples += batch.Size

		backend.Tape().Clear()
	}

	return totalLoss / float64(len(batches)), totalCorrect / float64(totalSamples), nil
}

// validate evaluates batches with gradient recording paused.
func validate[B tensor.Backend](
	m *MLP[*autodiff.Backend[B]],
	batches []*dataset.Batch[*autodiff.Backend[B]],
	backend *autodiff.Backend[B],
) (avgLoss, accuracy float64) {
	wasRecording := backend.Tape().IsRecording()
	backend.Tape().StopRecording()
	defer func() {
		if wasRecording {
			backend.Tape().StartRecording()
		}
	}()

	totalLoss := 0.0
	totalCorrect := 0.0
	totalSamples := 0
	for _, batch := range batches {
		logits := m.Forward(batch.Images)
		lossRaw := backend.CrossEntropy(logits.Raw(), batch.Labels.Raw())

		totalLoss += float64(lossRaw.AsFloat32()[0])
		totalCorrect += float64(nn.Accuracy(logits, batch.Labels)) * float64(batch.Size)
		totalSamples += batch.Size
	}
	return totalLoss / float64(len(batches)), totalCorrect / float64(totalSamples)
}
