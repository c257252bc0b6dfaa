// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"context"
	"math/rand/v2"

	"github.com/born-ml/neuroviz/internal/dataset"
	"github.com/born-ml/neuroviz/internal/topology"
)

// Classifier is an MLP on the autodiff CPU backend that can both train
// and be probed.
type Classifier struct {
	*MLP[Backend]
}

// NewClassifier builds a freshly initialized classifier for topo.
func NewClassifier(topo *topology.Topology) *Classifier {
	return &Classifier{MLP: NewMLP(topo, NewBackend())}
}

// Train runs Train on the classifier's network.
func (c *Classifier) Train(ctx context.Context, data *dataset.Data, cfg TrainConfig, rng *rand.Rand, onEpoch EpochFunc) (History, error) {
	return Train(ctx, c.MLP, data, cfg, rng, onEpoch)
}
