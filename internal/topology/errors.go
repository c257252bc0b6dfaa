// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topology

import "errors"

var (
	// ErrInvalidTopology is returned by New for unusable configurations.
	ErrInvalidTopology = errors.New("topology: invalid configuration")

	// ErrNeuronOutOfRange is returned when a neuron index is outside [0, NumNeurons).
	ErrNeuronOutOfRange = errors.New("topology: neuron index out of range")

	// ErrLayerOutOfRange is returned when a layer index is outside [0, NumLayers).
	ErrLayerOutOfRange = errors.New("topology: layer index out of range")

	// ErrNoSynapse is returned when two neurons are not in adjacent layers.
	ErrNoSynapse = errors.New("topology: neurons are not connected")

	// ErrSnapshotShape is returned when a snapshot does not match the topology.
	ErrSnapshotShape = errors.New("topology: snapshot shape mismatch")
)
