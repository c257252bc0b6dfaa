// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package topology maps a layered, fully connected network onto a flat
// neuron index space.
//
// # Overview
//
// A Topology is built once from a Config and never changes. It answers:
//   - which layer owns a neuron (LayerOf)
//   - where the neuron sits in normalized [-1, 1]^3 layout space (PositionOf)
//   - which neurons it feeds (OutgoingOf)
//   - the canonical synapse enumeration order (AllSynapses)
//   - the neuron's scalar value in a captured activation Snapshot (ActivationOf)
//
// Neurons are numbered layer by layer, input layer first:
//
//	topo, _ := topology.New(topology.Config{InputSize: 4, HiddenLayerSizes: []int{2}, NClasses: 2})
//	topo.LayerSizes()  // [4 2 2]
//	topo.LayerOf(5)    // 1
//	topo.OutgoingOf(0) // [4 5]
//
// The input layer is laid out as a square grid, so InputSize must be a
// perfect square. Every other layer is a single row.
//
// All methods are pure and safe for concurrent use.
package topology
