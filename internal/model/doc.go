// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model builds, trains and probes the visualized multilayer
// perceptron on top of the Born ML framework.
//
// # Architecture
//
// For a topology [in, h1, ..., hk, out] the network is
//
//	Linear(in, h1) → ReLU → ... → Linear(h(k-1), hk) → ReLU → Linear(hk, out)
//
// Forward returns logits. Probe runs a single sample and captures every
// layer's output: ReLU outputs for hidden layers and softmax probabilities
// for the output layer, matching what the visualization colors.
//
// # Training
//
// Train uses Adam with cross-entropy loss on an autodiff CPU backend,
// holds out a validation split, and reports metrics once per epoch.
package model
