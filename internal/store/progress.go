// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// TrainingState is where the model is in its lifecycle.
type TrainingState int

const (
	Untrained TrainingState = iota
	Training
	Trained
)

func (s TrainingState) String() string {
	switch s {
	case Untrained:
		return "untrained"
	case Training:
		return "training"
	case Trained:
		return "trained"
	default:
		return fmt.Sprintf("TrainingState(%d)", int(s))
	}
}

// EpochLog is the metrics reported for one completed epoch.
type EpochLog struct {
	Epoch       int // zero-based
	Total       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// String formats the log with metrics rounded to 3 decimals.
func (e EpochLog) String() string {
	return fmt.Sprintf("Data for epoch %d/%d, {acc: %.3f, loss: %.3f, val_acc: %.3f, val_loss: %.3f}",
		e.Epoch+1, e.Total, e.Accuracy, e.Loss, e.ValAccuracy, e.ValLoss)
}

// Progress is a point-in-time copy of the training counters.
type Progress struct {
	State       TrainingState
	TotalEpochs int
	Logs        []EpochLog // newest first
	ValAccuracy float64    // last reported, NaN before any epoch
}

// Completed returns the finished share of epochs in percent.
func (p Progress) Completed() float64 {
	if p.State == Trained {
		return 100
	}
	if p.TotalEpochs <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(len(p.Logs))/float64(p.TotalEpochs))
}

// ValAccuracyLabel renders the last validation accuracy as "NN%" or "NA".
func (p Progress) ValAccuracyLabel() string {
	if math.IsNaN(p.ValAccuracy) {
		return "NA"
	}
	return fmt.Sprintf("%d%%", int(math.Floor(100*p.ValAccuracy)))
}

// BeginTraining resets the counters for a run of totalEpochs.
func (s *Store) BeginTraining(totalEpochs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = Progress{
		State:       Training,
		TotalEpochs: totalEpochs,
		ValAccuracy: math.NaN(),
	}
}

// RecordEpoch prepends log to the epoch history.
func (s *Store) RecordEpoch(log EpochLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Logs = slices.Insert(s.progress.Logs, 0, log)
	s.progress.ValAccuracy = log.ValAccuracy
}

// FinishTraining marks the model trained. A failed run (err != nil)
// returns to the untrained state and keeps the logs gathered so far.
func (s *Store) FinishTraining(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.progress.State = Untrained
		return
	}
	s.progress.State = Trained
}

// MarkTrained sets the trained state without a run, e.g. after loading
// saved weights.
func (s *Store) MarkTrained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = Progress{State: Trained, ValAccuracy: math.NaN()}
}

// Progress returns a copy of the training counters.
func (s *Store) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress
	p.Logs = slices.Clone(p.Logs)
	return p
}

// Bar renders a text progress bar of the given width followed by
// "title:NN%".
func Bar(title string, completed float64, width int) string {
	completed = math.Min(math.Max(completed, 0), 100)
	if width < 1 {
		width = 1
	}
	filled := int(math.Round(completed / 100 * float64(width)))

	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(strings.Repeat("#", filled))
	sb.WriteString(strings.Repeat(".", width-filled))
	sb.WriteString("] ")
	sb.WriteString(fmt.Sprintf("%s:%d%%", title, int(math.Floor(completed))))
	return sb.String()
}
