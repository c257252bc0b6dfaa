// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package session ties a network, its training data and the shared state
// store together.
//
// A Session owns one engine. Train fits it and reports progress to the
// store; ProbeRandom publishes the activations of a random sample; Frame
// turns the latest published snapshot into renderer buffers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/born-ml/neuroviz/internal/colormap"
	"github.com/born-ml/neuroviz/internal/config"
	"github.com/born-ml/neuroviz/internal/dataset"
	"github.com/born-ml/neuroviz/internal/model"
	"github.com/born-ml/neuroviz/internal/scene"
	"github.com/born-ml/neuroviz/internal/store"
	"github.com/born-ml/neuroviz/internal/topology"
)

var (
	// ErrBusy is returned by Train, Probe, Save and Load while a training
	// run is in progress.
	ErrBusy = errors.New("session: training in progress")

	// ErrNoData is returned when an operation needs samples and none are loaded.
	ErrNoData = errors.New("session: no data loaded")
)

// Engine trains and probes a network.
type Engine interface {
	Probe(sample []float32) (*topology.Snapshot, error)
	Train(ctx context.Context, data *dataset.Data, cfg model.TrainConfig, rng *rand.Rand, onEpoch model.EpochFunc) (model.History, error)
	Save(path string) error
	Load(path string) error
}

// Option customizes New.
type Option func(*Session)

// WithLogger sets the structured event logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithEngine replaces the default Born classifier.
func WithEngine(engine Engine) Option {
	return func(s *Session) {
		s.engine = engine
	}
}

// WithData uses data instead of loading from the configured source.
func WithData(data *dataset.Data) Option {
	return func(s *Session) {
		s.data = data
	}
}

// Session is safe for concurrent use. Only one Train runs at a time, and
// the engine is never probed, saved or loaded while it trains.
type Session struct {
	cfg    config.Config
	topo   *topology.Topology
	lut    *colormap.Lut
	engine Engine
	store  *store.Store
	logger *slog.Logger

	engineMu sync.Mutex // held for every engine call except Train
	training bool       // guarded by engineMu

	mu   sync.Mutex // guards rng and data
	rng  *rand.Rand
	data *dataset.Data
}

// New validates cfg and builds a session with an untrained network.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topo, err := cfg.Topology()
	if err != nil {
		return nil, err
	}
	lut, err := cfg.Lut()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		topo:   topo,
		lut:    lut,
		store:  store.New(),
		logger: slog.New(slog.DiscardHandler),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = model.NewClassifier(topo)
	}
	if s.data != nil {
		if err := s.checkData(s.data); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Config returns the settings the session was built from.
func (s *Session) Config() config.Config { return s.cfg }

// Topology returns the network topology.
func (s *Session) Topology() *topology.Topology { return s.topo }

// Store returns the shared state store.
func (s *Session) Store() *store.Store { return s.store }

// Close releases store subscribers.
func (s *Session) Close() {
	s.store.Close()
}

// LoadData reads samples from the configured source unless data is
// already present.
func (s *Session) LoadData() (*dataset.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		return s.data, nil
	}

	src := s.cfg.Data
	var (
		data *dataset.Data
		err  error
	)
	switch {
	case src.Synthetic:
		data = dataset.Synthetic(s.topo.InputSide(), src.PerClass, s.rng)
	case src.CSV != "":
		data, err = dataset.LoadCSV(src.CSV, src.MaxSamples)
	default:
		data, err = dataset.LoadIDX(src.Dir, true, src.MaxSamples)
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkData(data); err != nil {
		return nil, err
	}

	s.data = data
	s.logger.Info("data loaded", "samples", data.NumSamples(), "side", data.Side)
	return data, nil
}

func (s *Session) checkData(data *dataset.Data) error {
	if data.NumSamples() == 0 {
		return ErrNoData
	}
	if data.InputSize() != s.cfg.Model.InputSize {
		return fmt.Errorf("session: samples have %d inputs, network expects %d", data.InputSize(), s.cfg.Model.InputSize)
	}
	for i, label := range data.Labels {
		if label < 0 || int(label) >= s.cfg.Model.NClasses {
			return fmt.Errorf("session: sample %d has label %d, network has %d classes", i, label, s.cfg.Model.NClasses)
		}
	}
	return nil
}

// Train fits the engine on the loaded data, recording every epoch in the
// store. On success the activations of a fresh random sample are published.
// onEpoch may be nil.
func (s *Session) Train(ctx context.Context, onEpoch model.EpochFunc) (model.History, error) {
	if err := s.beginTraining(); err != nil {
		return nil, err
	}
	history, err := s.train(ctx, onEpoch)
	s.endTraining()
	if err != nil {
		return history, err
	}

	// a run started in the meantime supersedes this probe
	if _, err := s.ProbeRandom(); err != nil && !errors.Is(err, ErrBusy) {
		return history, err
	}
	return history, nil
}

// beginTraining claims the engine. It waits for a running probe, save or
// load to finish.
func (s *Session) beginTraining() error {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if s.training {
		return ErrBusy
	}
	s.training = true
	return nil
}

func (s *Session) endTraining() {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.training = false
}

// lockEngine acquires the engine for a short call, or fails with ErrBusy
// while it trains. The caller must unlock engineMu on success.
func (s *Session) lockEngine() error {
	s.engineMu.Lock()
	if s.training {
		s.engineMu.Unlock()
		return ErrBusy
	}
	return nil
}

func (s *Session) train(ctx context.Context, onEpoch model.EpochFunc) (model.History, error) {
	data, err := s.LoadData()
	if err != nil {
		return nil, err
	}

	// the engine gets its own generator so sampling stays independent of
	// how many batches a run draws
	s.mu.Lock()
	rng := rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
	s.mu.Unlock()

	cfg := s.cfg.Training
	s.store.BeginTraining(cfg.Epochs)
	s.logger.Info("training started", "epochs", cfg.Epochs, "batch_size", cfg.BatchSize, "samples", data.NumSamples())

	history, err := s.engine.Train(ctx, data, cfg, rng, func(m model.EpochMetrics) error {
		s.store.RecordEpoch(store.EpochLog{
			Epoch:       m.Epoch,
			Total:       m.Epochs,
			Loss:        m.Loss,
			Accuracy:    m.Accuracy,
			ValLoss:     m.ValLoss,
			ValAccuracy: m.ValAccuracy,
		})
		s.logger.Debug("epoch finished", "epoch", m.Epoch+1, "loss", m.Loss, "val_acc", m.ValAccuracy)
		if onEpoch != nil {
			return onEpoch(m)
		}
		return nil
	})
	s.store.FinishTraining(err)
	if err != nil {
		s.logger.Error("training failed", "epochs_done", len(history), "err", err)
		return history, fmt.Errorf("session: train: %w", err)
	}

	if last, ok := history.Last(); ok {
		s.logger.Info("training finished", "val_acc", last.ValAccuracy)
	}
	return history, nil
}

// Training reports whether a Train call is running.
func (s *Session) Training() bool {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.training
}

// ProbeRandom probes a uniformly chosen sample and publishes the result.
func (s *Session) ProbeRandom() (*store.Probe, error) {
	data, err := s.LoadData()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sample, err := data.RandomSample(s.rng)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Probe(sample.Image, sample.Label)
}

// Probe runs sample through the engine and publishes the snapshot under
// label, -1 when unknown. It fails with ErrBusy during training.
func (s *Session) Probe(sample []float32, label int32) (*store.Probe, error) {
	if err := s.lockEngine(); err != nil {
		return nil, err
	}
	snap, err := s.engine.Probe(sample)
	s.engineMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("session: probe: %w", err)
	}
	if err := s.topo.CheckSnapshot(snap); err != nil {
		return nil, fmt.Errorf("session: probe: %w", err)
	}

	id, err := s.store.Publish(snap, label)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("snapshot published", "id", id, "label", label)
	return s.store.Latest(), nil
}

// Frame renders the latest snapshot, or an empty network before the first
// probe, at the given propagation state.
func (s *Session) Frame(prop scene.Propagation) (*scene.Frame, error) {
	opts := scene.FrameOptions{
		Layout:      s.cfg.Layout,
		Lut:         s.lut,
		Propagation: prop,
		FitRange:    s.cfg.Colors.Fit,
	}

	var snap *topology.Snapshot
	if p := s.store.Latest(); p != nil {
		snap = p.Snapshot
		opts.ProbeID = p.ID.String()
	}
	return scene.BuildFrame(s.topo, snap, opts)
}

// Save writes the engine's weights to path.
func (s *Session) Save(path string) error {
	if err := s.lockEngine(); err != nil {
		return err
	}
	defer s.engineMu.Unlock()

	if err := s.engine.Save(path); err != nil {
		return err
	}
	s.logger.Info("weights saved", "path", path)
	return nil
}

// Load restores weights from path and marks the model trained.
func (s *Session) Load(path string) error {
	if err := s.lockEngine(); err != nil {
		return err
	}
	defer s.engineMu.Unlock()

	if err := s.engine.Load(path); err != nil {
		return err
	}
	s.store.MarkTrained()
	s.logger.Info("weights loaded", "path", path)
	return nil
}
