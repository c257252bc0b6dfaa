package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuroviz/internal/config"
	"github.com/born-ml/neuroviz/internal/dataset"
	"github.com/born-ml/neuroviz/internal/model"
	"github.com/born-ml/neuroviz/internal/scene"
	"github.com/born-ml/neuroviz/internal/store"
	"github.com/born-ml/neuroviz/internal/topology"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Model = topology.Config{InputSize: 16, HiddenLayerSizes: []int{6}, NClasses: 10}
	cfg.Training.Epochs = 2
	cfg.Training.BatchSize = 16
	cfg.Data.Synthetic = true
	cfg.Data.PerClass = 5
	return cfg
}

// stubEngine records calls and returns canned results.
type stubEngine struct {
	topo     *topology.Topology
	trainErr error
	started  chan struct{}
	release  chan struct{}
	loaded   string
}

func (e *stubEngine) Probe(sample []float32) (*topology.Snapshot, error) {
	outputs := make([][]float32, 0, e.topo.NumLayers()-1)
	for _, size := range e.topo.LayerSizes()[1:] {
		outputs = append(outputs, make([]float32, size))
	}
	return topology.NewSnapshot(sample, outputs), nil
}

func (e *stubEngine) Train(ctx context.Context, data *dataset.Data, cfg model.TrainConfig, rng *rand.Rand, onEpoch model.EpochFunc) (model.History, error) {
	if e.started != nil {
		close(e.started)
		<-e.release
	}
	var h model.History
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		m := model.EpochMetrics{Epoch: epoch, Epochs: cfg.Epochs, Loss: 1, Accuracy: 0.5, ValLoss: 1, ValAccuracy: 0.25}
		h = append(h, m)
		if err := onEpoch(m); err != nil {
			return h, err
		}
	}
	return h, e.trainErr
}

func (e *stubEngine) Save(path string) error { return nil }

func (e *stubEngine) Load(path string) error {
	e.loaded = path
	return nil
}

func newStubSession(t *testing.T) (*Session, *stubEngine) {
	t.Helper()
	cfg := testConfig()
	topo, err := cfg.Topology()
	require.NoError(t, err)
	engine := &stubEngine{topo: topo}
	s, err := New(cfg, WithEngine(engine))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, engine
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Model.InputSize = 15
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNew_RejectsMismatchedData(t *testing.T) {
	data := dataset.Synthetic(3, 1, rand.New(rand.NewPCG(1, 1)))
	_, err := New(testConfig(), WithData(data))
	assert.Error(t, err)

	_, err = New(testConfig(), WithData(&dataset.Data{Side: 4}))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestProbeRandom_Publishes(t *testing.T) {
	s, _ := newStubSession(t)

	updates, cancel := s.Store().Subscribe()
	defer cancel()

	p, err := s.ProbeRandom()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, p.ID, <-updates)
	assert.Same(t, p, s.Store().Latest())
	assert.True(t, p.Label >= 0 && p.Label < 10)
}

func TestTrain_RecordsProgress(t *testing.T) {
	s, _ := newStubSession(t)

	calls := 0
	history, err := s.Train(context.Background(), func(model.EpochMetrics) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 2, calls)

	progress := s.Store().Progress()
	assert.Equal(t, store.Trained, progress.State)
	require.Len(t, progress.Logs, 2)
	assert.Equal(t, 1, progress.Logs[0].Epoch, "newest first")
	assert.Equal(t, "25%", progress.ValAccuracyLabel())
	assert.NotNil(t, s.Store().Latest(), "training ends with a probe")
}

func TestTrain_Failure(t *testing.T) {
	s, engine := newStubSession(t)
	engine.trainErr = errors.New("boom")

	_, err := s.Train(context.Background(), nil)
	assert.ErrorIs(t, err, engine.trainErr)
	assert.Equal(t, store.Untrained, s.Store().Progress().State)
	assert.False(t, s.Training())
}

func TestTrain_Busy(t *testing.T) {
	s, engine := newStubSession(t)
	engine.started = make(chan struct{})
	engine.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Train(context.Background(), nil)
		done <- err
	}()
	<-engine.started

	assert.True(t, s.Training())
	_, err := s.Train(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Load("weights.nvz"), ErrBusy)
	assert.ErrorIs(t, s.Save("weights.nvz"), ErrBusy)
	_, err = s.ProbeRandom()
	assert.ErrorIs(t, err, ErrBusy)

	close(engine.release)
	require.NoError(t, <-done)
}

func TestFrame(t *testing.T) {
	s, _ := newStubSession(t)
	topo := s.Topology()

	empty, err := s.Frame(scene.Settled)
	require.NoError(t, err)
	assert.Empty(t, empty.ProbeID)
	assert.Len(t, empty.NeuronColors, 3*topo.NumNeurons())

	p, err := s.ProbeRandom()
	require.NoError(t, err)
	f, err := s.Frame(scene.Propagation{Progress: 0.5})
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), f.ProbeID)
	assert.Len(t, f.SynapseColors, 6*topo.NumSynapses())
}

func TestLoad_MarksTrained(t *testing.T) {
	s, engine := newStubSession(t)

	require.NoError(t, s.Load("weights.nvz"))
	assert.Equal(t, "weights.nvz", engine.loaded)
	assert.Equal(t, store.Trained, s.Store().Progress().State)
}

func TestSession_WithBornEngine(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)
	defer s.Close()

	history, err := s.Train(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	p := s.Store().Latest()
	require.NotNil(t, p)
	require.NoError(t, s.Topology().CheckSnapshot(p.Snapshot))

	path := filepath.Join(t.TempDir(), "session.nvz")
	require.NoError(t, s.Save(path))

	restored, err := New(testConfig())
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.Load(path))

	again, err := restored.Probe(p.Snapshot.Input, p.Label)
	require.NoError(t, err)
	last := len(p.Snapshot.LayerOutputs) - 1
	assert.InDeltaSlice(t, p.Snapshot.LayerOutputs[last], again.Snapshot.LayerOutputs[last], 1e-6)
}

func TestSession_ProbeDuringTraining(t *testing.T) {
	cfg := testConfig()
	cfg.Training.Epochs = 40
	cfg.Training.BatchSize = 8
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		_, err := s.Train(context.Background(), nil)
		done <- err
	}()

	probes, busy := 0, 0
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Positive(t, probes)
			t.Logf("%d of %d probes rejected while training", busy, probes)
			assert.Equal(t, store.Trained, s.Store().Progress().State)
			return
		default:
		}

		_, err := s.ProbeRandom()
		if errors.Is(err, ErrBusy) {
			busy++
		} else {
			require.NoError(t, err)
		}
		probes++
	}
}
