// Package main provides the neuroviz CLI.
//
// Usage:
//
//	neuroviz version
//	neuroviz layout [flags]
//	neuroviz train  [flags]
//	neuroviz probe  [flags]
//
// train fits the network and probes a random sample; probe runs a random
// sample through an untrained or loaded network. Both can write the
// renderer frame for the probe as JSON with -frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/born-ml/neuroviz/internal/config"
	"github.com/born-ml/neuroviz/internal/dataset"
	"github.com/born-ml/neuroviz/internal/model"
	"github.com/born-ml/neuroviz/internal/scene"
	"github.com/born-ml/neuroviz/internal/session"
	"github.com/born-ml/neuroviz/internal/store"
)

const version = "v0.1.0"

const barWidth = 40

type options struct {
	configPath string
	dataDir    string
	csvPath    string
	synthetic  bool
	maxSamples int
	epochs     int
	hidden     string
	seed       uint64
	load       string
	save       string
	framePath  string
	progress   float64
	sweep      bool
	verbose    bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "version":
		fmt.Printf("neuroviz %s\n", version)
		return
	case "layout", "train", "probe":
	case "help", "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	opts := parseFlags(cmd, args)
	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cmd == "layout" {
		printLayout(cfg)
		return
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sess, err := session.New(cfg, session.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer sess.Close()

	if opts.load != "" {
		if err := sess.Load(opts.load); err != nil {
			log.Fatalf("Failed to load weights: %v", err)
		}
		fmt.Printf("Loaded weights from %s\n", opts.load)
	}

	switch cmd {
	case "train":
		runTrain(sess, cfg)
		if opts.save != "" {
			if err := sess.Save(opts.save); err != nil {
				log.Fatalf("Failed to save weights: %v", err)
			}
			fmt.Printf("Saved weights to %s\n", opts.save)
		}
	case "probe":
		if _, err := sess.ProbeRandom(); err != nil {
			log.Fatalf("Failed to probe: %v", err)
		}
	}

	printProbe(sess)

	if opts.framePath != "" {
		writeFrame(sess, opts)
	}
}

func usage() {
	fmt.Println("neuroviz - layered MLP activation visualizer")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  layout     Print the network topology")
	fmt.Println("  train      Train the network, then probe a random sample")
	fmt.Println("  probe      Probe a random sample with an untrained or loaded network")
	fmt.Println("\nRun 'neuroviz <command> -h' for flags.")
}

func parseFlags(cmd string, args []string) options {
	var opts options
	flags := flag.NewFlagSet(cmd, flag.ExitOnError)
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.dataDir, "data", "", "MNIST IDX directory")
	flags.StringVar(&opts.csvPath, "csv", "", "CSV file of label,pixel... rows")
	flags.BoolVar(&opts.synthetic, "synthetic", false, "use generated digit bands instead of MNIST")
	flags.IntVar(&opts.maxSamples, "max-samples", 0, "load at most this many samples (0 = all)")
	flags.IntVar(&opts.epochs, "epochs", 0, "training epochs (0 = config value)")
	flags.StringVar(&opts.hidden, "hidden", "", "comma separated hidden layer sizes, e.g. 16,16")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed (0 = config value)")
	flags.StringVar(&opts.load, "load", "", "load weights from this checkpoint file")
	flags.StringVar(&opts.save, "save", "", "save weights to this checkpoint file after training")
	flags.StringVar(&opts.framePath, "frame", "", "write the renderer frame as JSON to this file")
	flags.Float64Var(&opts.progress, "progress", 1, "propagation progress in [0, 1] for the frame")
	flags.BoolVar(&opts.sweep, "sweep", false, "darken synapses the propagation wave has passed")
	flags.BoolVar(&opts.verbose, "v", false, "log session events")
	_ = flags.Parse(args)
	return opts
}

// loadConfig applies command line overrides on top of the config file.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if opts.dataDir != "" {
		cfg.Data.Dir = opts.dataDir
	}
	if opts.csvPath != "" {
		cfg.Data.CSV = opts.csvPath
	}
	if opts.synthetic {
		cfg.Data.Synthetic = true
	}
	if opts.maxSamples > 0 {
		cfg.Data.MaxSamples = opts.maxSamples
	}
	if opts.epochs > 0 {
		cfg.Training.Epochs = opts.epochs
	}
	if opts.seed > 0 {
		cfg.Seed = opts.seed
	}
	if opts.hidden != "" {
		sizes, err := parseSizes(opts.hidden)
		if err != nil {
			return cfg, err
		}
		cfg.Model.HiddenLayerSizes = sizes
	}
	return cfg, cfg.Validate()
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("bad hidden layer size %q: %w", field, err)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func printLayout(cfg config.Config) {
	topo, err := cfg.Topology()
	if err != nil {
		log.Fatalf("Invalid topology: %v", err)
	}

	fmt.Println("Network topology:")
	for l, size := range topo.LayerSizes() {
		start, _ := topo.LayerStart(l)
		synapses, _ := topo.SynapsesInLayer(l)
		fmt.Printf("   Layer %d: %4d neurons, first index %5d, %6d outgoing synapses\n", l, size, start, synapses)
	}
	fmt.Printf("   Neurons:  %d\n", topo.NumNeurons())
	fmt.Printf("   Synapses: %d\n", topo.NumSynapses())
	fmt.Printf("   Input grid: %dx%d\n", topo.InputSide(), topo.InputSide())

	bounds := cfg.Layout.Bounds()
	fmt.Printf("   Neuron slot: %.3f x %.3f x %.3f\n", bounds.X, bounds.Y, bounds.Z)
}

func runTrain(sess *session.Session, cfg config.Config) {
	data, err := sess.LoadData()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Println("MNIST data not found.")
			fmt.Println("Download train-images-idx3-ubyte and train-labels-idx1-ubyte into the data directory,")
			fmt.Println("or run with -synthetic to use generated samples.")
			os.Exit(1)
		}
		log.Fatalf("Failed to load data: %v", err)
	}

	fmt.Printf("Training on %d samples\n", data.NumSamples())
	fmt.Printf("   Optimizer: Adam (lr=%.4f, betas=(%.3f, %.3f))\n", cfg.Training.LR, cfg.Training.Beta1, cfg.Training.Beta2)
	fmt.Printf("   Batch Size: %d, Epochs: %d, Validation: %.0f%%\n",
		cfg.Training.BatchSize, cfg.Training.Epochs, 100*cfg.Training.ValidationSplit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := sess.Store()
	history, err := sess.Train(ctx, func(model.EpochMetrics) error {
		p := st.Progress()
		fmt.Printf("\r%s", store.Bar("Training model", p.Completed(), barWidth))
		return nil
	})
	fmt.Println()
	if err != nil {
		log.Fatalf("Training failed after %d epochs: %v", len(history), err)
	}

	p := st.Progress()
	for i := len(p.Logs) - 1; i >= 0; i-- {
		fmt.Println(p.Logs[i])
	}
	fmt.Printf("Validation accuracy: %s\n", p.ValAccuracyLabel())
}

func printProbe(sess *session.Session) {
	p := sess.Store().Latest()
	if p == nil {
		return
	}

	topo := sess.Topology()
	fmt.Printf("\nProbe %s (label %d, %s model)\n", p.ID, p.Label, sess.Store().Progress().State)
	fmt.Print(dataset.ASCII(p.Snapshot.Input, topo.InputSide()))

	probs := p.Snapshot.LayerOutputs[len(p.Snapshot.LayerOutputs)-1]
	best := 0
	for i, v := range probs {
		if v > probs[best] {
			best = i
		}
	}
	fmt.Printf("Prediction: %d (p=%.3f)\n", best, probs[best])
}

func writeFrame(sess *session.Session, opts options) {
	frame, err := sess.Frame(scene.Propagation{Progress: opts.progress, Sweep: opts.sweep})
	if err != nil {
		log.Fatalf("Failed to build frame: %v", err)
	}

	f, err := os.Create(opts.framePath)
	if err != nil {
		log.Fatalf("Failed to create frame file: %v", err)
	}
	if err := frame.WriteJSON(f); err != nil {
		_ = f.Close()
		log.Fatalf("Failed to write frame: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to write frame: %v", err)
	}
	fmt.Printf("Wrote frame to %s\n", opts.framePath)
}
