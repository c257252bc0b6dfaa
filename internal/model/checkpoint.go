// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"
)

// ErrCheckpoint is returned for checkpoint files that are malformed or do
// not match the network.
var ErrCheckpoint = errors.New("model: bad checkpoint")

// Checkpoint file layout (little endian):
//
//	magic "NVZW" | version u32 | flags u32 | header size u64 | JSON header | tensor data
//
// Tensor data is every parameter's float32 values back to back, in header
// order; each entry's Offset is relative to the start of the data section.
const (
	checkpointMagic   = "NVZW"
	checkpointVersion = 1

	// maxHeaderSize bounds the header allocation a file can request.
	maxHeaderSize = 1 << 20
)

// CheckpointHeader is the JSON header of a checkpoint file.
type CheckpointHeader struct {
	FormatVersion int           `json:"format_version"`
	ModelType     string        `json:"model_type"`
	LayerSizes    []int         `json:"layer_sizes"`
	CreatedAt     time.Time     `json:"created_at"`
	Tensors       []TensorEntry `json:"tensors"`
}

// TensorEntry describes one stored parameter.
type TensorEntry struct {
	Name   string `json:"name"` // "<linear index>.<weight|bias>"
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"` // bytes
}

// entries lists the parameters in storage order with their names.
func (m *MLP[B]) entries() []TensorEntry {
	var (
		out    []TensorEntry
		offset int64
	)
	for i, lin := range m.linears {
		for _, p := range lin.Parameters() {
			size := int64(p.Tensor().NumElements() * 4)
			out = append(out, TensorEntry{
				Name:   fmt.Sprintf("%d.%s", i, p.Name()),
				DType:  "float32",
				Shape:  slices.Clone([]int(p.Tensor().Shape())),
				Offset: offset,
				Size:   size,
			})
			offset += size
		}
	}
	return out
}

// Save writes the weights to path.
func (m *MLP[B]) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: save: %w", err)
	}
	if err := m.WriteCheckpoint(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	return nil
}

// WriteCheckpoint encodes the weights to w.
func (m *MLP[B]) WriteCheckpoint(w io.Writer) error {
	header := CheckpointHeader{
		FormatVersion: checkpointVersion,
		ModelType:     "MLP",
		LayerSizes:    m.topo.LayerSizes(),
		CreatedAt:     time.Now().UTC(),
		Tensors:       m.entries(),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(checkpointMagic); err != nil {
		return err
	}
	for _, v := range []any{uint32(checkpointVersion), uint32(0), uint64(len(headerJSON))} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return err
	}
	for _, lin := range m.linears {
		for _, p := range lin.Parameters() {
			if err := binary.Write(bw, binary.LittleEndian, p.Tensor().Data()); err != nil {
				return fmt.Errorf("failed to write %s: %w", p.Name(), err)
			}
		}
	}
	return bw.Flush()
}

// Load reads weights written by Save. The file must match the topology.
func (m *MLP[B]) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("model: load: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := m.ReadCheckpoint(f); err != nil {
		return fmt.Errorf("model: load %s: %w", path, err)
	}
	return nil
}

// ReadCheckpoint decodes weights from r into the network. Nothing is
// written to the parameters unless the whole file is valid.
func (m *MLP[B]) ReadCheckpoint(r io.Reader) (CheckpointHeader, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return CheckpointHeader{}, fmt.Errorf("%w: read magic: %v", ErrCheckpoint, err)
	}
	if string(magic) != checkpointMagic {
		return CheckpointHeader{}, fmt.Errorf("%w: magic %q, want %q", ErrCheckpoint, magic, checkpointMagic)
	}

	var fixed struct {
		Version    uint32
		Flags      uint32
		HeaderSize uint64
	}
	if err := binary.Read(br, binary.LittleEndian, &fixed); err != nil {
		return CheckpointHeader{}, fmt.Errorf("%w: read fixed header: %v", ErrCheckpoint, err)
	}
	if fixed.Version != checkpointVersion {
		return CheckpointHeader{}, fmt.Errorf("%w: format version %d, want %d", ErrCheckpoint, fixed.Version, checkpointVersion)
	}
	if fixed.HeaderSize == 0 || fixed.HeaderSize > maxHeaderSize {
		return CheckpointHeader{}, fmt.Errorf("%w: header size %d", ErrCheckpoint, fixed.HeaderSize)
	}

	headerJSON := make([]byte, fixed.HeaderSize)
	if _, err := io.ReadFull(br, headerJSON); err != nil {
		return CheckpointHeader{}, fmt.Errorf("%w: read header: %v", ErrCheckpoint, err)
	}
	var header CheckpointHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return CheckpointHeader{}, fmt.Errorf("%w: decode header: %v", ErrCheckpoint, err)
	}

	if want := m.topo.LayerSizes(); !slices.Equal(header.LayerSizes, want) {
		return header, fmt.Errorf("%w: layer sizes %v, network has %v", ErrCheckpoint, header.LayerSizes, want)
	}
	want := m.entries()
	if len(header.Tensors) != len(want) {
		return header, fmt.Errorf("%w: %d tensors, want %d", ErrCheckpoint, len(header.Tensors), len(want))
	}
	for i, got := range header.Tensors {
		w := want[i]
		if got.Name != w.Name || got.DType != w.DType || !slices.Equal(got.Shape, w.Shape) ||
			got.Offset != w.Offset || got.Size != w.Size {
			return header, fmt.Errorf("%w: tensor %d is %s %s%v, want %s %s%v",
				ErrCheckpoint, i, got.Name, got.DType, got.Shape, w.Name, w.DType, w.Shape)
		}
	}

	// shapes are verified, so every buffer is bounded by the topology
	values := make([][]float32, len(want))
	for i, w := range want {
		values[i] = make([]float32, w.Size/4)
		if err := binary.Read(br, binary.LittleEndian, values[i]); err != nil {
			return header, fmt.Errorf("%w: read %s: %v", ErrCheckpoint, w.Name, err)
		}
	}

	i := 0
	for _, lin := range m.linears {
		for _, p := range lin.Parameters() {
			copy(p.Tensor().Data(), values[i])
			i++
		}
	}
	return header, nil
}
