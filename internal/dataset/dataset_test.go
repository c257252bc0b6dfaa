package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIDX(t *testing.T, dir, prefix string, images [][]byte, side int, labels []byte, gz bool) {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, binary.Write(&img, binary.BigEndian, [4]uint32{2051, uint32(len(images)), uint32(side), uint32(side)}))
	for _, im := range images {
		img.Write(im)
	}

	var lbl bytes.Buffer
	require.NoError(t, binary.Write(&lbl, binary.BigEndian, [2]uint32{2049, uint32(len(labels))}))
	lbl.Write(labels)

	write := func(name string, data []byte) {
		path := filepath.Join(dir, name)
		if gz {
			var zb bytes.Buffer
			zw := gzip.NewWriter(&zb)
			_, err := zw.Write(data)
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			data = zb.Bytes()
			path += ".gz"
		}
		require.NoError(t, os.WriteFile(path, data, 0o600))
	}
	write(prefix+"-images-idx3-ubyte", img.Bytes())
	write(prefix+"-labels-idx1-ubyte", lbl.Bytes())
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, dir, "train", [][]byte{{0, 255, 0, 0}, {255, 255, 255, 255}, {0, 0, 0, 0}}, 2, []byte{7, 1, 0}, false)

	d, err := LoadIDX(dir, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumSamples())
	assert.Equal(t, 2, d.Side)
	assert.Equal(t, 4, d.InputSize())
	assert.Equal(t, []int32{7, 1, 0}, d.Labels)
	assert.Equal(t, []float32{0, 1, 0, 0}, d.Images[0])

	d, err = LoadIDX(dir, true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumSamples())

	_, err = LoadIDX(dir, false, 0)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadIDX_Gzip(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, dir, "t10k", [][]byte{{10, 20, 30, 40}}, 2, []byte{4}, true)

	d, err := LoadIDX(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{4}, d.Labels)
	assert.InDelta(t, 40.0/255.0, d.Images[0][3], 1e-6)
}

func TestLoadIDX_BadMagic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train-images-idx3-ubyte"), make([]byte, 16), 0o600))

	_, err := LoadIDX(dir, true, 0)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestReadIDX_TruncatedHugeCount(t *testing.T) {
	var img bytes.Buffer
	require.NoError(t, binary.Write(&img, binary.BigEndian, [4]uint32{2051, 1 << 31, 2, 2}))
	img.Write([]byte{1, 2, 3, 4})

	_, _, _, err := readIDXImages(&img, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var lbl bytes.Buffer
	require.NoError(t, binary.Write(&lbl, binary.BigEndian, [2]uint32{2049, 1<<32 - 1}))
	lbl.Write([]byte{3})

	_, err = readIDXLabels(&lbl, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadIDX_RejectsImageSize(t *testing.T) {
	for _, dims := range [][2]uint32{{0, 28}, {28, 0}, {1 << 20, 1 << 20}} {
		var img bytes.Buffer
		require.NoError(t, binary.Write(&img, binary.BigEndian, [4]uint32{2051, 1, dims[0], dims[1]}))

		_, _, _, err := readIDXImages(&img, 0)
		assert.ErrorIs(t, err, ErrFormat, "dims %v", dims)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.csv")
	content := strings.Join([]string{
		"label,p0,p1,p2,p3",
		"3,0,255,0,0",
		"9,255,255,0,0",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := LoadCSV(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Side)
	assert.Equal(t, []int32{3, 9}, d.Labels)
	assert.Equal(t, []float32{1, 1, 0, 0}, d.Images[1])
}

func TestLoadCSV_Rejects(t *testing.T) {
	tests := map[string]string{
		"header only":  "label,p0",
		"non square":   "label,p0,p1\n1,0,0",
		"bad label":    "label,p0\n12,0",
		"bad pixel":    "label,p0\n1,300",
		"short record": "label,p0,p1,p2,p3\n1,0,0,0,0\n2,0,0,0",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := LoadCSV(path, 0)
			assert.Error(t, err)
		})
	}
}

func TestSynthetic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	d := Synthetic(28, 3, rng)

	assert.Equal(t, 30, d.NumSamples())
	assert.Equal(t, 784, d.InputSize())
	assert.Equal(t, 10, d.Classes)
	for i, img := range d.Images {
		require.Len(t, img, 784)
		assert.Equal(t, int32(i/3), d.Labels[i])
	}
}

func TestShuffleCombo_KeepsPairs(t *testing.T) {
	d := &Data{Side: 1}
	for i := 0; i < 50; i++ {
		d.Images = append(d.Images, []float32{float32(i)})
		d.Labels = append(d.Labels, int32(i))
	}

	d.ShuffleCombo(rand.New(rand.NewPCG(7, 7)))

	moved := false
	for i := range d.Images {
		assert.Equal(t, float32(d.Labels[i]), d.Images[i][0])
		if d.Labels[i] != int32(i) {
			moved = true
		}
	}
	assert.True(t, moved)
}

func TestSplit(t *testing.T) {
	d := Synthetic(4, 1, rand.New(rand.NewPCG(1, 1)))

	train, val := d.Split(0.2)
	assert.Equal(t, 8, train.NumSamples())
	assert.Equal(t, 2, val.NumSamples())
	assert.Equal(t, d.Labels[8], val.Labels[0])
	assert.Equal(t, d.Side, val.Side)

	train, val = d.Split(0)
	assert.Equal(t, 10, train.NumSamples())
	assert.Zero(t, val.NumSamples())
}

func TestRandomSample(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	d := Synthetic(4, 2, rng)

	s, err := d.RandomSample(rng)
	require.NoError(t, err)
	assert.Len(t, s.Image, 16)

	_, err = (&Data{}).RandomSample(rng)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestASCII(t *testing.T) {
	out := ASCII([]float32{0, 1, 0.5, 0.26}, 2)
	assert.Equal(t, " @\n:.\n", out)
}

func TestBatches(t *testing.T) {
	backend := cpu.New()
	d := Synthetic(4, 1, rand.New(rand.NewPCG(5, 5)))

	batches, err := Batches(d, 4, backend)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[2].Size)
	assert.Equal(t, []int{4, 16}, []int(batches[0].Images.Shape()))
	assert.Equal(t, d.Labels[5], batches[1].Labels.Data()[1])
	assert.Equal(t, d.Images[9], batches[2].Images.Data()[16:32])

	_, err = Batches(d, 0, backend)
	assert.Error(t, err)
	_, err = Batches(&Data{}, 4, backend)
	assert.ErrorIs(t, err, ErrEmpty)
}
