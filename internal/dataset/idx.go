// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	idxImageMagic = 2051
	idxLabelMagic = 2049

	// maxIDXSide bounds the per-image allocation a header can request.
	maxIDXSide = 4096
)

// openIDX opens path, or path+".gz" when only the compressed file exists.
func openIDX(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err == nil {
		if strings.HasSuffix(path, ".gz") {
			return gzipReader(f)
		}
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	gz, gzErr := os.Open(path + ".gz")
	if gzErr != nil {
		return nil, err
	}
	return gzipReader(gz)
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g gzipFile) Close() error {
	_ = g.Reader.Close()
	return g.f.Close()
}

func gzipReader(f *os.File) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gzip %s: %w", f.Name(), err)
	}
	return gzipFile{Reader: zr, f: f}, nil
}

// readIDXImages reads an IDX3 image file.
//
// Layout (big endian):
//
//	magic 2051 | count | rows | cols | count*rows*cols unsigned bytes
func readIDXImages(r io.Reader, maxSamples int) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("read image header: %w", err)
	}
	if header[0] != idxImageMagic {
		return nil, 0, 0, fmt.Errorf("%w: image magic %d, want %d", ErrFormat, header[0], idxImageMagic)
	}

	count := int(header[1])
	rows, cols = int(header[2]), int(header[3])
	if rows <= 0 || cols <= 0 || rows > maxIDXSide || cols > maxIDXSide {
		return nil, 0, 0, fmt.Errorf("%w: image size %dx%d", ErrFormat, rows, cols)
	}
	if maxSamples > 0 && count > maxSamples {
		count = maxSamples
	}

	// grow with the data actually read; count is untrusted
	for i := 0; i < count; i++ {
		img := make([]byte, rows*cols)
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, 0, 0, fmt.Errorf("read image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX1 label file.
//
// Layout (big endian):
//
//	magic 2049 | count | count unsigned bytes
func readIDXLabels(r io.Reader, maxSamples int) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if header[0] != idxLabelMagic {
		return nil, fmt.Errorf("%w: label magic %d, want %d", ErrFormat, header[0], idxLabelMagic)
	}

	count := int(header[1])
	if maxSamples > 0 && count > maxSamples {
		count = maxSamples
	}
	labels, err := io.ReadAll(io.LimitReader(r, int64(count)))
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) != count {
		return nil, fmt.Errorf("read labels: %w", io.ErrUnexpectedEOF)
	}
	return labels, nil
}
