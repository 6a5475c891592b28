// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package streamio

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

var (
	byteSlice = sync.Pool{
		New: func() any {
			b := make([]byte, 32*1024)
			return &b
		},
	}
	bufioReader = sync.Pool{
		New: func() any {
			return bufio.NewReader(nil)
		},
	}
)

// GetByteSlice returns a *[]byte that is managed by a sync.Pool.
//
// After use, the *[]byte should be put back into the sync.Pool
// by calling PutByteSlice.
func GetByteSlice() *[]byte {
	buf := byteSlice.Get().(*[]byte)
	return buf
}

// PutByteSlice puts buf back into its sync.Pool.
func PutByteSlice(buf *[]byte) {
	byteSlice.Put(buf)
}

// GetBufioReader returns a *bufio.Reader that is managed by a sync.Pool,
// reset to read from r.
func GetBufioReader(r io.Reader) *bufio.Reader {
	br := bufioReader.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutBufioReader puts br back into its sync.Pool.
func PutBufioReader(br *bufio.Reader) {
	br.Reset(nil)
	bufioReader.Put(br)
}

// ReadMax reads at most n bytes from r.
func ReadMax(r io.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(n))
	if _, err := buf.ReadFrom(io.LimitReader(r, n)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Copy copy reader to writer
func Copy(dst io.Writer, src io.Reader) (written int64, err error) {
	buf := GetByteSlice()
	defer PutByteSlice(buf)
	return io.CopyBuffer(dst, src, *buf)
}
