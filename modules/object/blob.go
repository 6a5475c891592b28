// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"io"

	"github.com/ortscm/ort/modules/plumbing"
)

type Blob struct {
	Hash     plumbing.Hash
	Contents io.Reader
	Size     int64
	closeFn  func() error
}

func (b *Blob) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

func NewBlob(hash plumbing.Hash, contents io.Reader, size int64, closeFn func() error) *Blob {
	return &Blob{Hash: hash, Contents: contents, Size: size, closeFn: closeFn}
}
