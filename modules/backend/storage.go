// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/streamio"
)

// Storage is the byte-level loose object surface. Writes are idempotent by
// content hash.
type Storage interface {
	// Open returns the raw canonical bytes of the object.
	Open(oid plumbing.Hash) (io.ReadCloser, error)
	// Exists reports whether the object is present.
	Exists(oid plumbing.Hash) error
	// Write stores the canonical bytes under oid.
	Write(oid plumbing.Hash, payload []byte) error
	Close() error
}

// fileStorer implements Storage by writing zstd-compressed loose objects to
// the objects directory on disc, sharded by the first two hex byte pairs.
type fileStorer struct {
	// root is the top level /objects directory's path on disc.
	root string
}

func newFileStorer(root string) *fileStorer {
	return &fileStorer{root: root}
}

// path returns the path on disk, under the storer's root, to the object
// given by the OID.
func (so *fileStorer) path(oid plumbing.Hash) string {
	encoded := oid.String()
	return filepath.Join(so.root, encoded[:2], encoded[2:4], encoded)
}

func (so *fileStorer) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	fd, err := os.Open(so.path(oid))
	if os.IsNotExist(err) {
		return nil, plumbing.NoSuchObject(oid)
	}
	if err != nil {
		return nil, err
	}
	zr, err := streamio.GetZstdReader(fd)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	return &zstdReadCloser{zr: zr, fd: fd}, nil
}

type zstdReadCloser struct {
	zr *streamio.ZstdDecoder
	fd *os.File
}

func (rc *zstdReadCloser) Read(p []byte) (int, error) {
	return rc.zr.Read(p)
}

func (rc *zstdReadCloser) Close() error {
	streamio.PutZstdReader(rc.zr)
	return rc.fd.Close()
}

func (so *fileStorer) Exists(oid plumbing.Hash) error {
	if _, err := os.Stat(so.path(oid)); err != nil {
		if os.IsNotExist(err) {
			return plumbing.NoSuchObject(oid)
		}
		return err
	}
	return nil
}

func (so *fileStorer) Write(oid plumbing.Hash, payload []byte) error {
	p := so.path(oid)
	if _, err := os.Stat(p); err == nil {
		// content-addressed: already present means already identical
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	fd, err := os.CreateTemp(filepath.Dir(p), ".incoming-*")
	if err != nil {
		return err
	}
	name := fd.Name()
	zw := streamio.GetZstdWriter(fd)
	_, werr := zw.Write(payload)
	streamio.PutZstdWriter(zw)
	if cerr := fd.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(name)
		return werr
	}
	return os.Rename(name, p)
}

func (so *fileStorer) Close() error { return nil }

// memStorer keeps canonical object bytes in memory; used for tests and for
// merges that must not touch the disc store.
type memStorer struct {
	mu      sync.RWMutex
	objects map[plumbing.Hash][]byte
}

func newMemStorer() *memStorer {
	return &memStorer{objects: make(map[plumbing.Hash][]byte)}
}

func (so *memStorer) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	so.mu.RLock()
	payload, ok := so.objects[oid]
	so.mu.RUnlock()
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (so *memStorer) Exists(oid plumbing.Hash) error {
	so.mu.RLock()
	_, ok := so.objects[oid]
	so.mu.RUnlock()
	if !ok {
		return plumbing.NoSuchObject(oid)
	}
	return nil
}

func (so *memStorer) Write(oid plumbing.Hash, payload []byte) error {
	so.mu.Lock()
	if _, ok := so.objects[oid]; !ok {
		so.objects[oid] = bytes.Clone(payload)
	}
	so.mu.Unlock()
	return nil
}

func (so *memStorer) Close() error { return nil }
