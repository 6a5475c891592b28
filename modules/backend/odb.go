// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/streamio"
)

const (
	DefaultHashALGO        = "BLAKE3"
	DefaultCompressionALGO = "zstd"

	// decoded trees and commits kept hot between merge stages
	metaCacheCapacity = 1 << 16
)

// Database is the content-addressed object database: blobs, trees and
// commits stored under their BLAKE3 hash.
type Database struct {
	storer Storage
	// metaLRU caches decoded trees and commits; blobs are streamed.
	metaLRU *ristretto.Cache[string, any]
	// closed is a uint32 managed by sync/atomic's <X>Uint32 methods. It
	// yields a value of 0 if the *Database it is stored upon is open,
	// and a value of 1 if it is closed.
	closed uint32
}

// NewDatabase opens (or creates) the loose object store rooted at
// <root>/objects.
func NewDatabase(root string) (*Database, error) {
	return newDatabase(newFileStorer(filepath.Join(root, "objects")))
}

// NewMemoryDatabase returns a database holding every object in memory.
func NewMemoryDatabase() (*Database, error) {
	return newDatabase(newMemStorer())
}

func newDatabase(storer Storage) (*Database, error) {
	metaLRU, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: metaCacheCapacity * 10,
		MaxCost:     metaCacheCapacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new meta cache: %w", err)
	}
	return &Database{storer: storer, metaLRU: metaLRU}, nil
}

func (d *Database) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return nil
	}
	d.metaLRU.Close()
	return d.storer.Close()
}

// Exists reports whether the object is present in the store.
func (d *Database) Exists(oid plumbing.Hash) bool {
	return d.storer.Exists(oid) == nil
}

func (d *Database) open(oid plumbing.Hash, want object.ObjectType) (object.Reader, int64, io.Closer, error) {
	rc, err := d.storer.Open(oid)
	if err != nil {
		return nil, 0, nil, err
	}
	br := streamio.GetBufioReader(rc)
	kind, err := br.ReadString(' ')
	if err != nil {
		streamio.PutBufioReader(br)
		_ = rc.Close()
		return nil, 0, nil, fmt.Errorf("ort: corrupt object %s: %w", oid, err)
	}
	sizeText, err := br.ReadString(0)
	if err != nil {
		streamio.PutBufioReader(br)
		_ = rc.Close()
		return nil, 0, nil, fmt.Errorf("ort: corrupt object %s: %w", oid, err)
	}
	t := object.ObjectTypeFromString(kind[:len(kind)-1])
	size, err := strconv.ParseInt(sizeText[:len(sizeText)-1], 10, 64)
	if err != nil {
		streamio.PutBufioReader(br)
		_ = rc.Close()
		return nil, 0, nil, fmt.Errorf("ort: corrupt object %s: bad size", oid)
	}
	if want != object.AnyObject && t != want {
		streamio.PutBufioReader(br)
		_ = rc.Close()
		return nil, 0, nil, fmt.Errorf("ort: object %s is a %s, not a %s", oid, t, want)
	}
	return object.NewReader(br, oid, t), size, &pooledCloser{br: br, rc: rc}, nil
}

type pooledCloser struct {
	br *bufio.Reader
	rc io.ReadCloser
}

func (p *pooledCloser) Close() error {
	streamio.PutBufioReader(p.br)
	return p.rc.Close()
}

// Blob opens a blob for streaming. The caller owns the returned closer.
func (d *Database) Blob(ctx context.Context, oid plumbing.Hash) (*object.Blob, error) {
	r, size, closer, err := d.open(oid, object.BlobObject)
	if err != nil {
		return nil, err
	}
	return object.NewBlob(oid, r, size, closer.Close), nil
}

// Tree reads and decodes a tree object, serving repeats from the LRU.
func (d *Database) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	if v, ok := d.metaLRU.Get(treeKey(oid)); ok {
		t := v.(*object.Tree)
		return t, nil
	}
	r, _, closer, err := d.open(oid, object.TreeObject)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	t := &object.Tree{}
	if err := t.Decode(r); err != nil {
		return nil, err
	}
	t.Bind(d)
	d.metaLRU.Set(treeKey(oid), t, 1)
	return t, nil
}

// Commit reads and decodes a commit object.
func (d *Database) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	if v, ok := d.metaLRU.Get(commitKey(oid)); ok {
		return v.(*object.Commit), nil
	}
	r, _, closer, err := d.open(oid, object.CommitObject)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	c := &object.Commit{}
	if err := c.Decode(r); err != nil {
		return nil, err
	}
	c.Bind(d)
	d.metaLRU.Set(commitKey(oid), c, 1)
	return c, nil
}

// EmptyTree returns the canonical empty tree bound to this database.
func (d *Database) EmptyTree() *object.Tree {
	t := object.NewEmptyTree(d)
	_, _ = d.WriteTree(context.Background(), object.NewTree(d, nil))
	return t
}

func canonical(kind object.ObjectType, payload []byte) (plumbing.Hash, []byte) {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	raw := make([]byte, 0, len(header)+len(payload))
	raw = append(raw, header...)
	raw = append(raw, payload...)
	return plumbing.HashBytes(raw), raw
}

// WriteBlob stores raw bytes as a blob and returns its hash. Writing an
// object that already exists is a no-op.
func (d *Database) WriteBlob(ctx context.Context, content []byte) (plumbing.Hash, error) {
	oid, raw := canonical(object.BlobObject, content)
	return oid, d.storer.Write(oid, raw)
}

// HashTo hashes a blob stream into the store.
func (d *Database) HashTo(ctx context.Context, r io.Reader, size int64) (plumbing.Hash, error) {
	content, err := streamio.ReadMax(r, size)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return d.WriteBlob(ctx, content)
}

// WriteTree encodes and stores a tree; entries must already be in subtree
// order.
func (d *Database) WriteTree(ctx context.Context, t *object.Tree) (plumbing.Hash, error) {
	var payload bytes.Buffer
	if err := t.Encode(&payload); err != nil {
		return plumbing.ZeroHash, err
	}
	oid, raw := canonical(object.TreeObject, payload.Bytes())
	t.Hash = oid
	if d.Exists(oid) {
		return oid, nil
	}
	return oid, d.storer.Write(oid, raw)
}

// WriteCommit encodes and stores a commit.
func (d *Database) WriteCommit(ctx context.Context, c *object.Commit) (plumbing.Hash, error) {
	var payload bytes.Buffer
	if err := c.Encode(&payload); err != nil {
		return plumbing.ZeroHash, err
	}
	oid, raw := canonical(object.CommitObject, payload.Bytes())
	c.Hash = oid
	return oid, d.storer.Write(oid, raw)
}

func treeKey(oid plumbing.Hash) string   { return "t" + oid.String() }
func commitKey(oid plumbing.Hash) string { return "c" + oid.String() }

var (
	_ object.Backend = (*Database)(nil)
)
