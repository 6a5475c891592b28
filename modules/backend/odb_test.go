package backend

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

func testDatabases(t *testing.T) map[string]*Database {
	t.Helper()
	mem, err := NewMemoryDatabase()
	require.NoError(t, err)
	file, err := NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mem.Close()
		_ = file.Close()
	})
	return map[string]*Database{"memory": mem, "file": file}
}

func TestBlobRoundTrip(t *testing.T) {
	for name, d := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			oid, err := d.WriteBlob(ctx, []byte("hello world\n"))
			require.NoError(t, err)
			assert.True(t, d.Exists(oid))

			// idempotent by content hash
			again, err := d.WriteBlob(ctx, []byte("hello world\n"))
			require.NoError(t, err)
			assert.Equal(t, oid, again)

			br, err := d.Blob(ctx, oid)
			require.NoError(t, err)
			content, err := io.ReadAll(br.Contents)
			require.NoError(t, err)
			require.NoError(t, br.Close())
			assert.Equal(t, "hello world\n", string(content))
			assert.Equal(t, int64(12), br.Size)
		})
	}
}

func TestTreeRoundTrip(t *testing.T) {
	for name, d := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			blob, err := d.WriteBlob(ctx, []byte("content"))
			require.NoError(t, err)
			tree := object.NewTree(d, []*object.TreeEntry{
				{Name: "f", Mode: filemode.Regular, Hash: blob},
			})
			tree.Sort()
			oid, err := d.WriteTree(ctx, tree)
			require.NoError(t, err)

			got, err := d.Tree(ctx, oid)
			require.NoError(t, err)
			require.Len(t, got.Entries, 1)
			assert.Equal(t, "f", got.Entries[0].Name)
			assert.Equal(t, blob, got.Entries[0].Hash)
		})
	}
}

func TestMissingObject(t *testing.T) {
	for name, d := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			_, err := d.Blob(context.Background(), plumbing.NewHash("1111111111111111111111111111111111111111111111111111111111111111"))
			assert.True(t, plumbing.IsNoSuchObject(err))
		})
	}
}

func TestObjectTypeChecked(t *testing.T) {
	d, err := NewMemoryDatabase()
	require.NoError(t, err)
	defer d.Close() // nolint
	ctx := context.Background()
	oid, err := d.WriteBlob(ctx, []byte("not a tree"))
	require.NoError(t, err)
	_, err = d.Tree(ctx, oid)
	assert.Error(t, err)
}
