package object_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
)

func commitAt(t *testing.T, d *backend.Database, message string, when time.Time, tree plumbing.Hash, parents ...*object.Commit) *object.Commit {
	t.Helper()
	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Tree:      tree,
		Message:   message,
	}
	for _, p := range parents {
		c.Parents = append(c.Parents, p.Hash)
	}
	_, err := d.WriteCommit(context.Background(), c)
	require.NoError(t, err)
	got, err := object.GetCommit(context.Background(), d, c.Hash)
	require.NoError(t, err)
	return got
}

func emptyTree(t *testing.T, d *backend.Database) plumbing.Hash {
	t.Helper()
	tree := object.NewTree(d, nil)
	oid, err := d.WriteTree(context.Background(), tree)
	require.NoError(t, err)
	return oid
}

func TestMergeBaseLinear(t *testing.T) {
	d, err := backend.NewMemoryDatabase()
	require.NoError(t, err)
	defer d.Close() // nolint
	tree := emptyTree(t, d)
	t0 := time.Unix(1700000000, 0)
	root := commitAt(t, d, "root", t0, tree)
	mid := commitAt(t, d, "mid", t0.Add(time.Hour), tree, root)
	tip := commitAt(t, d, "tip", t0.Add(2*time.Hour), tree, mid)

	ctx := context.Background()
	bases, err := mid.MergeBase(ctx, tip)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, mid.Hash, bases[0].Hash)
}

func TestMergeBaseForked(t *testing.T) {
	d, err := backend.NewMemoryDatabase()
	require.NoError(t, err)
	defer d.Close() // nolint
	tree := emptyTree(t, d)
	t0 := time.Unix(1700000000, 0)
	root := commitAt(t, d, "root", t0, tree)
	left := commitAt(t, d, "left", t0.Add(time.Hour), tree, root)
	right := commitAt(t, d, "right", t0.Add(2*time.Hour), tree, root)

	ctx := context.Background()
	bases, err := left.MergeBase(ctx, right)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, root.Hash, bases[0].Hash)
}

func TestMergeBaseCrissCross(t *testing.T) {
	d, err := backend.NewMemoryDatabase()
	require.NoError(t, err)
	defer d.Close() // nolint
	tree := emptyTree(t, d)
	t0 := time.Unix(1700000000, 0)
	root := commitAt(t, d, "root", t0, tree)
	b1 := commitAt(t, d, "b1", t0.Add(time.Hour), tree, root)
	b2 := commitAt(t, d, "b2", t0.Add(time.Hour), tree, root)
	c1 := commitAt(t, d, "c1", t0.Add(2*time.Hour), tree, b1, b2)
	c2 := commitAt(t, d, "c2", t0.Add(2*time.Hour), tree, b2, b1)

	ctx := context.Background()
	bases, err := c1.MergeBase(ctx, c2)
	require.NoError(t, err)
	require.Len(t, bases, 2)
	got := map[plumbing.Hash]bool{bases[0].Hash: true, bases[1].Hash: true}
	assert.True(t, got[b1.Hash])
	assert.True(t, got[b2.Hash])
}

func TestIsAncestor(t *testing.T) {
	d, err := backend.NewMemoryDatabase()
	require.NoError(t, err)
	defer d.Close() // nolint
	tree := emptyTree(t, d)
	t0 := time.Unix(1700000000, 0)
	root := commitAt(t, d, "root", t0, tree)
	tip := commitAt(t, d, "tip", t0.Add(time.Hour), tree, root)

	ctx := context.Background()
	ok, err := root.IsAncestor(ctx, tip)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tip.IsAncestor(ctx, root)
	require.NoError(t, err)
	assert.False(t, ok)
}
