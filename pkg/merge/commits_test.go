package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/object"
)

func commitFixture(t *testing.T, d *backend.Database, files map[string]string, when time.Time, parents ...*object.Commit) *object.Commit {
	t.Helper()
	tree := fixtureTree(t, d, files)
	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Tree:      tree.Hash,
		Message:   when.String(),
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

func TestMergeCommitsSingleBase(t *testing.T) {
	d := mustStore(t)
	t0 := time.Unix(1700000000, 0)
	root := commitFixture(t, d, map[string]string{"f": "base\n"}, t0)
	left := commitFixture(t, d, map[string]string{"f": "base\n", "g": "1\n"}, t0.Add(time.Hour), root)
	right := commitFixture(t, d, map[string]string{"f": "base2\n"}, t0.Add(2*time.Hour), root)

	r, err := MergeCommits(context.Background(), d, left, right, nil, &Options{})
	require.NoError(t, err)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"f": "base2\n", "g": "1\n"}, flatten(t, d, r.NewTree))
}

func TestMergeCommitsIdenticalTrees(t *testing.T) {
	d := mustStore(t)
	t0 := time.Unix(1700000000, 0)
	root := commitFixture(t, d, map[string]string{"f": "x\n"}, t0)
	left := commitFixture(t, d, map[string]string{"f": "x\n", "g": "1\n"}, t0.Add(time.Hour), root)
	right := commitFixture(t, d, map[string]string{"f": "x\n", "g": "1\n"}, t0.Add(2*time.Hour), root)

	r, err := MergeCommits(context.Background(), d, left, right, nil, &Options{})
	require.NoError(t, err)
	assert.True(t, r.Clean)
	assert.Empty(t, r.Unmerged)
	tree, err := left.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tree.Hash, r.NewTree)
}

func TestMergeCommitsRecursiveVirtualBase(t *testing.T) {
	d := mustStore(t)
	t0 := time.Unix(1700000000, 0)
	root := commitFixture(t, d, map[string]string{"f": "base\n"}, t0)
	b1 := commitFixture(t, d, map[string]string{"f": "base\n", "g": "g\n"}, t0.Add(time.Hour), root)
	b2 := commitFixture(t, d, map[string]string{"f": "base\n", "h": "h\n"}, t0.Add(time.Hour), root)
	// criss-cross: both tips carry both bases
	c1 := commitFixture(t, d, map[string]string{"f": "base\n", "g": "g\n", "h": "h\n", "one": "1\n"}, t0.Add(2*time.Hour), b1, b2)
	c2 := commitFixture(t, d, map[string]string{"f": "base\n", "g": "g\n", "h": "h\n", "two": "2\n"}, t0.Add(2*time.Hour), b2, b1)

	r, err := MergeCommits(context.Background(), d, c1, c2, nil, &Options{})
	require.NoError(t, err)
	assert.True(t, r.Clean, "messages: %v", r.Messages)
	assert.Equal(t, map[string]string{
		"f": "base\n", "g": "g\n", "h": "h\n", "one": "1\n", "two": "2\n",
	}, flatten(t, d, r.NewTree))
}

func TestMergeCommitsNoCommonHistory(t *testing.T) {
	d := mustStore(t)
	t0 := time.Unix(1700000000, 0)
	left := commitFixture(t, d, map[string]string{"a": "1\n"}, t0)
	right := commitFixture(t, d, map[string]string{"b": "2\n"}, t0.Add(time.Hour))

	r, err := MergeCommits(context.Background(), d, left, right, nil, &Options{})
	require.NoError(t, err)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"a": "1\n", "b": "2\n"}, flatten(t, d, r.NewTree))
}

func TestMergeCommitsExplicitBase(t *testing.T) {
	d := mustStore(t)
	t0 := time.Unix(1700000000, 0)
	base := commitFixture(t, d, map[string]string{"f": "0\n"}, t0)
	left := commitFixture(t, d, map[string]string{"f": "1\n"}, t0.Add(time.Hour))
	right := commitFixture(t, d, map[string]string{"f": "0\n", "g": "g\n"}, t0.Add(2*time.Hour))

	r, err := MergeCommits(context.Background(), d, left, right, []*object.Commit{base}, &Options{})
	require.NoError(t, err)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"f": "1\n", "g": "g\n"}, flatten(t, d, r.NewTree))
}
