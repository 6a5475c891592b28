package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diffPairs(t *testing.T, base, side map[string]string, opts *DetectOptions) []*FilePair {
	t.Helper()
	d := mustStore(t)
	o := fixtureTree(t, d, base)
	s := fixtureTree(t, d, side)
	pairs, err := NewDetector().Diff(context.Background(), d, o, s, opts)
	require.NoError(t, err)
	return pairs
}

func findPair(pairs []*FilePair, status byte, newPath string) *FilePair {
	for _, p := range pairs {
		if p.Status == status && p.NewPath == newPath {
			return p
		}
	}
	return nil
}

func TestDetectExactRename(t *testing.T) {
	pairs := diffPairs(t,
		map[string]string{"dir/a": "same content\n"},
		map[string]string{"dir/b": "same content\n"}, nil)
	p := findPair(pairs, StatusRename, "dir/b")
	require.NotNil(t, p)
	assert.Equal(t, "dir/a", p.OldPath)
	assert.Equal(t, 100, p.Score)
}

func TestDetectSimilarityRename(t *testing.T) {
	pairs := diffPairs(t,
		map[string]string{"a": "1\n2\n3\n4\n"},
		map[string]string{"b": "1\n2\n3\nchanged\n"}, nil)
	p := findPair(pairs, StatusRename, "b")
	require.NotNil(t, p)
	assert.Equal(t, "a", p.OldPath)
	assert.GreaterOrEqual(t, p.Score, defaultRenameScore)
	assert.Less(t, p.Score, 100)
}

func TestDetectScoreThreshold(t *testing.T) {
	pairs := diffPairs(t,
		map[string]string{"a": "1\n2\n3\n4\n"},
		map[string]string{"b": "5\n6\n7\n8\n"}, nil)
	assert.Nil(t, findPair(pairs, StatusRename, "b"))
	assert.NotNil(t, findPair(pairs, StatusAdd, "b"))
	for _, p := range pairs {
		if p.Status == StatusDelete {
			assert.Equal(t, "a", p.OldPath)
		}
	}
}

func TestDetectModify(t *testing.T) {
	pairs := diffPairs(t,
		map[string]string{"a": "1\n"},
		map[string]string{"a": "2\n"}, nil)
	require.Len(t, pairs, 1)
	assert.Equal(t, byte(StatusModify), pairs[0].Status)
}

func TestDetectNoChanges(t *testing.T) {
	files := map[string]string{"a": "1\n", "dir/b": "2\n"}
	pairs := diffPairs(t, files, files, nil)
	assert.Empty(t, pairs)
}

func TestSplitDirRename(t *testing.T) {
	oldDir, newDir, ok := splitDirRename("old/sub/a", "new/sub/a")
	require.True(t, ok)
	assert.Equal(t, "old", oldDir)
	assert.Equal(t, "new", newDir)

	oldDir, newDir, ok = splitDirRename("old/a", "a")
	require.True(t, ok)
	assert.Equal(t, "old", oldDir)
	assert.Equal(t, "", newDir)

	// basename changed: plain directory names
	oldDir, newDir, ok = splitDirRename("old/a", "new/b")
	require.True(t, ok)
	assert.Equal(t, "old", oldDir)
	assert.Equal(t, "new", newDir)

	_, _, ok = splitDirRename("same/a", "same/a")
	assert.False(t, ok)
}
