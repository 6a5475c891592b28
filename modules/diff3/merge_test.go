package diff3

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeClean(t *testing.T) {
	o := "celery\ngarlic\nonions\nsalmon\ntomatoes\nwine\n"
	a := "celery\nsalmon\ntomatoes\ngarlic\nonions\nwine\n"
	b := o
	merged, conflict, err := DefaultMerge(context.Background(), o, a, b, "base", "ours", "theirs")
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, a, merged)
}

func TestMergeBothSidesIndependent(t *testing.T) {
	o := "1\n2\n3\n4\n5\n"
	a := "1\n2\nA\n4\n5\n"
	b := "1\n2\n3\n4\nB\n"
	merged, conflict, err := DefaultMerge(context.Background(), o, a, b, "", "", "")
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, "1\n2\nA\n4\nB\n", merged)
}

func TestMergeConflictMarkers(t *testing.T) {
	o := "line\n"
	a := "ours\n"
	b := "theirs\n"
	merged, conflict, err := DefaultMerge(context.Background(), o, a, b, "base", "left", "right")
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, merged, "<<<<<<< left\n")
	assert.Contains(t, merged, "ours\n")
	assert.Contains(t, merged, "=======\n")
	assert.Contains(t, merged, "theirs\n")
	assert.Contains(t, merged, ">>>>>>> right\n")
	assert.NotContains(t, merged, "|||||||")
}

func TestMergeDiff3Style(t *testing.T) {
	merged, conflict, err := Merge(context.Background(), &MergeOptions{
		TextO: "base\n", TextA: "ours\n", TextB: "theirs\n",
		LabelO: "ancestor", LabelA: "left", LabelB: "right",
		Style: STYLE_DIFF3,
	})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, merged, "||||||| ancestor\n")
	assert.Contains(t, merged, "base\n")
}

func TestMergeMarkerSize(t *testing.T) {
	merged, conflict, err := Merge(context.Background(), &MergeOptions{
		TextO: "base\n", TextA: "ours\n", TextB: "theirs\n",
		LabelA: "left", LabelB: "right",
		MarkerSize: 11,
	})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, merged, strings.Repeat("<", 11)+" left\n")
	assert.Contains(t, merged, strings.Repeat(">", 11)+" right\n")
}

func TestMergeFalseConflictExcluded(t *testing.T) {
	o := "old\n"
	a := "new\n"
	b := "new\n"
	merged, conflict, err := DefaultMerge(context.Background(), o, a, b, "", "", "")
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, "new\n", merged)
}

func TestMergeNoTrailingNewline(t *testing.T) {
	o := "a"
	a := "a"
	b := "b"
	merged, conflict, err := DefaultMerge(context.Background(), o, a, b, "", "", "")
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, "b", merged)
}

func TestParseConflictStyle(t *testing.T) {
	assert.Equal(t, STYLE_DIFF3, ParseConflictStyle("diff3"))
	assert.Equal(t, STYLE_ZEALOUS_DIFF3, ParseConflictStyle("zdiff3"))
	assert.Equal(t, STYLE_DEFAULT, ParseConflictStyle("merge"))
	assert.Equal(t, STYLE_DEFAULT, ParseConflictStyle("unknown"))
}
