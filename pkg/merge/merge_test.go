package merge

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

func mustStore(t *testing.T) *backend.Database {
	t.Helper()
	d, err := backend.NewMemoryDatabase()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// fixtureTree writes a tree from path → content. A "link:" content prefix
// makes a symlink, "x:" an executable.
func fixtureTree(t *testing.T, d *backend.Database, files map[string]string) *object.Tree {
	t.Helper()
	oid := fixtureSubtree(t, d, "", files)
	tree, err := d.Tree(context.Background(), oid)
	require.NoError(t, err)
	return tree
}

func fixtureSubtree(t *testing.T, d *backend.Database, prefix string, files map[string]string) plumbing.Hash {
	t.Helper()
	ctx := context.Background()
	direct := make(map[string]string)
	subdirs := make(map[string]map[string]string)
	for p, content := range files {
		name, rest, nested := strings.Cut(p, "/")
		if !nested {
			direct[name] = content
			continue
		}
		if subdirs[name] == nil {
			subdirs[name] = make(map[string]string)
		}
		subdirs[name][rest] = content
	}
	entries := make([]*object.TreeEntry, 0, len(direct)+len(subdirs))
	for name, content := range direct {
		mode := filemode.Regular
		if rest, ok := strings.CutPrefix(content, "link:"); ok {
			mode, content = filemode.Symlink, rest
		} else if rest, ok := strings.CutPrefix(content, "x:"); ok {
			mode, content = filemode.Executable, rest
		}
		oid, err := d.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, &object.TreeEntry{Name: name, Mode: mode, Hash: oid})
	}
	for name, sub := range subdirs {
		oid := fixtureSubtree(t, d, prefix+name+"/", sub)
		entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: oid})
	}
	tree := object.NewTree(d, entries)
	tree.Sort()
	oid, err := d.WriteTree(ctx, tree)
	require.NoError(t, err)
	return oid
}

// flatten reads back a result tree into path → content.
func flatten(t *testing.T, d *backend.Database, oid plumbing.Hash) map[string]string {
	t.Helper()
	ctx := context.Background()
	tree, err := d.Tree(ctx, oid)
	require.NoError(t, err)
	out := make(map[string]string)
	w := object.NewTreeWalker(tree, true, nil)
	defer w.Close()
	for {
		name, te, err := w.Next(ctx)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		if te.IsDir() {
			continue
		}
		br, err := d.Blob(ctx, te.Hash)
		require.NoError(t, err)
		content, err := io.ReadAll(br.Contents)
		require.NoError(t, err)
		require.NoError(t, br.Close())
		out[name] = string(content)
	}
}

func unmergedPaths(r *Result) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, c := range r.Unmerged {
		p := unmergedPath(c)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func runMerge(t *testing.T, d *backend.Database, base, side1, side2 map[string]string, opts *Options) *Result {
	t.Helper()
	o := fixtureTree(t, d, base)
	a := fixtureTree(t, d, side1)
	b := fixtureTree(t, d, side2)
	r, err := MergeTrees(context.Background(), d, o, a, b, opts)
	require.NoError(t, err)
	return r
}

func TestTrivialNoChange(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "b": "2\n"}
	o := fixtureTree(t, d, base)
	r := runMerge(t, d, base, base, base, nil)
	assert.True(t, r.Clean)
	assert.Empty(t, r.Unmerged)
	assert.Equal(t, o.Hash, r.NewTree)
}

func TestIndependentEdit(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"a": "2\n"},
		map[string]string{"a": "1\n"}, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"a": "2\n"}, flatten(t, d, r.NewTree))
}

func TestContentConflict(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"a": "2\n"},
		map[string]string{"a": "3\n"}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, []string{"a"}, unmergedPaths(r))
	c := r.Unmerged[0]
	assert.Equal(t, "a", c.Ancestor.Path)
	assert.Equal(t, "a", c.Our.Path)
	assert.Equal(t, "a", c.Their.Path)
	merged := flatten(t, d, r.NewTree)["a"]
	assert.Contains(t, merged, "<<<<<<< Branch1")
	assert.Contains(t, merged, ">>>>>>> Branch2")
	assert.Contains(t, merged, "2\n")
	assert.Contains(t, merged, "3\n")
}

func TestModifyDelete(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"a": "2\n"},
		map[string]string{}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, []string{"a"}, unmergedPaths(r))
	assert.Equal(t, map[string]string{"a": "2\n"}, flatten(t, d, r.NewTree))
}

func TestPlainRename(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"dir/a": "1\n"},
		map[string]string{"dir/b": "1\n"},
		map[string]string{"dir/a": "2\n"}, nil)
	assert.True(t, r.Clean, "messages: %v", r.Messages)
	assert.Equal(t, map[string]string{"dir/b": "2\n"}, flatten(t, d, r.NewTree))
}

func TestDirectoryRenameCarriesAdd(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"old/a": "1\n", "old/b": "2\n"},
		map[string]string{"new/a": "1\n", "new/b": "2\n"},
		map[string]string{"old/a": "1\n", "old/b": "2\n", "old/c": "3\n"}, nil)
	assert.True(t, r.Clean, "messages: %v", r.Messages)
	assert.Equal(t, map[string]string{
		"new/a": "1\n",
		"new/b": "2\n",
		"new/c": "3\n",
	}, flatten(t, d, r.NewTree))
}

func TestRenameRenameOneToTwo(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"b": "1\n"},
		map[string]string{"c": "1\n"}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, []string{"b", "c"}, unmergedPaths(r))
	files := flatten(t, d, r.NewTree)
	assert.Equal(t, "1\n", files["b"])
	assert.Equal(t, "1\n", files["c"])
	_, stillThere := files["a"]
	assert.False(t, stillThere, "base path must be resolved by removal")
}

func TestRenameRenameOneToOne(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n2\n3\n"},
		map[string]string{"b": "1\n2\nside1\n"},
		map[string]string{"b": "zero\n1\n2\n3\n"}, nil)
	assert.True(t, r.Clean, "messages: %v", r.Messages)
	assert.Equal(t, map[string]string{"b": "zero\n1\n2\nside1\n"}, flatten(t, d, r.NewTree))
}

func TestDirectoryFileConflict(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"a/x": "2\n"},
		map[string]string{"a": "3\n"}, nil)
	assert.False(t, r.Clean)
	files := flatten(t, d, r.NewTree)
	assert.Equal(t, "2\n", files["a/x"])
	assert.Equal(t, "3\n", files["a~Branch2"])
	assert.Equal(t, []string{"a~Branch2"}, unmergedPaths(r))
}

func TestModifyDeleteAfterRename(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"b": "1\nmodified\n"},
		map[string]string{}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, []string{"b"}, unmergedPaths(r))
	assert.Equal(t, map[string]string{"b": "1\nmodified\n"}, flatten(t, d, r.NewTree))
}

func TestRenameAddCollision(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n"},
		map[string]string{"b": "1\nmod\n"},
		map[string]string{"a": "1\n", "b": "other\n"}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, []string{"b"}, unmergedPaths(r))
	files := flatten(t, d, r.NewTree)
	_, stillThere := files["a"]
	assert.False(t, stillThere)
}

func TestCleanDeletion(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n", "b": "2\n"},
		map[string]string{"a": "1\n", "b": "2\n"},
		map[string]string{"a": "1\n"}, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"a": "1\n"}, flatten(t, d, r.NewTree))
}

func TestDirectoryDeletedOnOneSide(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"dir/a": "1\n", "dir/b": "2\n", "keep": "k\n"},
		map[string]string{"dir/a": "1\n", "dir/b": "2\n", "keep": "k\n"},
		map[string]string{"keep": "k\n"}, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, map[string]string{"keep": "k\n"}, flatten(t, d, r.NewTree))
}

func TestIdempotence(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "dir/b": "2\n", "dir/sub/c": "3\n"}
	side := map[string]string{"a": "1!\n", "dir/b": "2\n", "dir/sub/c": "3!\n", "dir/d": "4\n"}
	s := fixtureTree(t, d, side)
	r := runMerge(t, d, base, side, side, nil)
	assert.True(t, r.Clean)
	assert.Empty(t, r.Unmerged)
	assert.Equal(t, s.Hash, r.NewTree)
}

func TestFastForward(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "dir/b": "2\n"}
	side := map[string]string{"a": "2\n", "dir/b": "2\n", "new/c": "3\n"}
	s := fixtureTree(t, d, side)
	r := runMerge(t, d, base, base, side, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, s.Hash, r.NewTree)

	r = runMerge(t, d, base, side, base, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, s.Hash, r.NewTree)

	r = runMerge(t, d, base, base, base, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, fixtureTree(t, d, base).Hash, r.NewTree)
}

func TestCommutativeOutcomeShape(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "dir/f": "f\n"}
	side1 := map[string]string{"a": "2\n", "dir/f": "f\n", "dir/g": "g\n"}
	side2 := map[string]string{"a": "3\n", "dir/f": "f2\n"}
	r12 := runMerge(t, d, base, side1, side2, nil)
	r21 := runMerge(t, d, base, side2, side1, nil)
	assert.Equal(t, unmergedPaths(r12), unmergedPaths(r21))
	assert.Equal(t, r12.Clean, r21.Clean)
}

func TestDeterminism(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "old/x": "x\n", "old/y": "y\n"}
	side1 := map[string]string{"a": "2\n", "new/x": "x\n", "new/y": "y\n"}
	side2 := map[string]string{"a": "3\n", "old/x": "x\n", "old/y": "y2\n", "old/z": "z\n"}
	first := runMerge(t, d, base, side1, side2, nil)
	second := runMerge(t, d, base, side1, side2, nil)
	assert.Equal(t, first.NewTree, second.NewTree)
	assert.Equal(t, unmergedPaths(first), unmergedPaths(second))
}

func TestTreeObjectRoundTrip(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "1\n", "dir/b": "2\n", "dir/sub/c": "3\n"},
		map[string]string{"a": "1\n", "dir/b": "2!\n", "dir/sub/c": "3\n"},
		map[string]string{"a": "1!\n", "dir/b": "2\n", "dir/sub/c": "3\n", "dir/sub/d": "4\n"}, nil)
	require.True(t, r.Clean)
	ctx := context.Background()
	var walk func(oid plumbing.Hash)
	walk = func(oid plumbing.Hash) {
		tree, err := d.Tree(ctx, oid)
		require.NoError(t, err)
		rewritten, err := d.WriteTree(ctx, object.NewTree(d, tree.Entries))
		require.NoError(t, err)
		assert.Equal(t, oid, rewritten, "tree object must be the hash of its sorted entries")
		for _, e := range tree.Entries {
			if e.IsDir() {
				walk(e.Hash)
			}
		}
	}
	walk(r.NewTree)
}

func TestEntryConservation(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n", "keep": "k\n"}
	side1 := map[string]string{"b": "1\n", "keep": "k\n"}
	side2 := map[string]string{"c": "1\n", "keep": "k\n"}
	r := runMerge(t, d, base, side1, side2, nil)
	union := map[string]bool{"a": true, "b": true, "c": true, "keep": true}
	for path := range flatten(t, d, r.NewTree) {
		if !union[path] {
			assert.Contains(t, path, "~", "unexpected synthetic path %s", path)
		}
	}
}

func TestExecutableBitMerge(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"tool": "#!/bin/sh\n"},
		map[string]string{"tool": "x:#!/bin/sh\n"},
		map[string]string{"tool": "#!/bin/sh\necho hi\n"}, nil)
	assert.True(t, r.Clean, "messages: %v", r.Messages)
	ctx := context.Background()
	tree, err := d.Tree(ctx, r.NewTree)
	require.NoError(t, err)
	e, err := tree.Entry("tool")
	require.NoError(t, err)
	assert.Equal(t, filemode.Executable, e.Mode)
}

func TestSymlinkConflictTakesSideOne(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"l": "link:old"},
		map[string]string{"l": "link:one"},
		map[string]string{"l": "link:two"}, nil)
	assert.False(t, r.Clean)
	assert.Equal(t, map[string]string{"l": "one"}, flatten(t, d, r.NewTree))
}

func TestVariantOursTheirs(t *testing.T) {
	d := mustStore(t)
	base := map[string]string{"a": "1\n"}
	s1 := map[string]string{"a": "2\n"}
	s2 := map[string]string{"a": "3\n"}
	r := runMerge(t, d, base, s1, s2, &Options{Variant: MERGE_VARIANT_OURS})
	assert.True(t, r.Clean)
	assert.Equal(t, "2\n", flatten(t, d, r.NewTree)["a"])
	r = runMerge(t, d, base, s1, s2, &Options{Variant: MERGE_VARIANT_THEIRS})
	assert.True(t, r.Clean)
	assert.Equal(t, "3\n", flatten(t, d, r.NewTree)["a"])
}

func TestRenamesOff(t *testing.T) {
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"dir/a": "1\n"},
		map[string]string{"dir/b": "1\n"},
		map[string]string{"dir/a": "2\n"},
		&Options{DetectRenames: RenamesOff})
	// without rename detection this is a modify/delete plus an add
	assert.False(t, r.Clean)
	files := flatten(t, d, r.NewTree)
	assert.Equal(t, "1\n", files["dir/b"])
	assert.Equal(t, "2\n", files["dir/a"])
}

func TestInvariantsBetweenStages(t *testing.T) {
	d := mustStore(t)
	o := fixtureTree(t, d, map[string]string{"old/a": "1\n", "old/b": "2\n", "f": "x\n"})
	a := fixtureTree(t, d, map[string]string{"new/a": "1\n", "new/b": "2\n", "f": "x\n"})
	b := fixtureTree(t, d, map[string]string{"old/a": "1\n", "old/b": "2!\n", "old/c": "3\n", "f": "y\n"})
	opts := &Options{}
	m := newMerger(d, opts)
	ctx := context.Background()
	require.NoError(t, m.collect(ctx, o, a, b))
	require.NoError(t, m.verifyInvariants())
	require.NoError(t, m.detectRenames(ctx, o, a, b))
	require.NoError(t, m.verifyInvariants())
	require.NoError(t, m.processRenames(ctx))
	require.NoError(t, m.verifyInvariants())
	require.NoError(t, m.resolveEntries(ctx))
	require.NoError(t, m.verifyInvariants())
	_, err := m.writeTree(ctx)
	require.NoError(t, err)
}

func TestUniquePathDisambiguation(t *testing.T) {
	d := mustStore(t)
	m := newMerger(d, &Options{})
	m.table["p~feature_x"] = &entry{}
	got := m.uniquePath("p", "feature/x")
	assert.Equal(t, "p~feature_x_0", got)
	m.table[got] = &entry{}
	assert.Equal(t, "p~feature_x_1", m.uniquePath("p", "feature/x"))
}

func TestContentMergeIdenticalSides(t *testing.T) {
	// pins behavior the optional OID-equality shortcut must preserve
	d := mustStore(t)
	r := runMerge(t, d,
		map[string]string{"a": "base\n"},
		map[string]string{"a": "same\n"},
		map[string]string{"a": "same\n"}, nil)
	assert.True(t, r.Clean)
	assert.Equal(t, "same\n", flatten(t, d, r.NewTree)["a"])
}
