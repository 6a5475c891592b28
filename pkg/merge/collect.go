// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"sort"

	"github.com/ortscm/ort/modules/object"
)

// collect performs the synchronized preorder traversal of the three trees,
// producing one path-table entry per path it could not skip, and resolving
// the cheap cases inline before any rename work.
func (m *merger) collect(ctx context.Context, base, side1, side2 *object.Tree) error {
	return m.collectTrees(ctx, "", [3]*object.Tree{base, side1, side2}, false)
}

func (m *merger) collectTrees(ctx context.Context, dirpath string, trees [3]*object.Tree, insideRenamed bool) error {
	type trio [3]*object.TreeEntry
	names := make(map[string]*trio)
	order := make([]string, 0, 16)
	for i, t := range trees {
		if t == nil {
			continue
		}
		for _, te := range t.Entries {
			slot, ok := names[te.Name]
			if !ok {
				slot = &trio{}
				names[te.Name] = slot
				order = append(order, te.Name)
			}
			slot[i] = te
		}
	}
	sort.Strings(order)
	for _, name := range order {
		fullpath := name
		if dirpath != "" {
			fullpath = dirpath + "/" + name
		}
		if err := m.collectPath(ctx, fullpath, dirpath, *names[name], insideRenamed); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) collectPath(ctx context.Context, fullpath, dirpath string, tes [3]*object.TreeEntry, insideRenamed bool) error {
	var mask, dirmask, filemask uint8
	var vi [3]VersionInfo
	for i, te := range tes {
		if te == nil {
			continue
		}
		mask |= 1 << i
		if te.IsDir() {
			dirmask |= 1 << i
		} else {
			filemask |= 1 << i
		}
		vi[i] = VersionInfo{Mode: te.Mode, OID: te.Hash}
	}

	eq := func(i, j int) bool {
		return mask&(1<<i) != 0 && mask&(1<<j) != 0 && vi[i].equal(vi[j])
	}

	switch {
	case mask == 7 && eq(posBase, posSide1) && eq(posBase, posSide2):
		// All three identical; the subtree is unchanged even if this is
		// a directory.
		m.insertResolved(fullpath, dirpath, vi[posSide1])
		return nil
	case filemask == 7 && eq(posSide1, posSide2):
		// Three files, sides match.
		m.insertResolved(fullpath, dirpath, vi[posSide1])
		return nil
	case !insideRenamed && eq(posBase, posSide1):
		if mask&maskSide2 == 0 {
			// deleted on side2, nothing from side1 to carry
			return nil
		}
		if dirmask != 0 {
			// Cannot early-resolve around a directory: drop base and
			// side1 from the masks and keep walking side2, which may
			// hold new files under a rename-target directory.
			return m.insertReduced(ctx, fullpath, dirpath, tes, vi, filemask, dirmask, posSide2, insideRenamed)
		}
		m.insertResolved(fullpath, dirpath, vi[posSide2])
		return nil
	case !insideRenamed && eq(posBase, posSide2):
		if mask&maskSide1 == 0 {
			return nil
		}
		if dirmask != 0 {
			return m.insertReduced(ctx, fullpath, dirpath, tes, vi, filemask, dirmask, posSide1, insideRenamed)
		}
		m.insertResolved(fullpath, dirpath, vi[posSide1])
		return nil
	}

	// Fallback: record the provisional conflict state.
	var matchMask uint8
	switch {
	case eq(posBase, posSide1):
		matchMask = maskBase | maskSide1
	case eq(posBase, posSide2):
		matchMask = maskBase | maskSide2
	case eq(posSide1, posSide2):
		matchMask = maskSide1 | maskSide2
	}
	ci := &conflictInfo{
		Filemask:   filemask,
		Dirmask:    dirmask,
		MatchMask:  matchMask,
		DFConflict: filemask != 0 && dirmask != 0,
	}
	for i := 0; i < 3; i++ {
		if mask&(1<<i) != 0 {
			ci.Stages[i] = vi[i]
			ci.Pathnames[i] = fullpath
		}
	}
	m.insertProvisional(fullpath, dirpath, ci)

	if dirmask == 0 {
		return nil
	}
	// A directory that existed in the base and on exactly one side is a
	// candidate source for directory-rename detection on the other side.
	// The root directory never counts.
	inside := insideRenamed
	switch dirmask {
	case maskBase | maskSide1:
		m.dirRenameCandidates[fullpath] = 2
		inside = true
	case maskBase | maskSide2:
		m.dirRenameCandidates[fullpath] = 1
		inside = true
	}
	subtrees, err := m.loadSubtrees(ctx, tes, dirmask, 7)
	if err != nil {
		return err
	}
	return m.collectTrees(ctx, fullpath, subtrees, inside)
}

// insertReduced records the conflict entry left over when one side matched
// the base around a directory, then recurses into the surviving side only.
func (m *merger) insertReduced(ctx context.Context, fullpath, dirpath string, tes [3]*object.TreeEntry, vi [3]VersionInfo, filemask, dirmask uint8, keep int, insideRenamed bool) error {
	keepBit := uint8(1) << keep
	ci := &conflictInfo{
		Filemask: filemask & keepBit,
		Dirmask:  dirmask & keepBit,
	}
	if ci.mask() != 0 {
		ci.Stages[keep] = vi[keep]
		ci.Pathnames[keep] = fullpath
	}
	m.insertProvisional(fullpath, dirpath, ci)
	switch dirmask {
	case maskBase | maskSide1:
		m.dirRenameCandidates[fullpath] = 2
	case maskBase | maskSide2:
		m.dirRenameCandidates[fullpath] = 1
	}
	if dirmask&keepBit == 0 {
		return nil
	}
	subtrees, err := m.loadSubtrees(ctx, tes, dirmask, keepBit)
	if err != nil {
		return err
	}
	return m.collectTrees(ctx, fullpath, subtrees, insideRenamed)
}

// loadSubtrees resolves the tree object at every directory position whose
// bit is in want, sharing descriptors between positions with equal OIDs.
func (m *merger) loadSubtrees(ctx context.Context, tes [3]*object.TreeEntry, dirmask, want uint8) ([3]*object.Tree, error) {
	var subtrees [3]*object.Tree
	for i, te := range tes {
		if te == nil || dirmask&(1<<i) == 0 || want&(1<<i) == 0 {
			continue
		}
		for j := 0; j < i; j++ {
			if subtrees[j] != nil && tes[j] != nil && tes[j].Hash == te.Hash {
				subtrees[i] = subtrees[j]
				break
			}
		}
		if subtrees[i] != nil {
			continue
		}
		t, err := m.store.Tree(ctx, te.Hash)
		if err != nil {
			return subtrees, err
		}
		subtrees[i] = t
	}
	return subtrees, nil
}

func (m *merger) insertResolved(fullpath, dirpath string, result VersionInfo) {
	_, off := splitPath(fullpath)
	m.table[fullpath] = &entry{
		MergedInfo: MergedInfo{
			Result:         result,
			DirName:        m.dirs.intern(dirpath),
			BasenameOffset: off,
			Clean:          true,
		},
	}
}

func (m *merger) insertProvisional(fullpath, dirpath string, ci *conflictInfo) {
	_, off := splitPath(fullpath)
	m.table[fullpath] = &entry{
		MergedInfo: MergedInfo{
			DirName:        m.dirs.intern(dirpath),
			BasenameOffset: off,
		},
		conflict: ci,
	}
}
