// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"strings"

	"github.com/ortscm/ort/modules/object"
)

// dirRename is one inferred directory relocation, picked by strict majority
// over the rename pairs leaving the directory.
type dirRename struct {
	newDir string
	// possibleNewDirs counts every observed target directory.
	possibleNewDirs map[string]int
	nonUnique       bool
}

// detectRenames obtains the per-side file pairs from the detector, infers
// directory renames, and rewrites pair targets (and the affected path-table
// entries) so that later stages see the post-rename layout.
func (m *merger) detectRenames(ctx context.Context, base, side1, side2 *object.Tree) error {
	dopts := &DetectOptions{Limit: m.opts.RenameLimit, Score: m.opts.RenameScore}
	for side, tree := range map[int]*object.Tree{1: side1, 2: side2} {
		pairs, err := m.opts.Detector.Diff(ctx, m.store, base, tree, dopts)
		if err != nil {
			return err
		}
		// only adds and renames matter: adds are eligible targets of an
		// inferred directory rename, renames drive everything else
		kept := pairs[:0:0]
		for _, p := range pairs {
			if p.Status == StatusAdd || p.Status == StatusRename {
				kept = append(kept, p)
			}
		}
		m.renamesForSide[side] = kept
	}
	if m.opts.DirRenames == DirRenamesNone {
		return nil
	}
	var dirRenames [3]map[string]*dirRename
	for side := 1; side <= 2; side++ {
		dirRenames[side] = m.inferDirRenames(side)
	}
	m.applyDirRenames(dirRenames)
	return nil
}

// inferDirRenames builds the directory-rename map for one side by majority
// vote over that side's rename pairs.
func (m *merger) inferDirRenames(side int) map[string]*dirRename {
	counts := make(map[string]*dirRename)
	for _, p := range m.renamesForSide[side] {
		if p.Status != StatusRename {
			continue
		}
		oldDir, newDir, ok := splitDirRename(p.OldPath, p.NewPath)
		if !ok || oldDir == newDir {
			continue
		}
		if !m.isDirRenameSource(oldDir, side) {
			continue
		}
		dr, ok := counts[oldDir]
		if !ok {
			dr = &dirRename{possibleNewDirs: make(map[string]int)}
			counts[oldDir] = dr
		}
		dr.possibleNewDirs[newDir]++
	}
	for _, dr := range counts {
		best, bestCount, ties := "", 0, 0
		for dir, n := range dr.possibleNewDirs {
			switch {
			case n > bestCount:
				best, bestCount, ties = dir, n, 1
			case n == bestCount:
				ties++
			}
		}
		dr.newDir = best
		dr.nonUnique = ties > 1
	}
	return counts
}

// splitDirRename strips the maximal common trailing component run from both
// paths; the remaining prefixes are the directory pair. When even the
// basename changed, the plain directory names are used.
func splitDirRename(oldPath, newPath string) (string, string, bool) {
	oldComps := strings.Split(oldPath, "/")
	newComps := strings.Split(newPath, "/")
	k := 0
	for k < len(oldComps) && k < len(newComps) &&
		oldComps[len(oldComps)-1-k] == newComps[len(newComps)-1-k] {
		k++
	}
	if k == 0 {
		od, _ := splitPath(oldPath)
		nd, _ := splitPath(newPath)
		return od, nd, true
	}
	if k == len(oldComps) && k == len(newComps) {
		return "", "", false
	}
	return strings.Join(oldComps[:len(oldComps)-k], "/"),
		strings.Join(newComps[:len(newComps)-k], "/"), true
}

// isDirRenameSource reports whether dir (or an ancestor) existed in the base
// and vanished on the given side.
func (m *merger) isDirRenameSource(dir string, side int) bool {
	for d := dir; d != ""; d, _ = splitPath(d) {
		if s, ok := m.dirRenameCandidates[d]; ok && s == side {
			return true
		}
	}
	return false
}

// applyDirRenames rewrites each side's add/rename targets through the other
// side's directory-rename map, collision-checked first.
func (m *merger) applyDirRenames(dirRenames [3]map[string]*dirRename) {
	for side := 1; side <= 2; side++ {
		other := 3 - side
		renames := dirRenames[other]
		if len(renames) == 0 {
			continue
		}

		// Precompute, per prospective target, the set of sources that
		// would land there; collided targets are never rewritten.
		proposals := make(map[*FilePair]string)
		targetSources := make(map[string]int)
		for _, p := range m.renamesForSide[side] {
			target, ok := m.proposeTarget(p.NewPath, renames, dirRenames[side])
			if !ok {
				continue
			}
			proposals[p] = target
			targetSources[target]++
		}

		for _, p := range m.renamesForSide[side] {
			target, ok := proposals[p]
			if !ok {
				continue
			}
			if targetSources[target] > 1 {
				m.out.report(m.result, "CONFLICT (directory rename collision): multiple paths mapped to %s; keeping %s in place.", target, p.NewPath)
				m.flagPathConflict(p.NewPath, CONFLICT_DIR_RENAME_COLLISION)
				continue
			}
			if occupied := m.table[target]; occupied != nil && m.occupiedBySide(occupied, side) {
				m.out.report(m.result, "CONFLICT (file in way of directory rename): %s blocks moving %s; keeping it in place.", target, p.NewPath)
				m.flagPathConflict(p.NewPath, CONFLICT_DIR_RENAME_FILE_IN_WAY)
				continue
			}
			if m.opts.DirRenames == DirRenamesConflict {
				m.out.report(m.result, "CONFLICT (directory rename suggested): %s may belong in %s.", p.NewPath, target)
				m.flagPathConflict(p.NewPath, CONFLICT_DIR_RENAME_SUGGESTED)
				continue
			}
			m.out.report(m.result, "Path updated: %s renamed to %s due to directory rename on the other side of history.", p.NewPath, target)
			m.moveSideStage(p.NewPath, target, side)
			p.NewPath = target
		}
	}
}

// proposeTarget walks newPath's ancestors, longest prefix first, against the
// applicable directory-rename map. Exclusions: a directory the pair's own
// side also renamed is skipped with a warning.
func (m *merger) proposeTarget(newPath string, renames, exclusions map[string]*dirRename) (string, bool) {
	dir, _ := splitPath(newPath)
	for d := dir; ; {
		if dr, ok := renames[d]; ok {
			if dr.nonUnique {
				m.out.report(m.result, "CONFLICT (directory rename split): unclear where to move %s; no majority target for %s.", newPath, d)
				return "", false
			}
			if _, both := exclusions[d]; both {
				m.out.report(m.result, "Note: directory rename of %s skipped since it was renamed on both sides.", d)
				return "", false
			}
			rel := strings.TrimPrefix(newPath, d+"/")
			if d == "" {
				rel = newPath
			}
			if dr.newDir == "" {
				// rename into the repository root
				return rel, true
			}
			return dr.newDir + "/" + rel, true
		}
		if d == "" {
			return "", false
		}
		d, _ = splitPath(d)
	}
}

func (m *merger) occupiedBySide(e *entry, side int) bool {
	if e.conflict == nil {
		// collector-resolved entries exist on every side that kept them
		return !e.IsNull
	}
	return e.conflict.mask()&(1<<side) != 0
}

func (m *merger) flagPathConflict(path string, kind int) {
	e := m.table[path]
	if e == nil || e.conflict == nil {
		return
	}
	e.conflict.PathConflict = true
	if e.conflict.Kind == 0 {
		e.conflict.Kind = kind
	}
}

// moveSideStage relocates one side's version of a path to a new key,
// merging into whatever the other side already has there and creating
// synthetic parent-directory entries along the way.
func (m *merger) moveSideStage(oldKey, newKey string, side int) {
	bit := uint8(1) << side
	src := m.table[oldKey]
	if src == nil || src.conflict == nil || src.conflict.mask()&bit == 0 {
		return
	}
	sci := src.conflict
	stage := sci.Stages[side]
	isDir := sci.Dirmask&bit != 0
	sci.Filemask &^= bit
	sci.Dirmask &^= bit
	sci.Stages[side] = VersionInfo{}
	sci.Pathnames[side] = ""
	sci.DFConflict = sci.Filemask != 0 && sci.Dirmask != 0
	recomputeMatchMask(sci)
	if sci.mask() == 0 {
		delete(m.table, oldKey)
	}

	dst := m.table[newKey]
	if dst == nil {
		dir, _ := splitPath(newKey)
		m.ensureParents(newKey, side)
		m.insertProvisional(newKey, dir, &conflictInfo{})
		dst = m.table[newKey]
	}
	if dst.conflict == nil {
		// the target was already cleanly resolved; reopen it so the
		// moved stage participates
		ci := &conflictInfo{}
		if !dst.IsNull {
			ci.Stages[posSide1] = dst.Result
			ci.Stages[posSide2] = dst.Result
			ci.Pathnames[posSide1] = newKey
			ci.Pathnames[posSide2] = newKey
			ci.Filemask = maskSide1 | maskSide2
		}
		dst.conflict = ci
		dst.Clean = false
	}
	dci := dst.conflict
	dci.Stages[side] = stage
	dci.Pathnames[side] = newKey
	if isDir {
		dci.Dirmask |= bit
	} else {
		dci.Filemask |= bit
	}
	dci.DFConflict = dci.Filemask != 0 && dci.Dirmask != 0
	recomputeMatchMask(dci)
	dst.Clean = false
}

// ensureParents inserts synthetic placeholder entries for every missing
// ancestor directory of path, keeping DirName pointer-equality intact.
func (m *merger) ensureParents(path string, side int) {
	bit := uint8(1) << side
	dir, _ := splitPath(path)
	var missing []string
	for d := dir; d != ""; d, _ = splitPath(d) {
		if _, ok := m.table[d]; ok {
			break
		}
		missing = append(missing, d)
	}
	// create shallowest-first so each child sees its parent in place
	for i := len(missing) - 1; i >= 0; i-- {
		d := missing[i]
		parent, _ := splitPath(d)
		ci := &conflictInfo{Dirmask: bit}
		ci.Pathnames[side] = d
		m.insertProvisional(d, parent, ci)
	}
}

func recomputeMatchMask(ci *conflictInfo) {
	eq := func(i, j int) bool {
		bi, bj := uint8(1)<<i, uint8(1)<<j
		return ci.mask()&bi != 0 && ci.mask()&bj != 0 && ci.Stages[i].equal(ci.Stages[j])
	}
	switch {
	case eq(posBase, posSide1):
		ci.MatchMask = maskBase | maskSide1
	case eq(posBase, posSide2):
		ci.MatchMask = maskBase | maskSide2
	case eq(posSide1, posSide2):
		ci.MatchMask = maskSide1 | maskSide2
	default:
		ci.MatchMask = 0
	}
}
