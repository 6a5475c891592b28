// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ortscm/ort/modules/strengthen"
)

// resolveEntries selects the final resolution for every path-table entry, in
// reverse lexicographic order so that every directory's children are decided
// before the directory itself.
func (m *merger) resolveEntries(ctx context.Context) error {
	paths := make([]string, 0, len(m.table))
	for p := range m.table {
		paths = append(paths, p)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	liveDirs := make(map[string]bool)
	for _, path := range paths {
		e, ok := m.table[path]
		if !ok {
			// relocated away by a D/F split
			continue
		}
		if err := m.resolveOne(ctx, path, e, liveDirs); err != nil {
			return err
		}
	}
	return nil
}

func markLive(liveDirs map[string]bool, path string) {
	dir, _ := splitPath(path)
	liveDirs[dir] = true
}

func (m *merger) resolveOne(ctx context.Context, path string, e *entry, liveDirs map[string]bool) error {
	if e.resolved() {
		if !e.IsNull {
			markLive(liveDirs, path)
		}
		return nil
	}
	ci := e.conflict

	if ci.Filemask == 0 {
		// placeholder for a recursed-into directory; its tree is built
		// bottom-up by the writer
		e.resolve(VersionInfo{}, true)
		if liveDirs[path] {
			markLive(liveDirs, path)
		}
		return nil
	}

	if ci.DFConflict {
		if !liveDirs[path] {
			// the directory chose nothing; plain file merge remains
			ci.DFConflict = false
		} else if ci.Filemask == maskBase {
			// file only in the base, superseded by the directory
			ci.Filemask = 0
			e.resolve(VersionInfo{}, true)
			if liveDirs[path] {
				markLive(liveDirs, path)
			}
			return nil
		} else {
			return m.splitDFConflict(ctx, path, e, liveDirs)
		}
	}

	result, clean, kind, err := m.selectResolution(ctx, path, ci)
	if err != nil {
		return err
	}
	clean = clean && !ci.PathConflict && !ci.DFConflict
	if !clean {
		if ci.Kind != 0 {
			kind = ci.Kind
		}
		m.registerUnmerged(path, ci, kind)
	}
	e.resolve(result, clean)
	if !e.IsNull {
		markLive(liveDirs, path)
	}
	return nil
}

// splitDFConflict relocates the file half of a directory/file collision to a
// disambiguated path; the original entry becomes a pure directory.
func (m *merger) splitDFConflict(ctx context.Context, path string, e *entry, liveDirs map[string]bool) error {
	ci := e.conflict
	side := 1
	if ci.Filemask&maskSide1 == 0 {
		side = 2
	}
	newPath := m.uniquePath(path, branchName(m.opts, side))
	m.out.report(m.result, "CONFLICT (file/directory): directory in the way of %s from %s; moving it to %s instead.",
		path, branchName(m.opts, side), newPath)

	moved := &conflictInfo{
		Stages:       ci.Stages,
		Filemask:     ci.Filemask,
		PathConflict: true,
		Kind:         CONFLICT_FILE_DIRECTORY,
	}
	for i := 0; i < 3; i++ {
		if moved.Filemask&(1<<i) != 0 {
			moved.Pathnames[i] = newPath
		}
	}
	recomputeMatchMask(moved)
	dir, _ := splitPath(newPath)
	m.insertProvisional(newPath, dir, moved)

	// the original path keeps only its directory role
	ci.Filemask = 0
	for i := 0; i < 3; i++ {
		if ci.Dirmask&(1<<i) == 0 {
			ci.Stages[i] = VersionInfo{}
			ci.Pathnames[i] = ""
		}
	}
	ci.DFConflict = false
	e.resolve(VersionInfo{}, true)
	if liveDirs[path] {
		markLive(liveDirs, path)
	}
	// the relocated entry sorts before this one in reverse order, so it
	// must be resolved inline
	return m.resolveOne(ctx, newPath, m.table[newPath], liveDirs)
}

// selectResolution implements the per-path resolution ladder over the
// file masks.
func (m *merger) selectResolution(ctx context.Context, path string, ci *conflictInfo) (VersionInfo, bool, int, error) {
	switch {
	case ci.MatchMask != 0:
		var result VersionInfo
		switch ci.MatchMask {
		case maskSide1 | maskSide2:
			result = ci.Stages[posSide1]
		case maskBase | maskSide1:
			result = ci.Stages[posSide2]
		default: // base and side2 match
			result = ci.Stages[posSide1]
		}
		if ci.MatchMask != maskSide1|maskSide2 && ci.Filemask == ci.MatchMask {
			result = VersionInfo{}
		}
		return result, true, 0, nil

	case ci.Filemask >= 6:
		// both sides present; three-way content merge
		result, clean, kind, err := m.mergeContent(ctx, ci.Stages[posBase], ci.Stages[posSide1], ci.Stages[posSide2], ci.Pathnames)
		if err != nil {
			return VersionInfo{}, false, 0, err
		}
		if !clean && kind == CONFLICT_CONTENTS {
			m.out.report(m.result, "CONFLICT (content): Merge conflict in %s", path)
		} else if clean {
			m.out.report(m.result, "Auto-merging %s", path)
		}
		return result, clean, kind, nil

	case ci.Filemask == maskBase|maskSide1 || ci.Filemask == maskBase|maskSide2:
		// modify/delete
		survivor := posSide1
		deleter := m.opts.Branch2
		modifier := m.opts.Branch1
		if ci.Filemask&maskSide1 == 0 {
			survivor = posSide2
			deleter, modifier = m.opts.Branch1, m.opts.Branch2
		}
		kind := CONFLICT_MODIFY_DELETE
		verb := "modified"
		if ci.Pathnames[posBase] != path {
			kind = CONFLICT_RENAME_DELETE
			verb = "renamed"
		}
		m.out.report(m.result, "CONFLICT (%s): %s deleted in %s and %s in %s.",
			conflictNoun(kind), path, deleter, verb, modifier)
		return ci.Stages[survivor], false, kind, nil

	case ci.Filemask == maskSide1 || ci.Filemask == maskSide2:
		// added on one side
		side := posSide1
		if ci.Filemask == maskSide2 {
			side = posSide2
		}
		return ci.Stages[side], true, ci.Kind, nil

	case ci.Filemask == maskBase:
		// deleted on both sides
		return VersionInfo{}, true, 0, nil
	}
	return VersionInfo{}, false, 0, fmt.Errorf("ort: unresolvable mask %b at %s", ci.Filemask, path)
}

func conflictNoun(kind int) string {
	if kind == CONFLICT_RENAME_DELETE {
		return "rename/delete"
	}
	return "modify/delete"
}

// uniquePath appends "~" plus the flattened branch name, then numeric
// suffixes until the name is unused.
func (m *merger) uniquePath(path, branch string) string {
	candidate := strengthen.StrCat(path, "~", flatBranchName(branch))
	if _, ok := m.table[candidate]; !ok {
		return candidate
	}
	for i := 0; ; i++ {
		next := fmt.Sprintf("%s_%d", candidate, i)
		if _, ok := m.table[next]; !ok {
			return next
		}
	}
}

func flatBranchName(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c == '/' {
			_ = b.WriteByte('_')
			continue
		}
		_, _ = b.WriteRune(c)
	}
	return b.String()
}
