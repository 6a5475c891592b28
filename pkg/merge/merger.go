// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/ortscm/ort/modules/diff3"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/trace"
)

// merger is one engine instance: single-threaded, one execution of every
// stage per merge, all state owned here and dropped when the merge returns.
type merger struct {
	store ObjectStore
	opts  *Options
	out   *output

	table pathTable
	dirs  *dirPool

	// dirRenameCandidates maps a directory present in the base and
	// exactly one side to the side that may have renamed it.
	dirRenameCandidates map[string]int

	// renamesForSide collects the surviving rename pairs per side.
	renamesForSide [3][]*FilePair

	// depth counts recursive virtual-base merges; extraMarker widens
	// conflict markers inside them.
	depth       int
	extraMarker int

	result *Result
}

func newMerger(store ObjectStore, opts *Options) *merger {
	opts.sanitize()
	m := &merger{
		store:               store,
		opts:                opts,
		table:               make(pathTable),
		dirs:                newDirPool(),
		dirRenameCandidates: make(map[string]int),
		result:              &Result{},
	}
	m.out = &output{buffered: opts.BufferOutput}
	if opts.Verbosity > 0 && m.depth == 0 {
		m.out.w = opts.Diagnostics
	}
	return m
}

func (m *merger) markerSize() int {
	return diff3.DefaultMarkerSize + m.extraMarker
}

// MergeTrees runs the non-recursive three-way tree merge: collect every
// path, reinterpret renames, resolve each entry, then write the result tree
// bottom-up.
func MergeTrees(ctx context.Context, store ObjectStore, base, side1, side2 *object.Tree, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	m := newMerger(store, opts)
	return m.mergeTrees(ctx, base, side1, side2)
}

func (m *merger) mergeTrees(ctx context.Context, base, side1, side2 *object.Tree) (*Result, error) {
	var err error
	if side2, err = m.shiftSubtree(ctx, side2); err != nil {
		return nil, err
	}
	if err := m.collect(ctx, base, side1, side2); err != nil {
		return nil, err
	}
	if m.opts.DetectRenames != RenamesOff {
		if err := m.detectRenames(ctx, base, side1, side2); err != nil {
			return nil, err
		}
		if err := m.processRenames(ctx); err != nil {
			return nil, err
		}
	}
	if err := m.resolveEntries(ctx); err != nil {
		return nil, err
	}
	oid, err := m.writeTree(ctx)
	if err != nil {
		return nil, err
	}
	m.result.NewTree = oid
	m.result.Clean = len(m.result.Unmerged) == 0
	sort.Slice(m.result.Unmerged, func(i, j int) bool {
		return unmergedPath(m.result.Unmerged[i]) < unmergedPath(m.result.Unmerged[j])
	})
	m.out.flush()
	trace.NewDebuger(m.opts.Verbosity > 1).DbgPrint("merge-tree: %s clean=%v unmerged=%d", oid, m.result.Clean, len(m.result.Unmerged))
	return m.result, nil
}

func unmergedPath(c *Conflict) string {
	if c.Our.Path != "" {
		return c.Our.Path
	}
	if c.Their.Path != "" {
		return c.Their.Path
	}
	return c.Ancestor.Path
}

// shiftSubtree reroots side2 for subtree-merge mode.
func (m *merger) shiftSubtree(ctx context.Context, side2 *object.Tree) (*object.Tree, error) {
	if m.opts.SubtreeShift == "" {
		return side2, nil
	}
	shifted, err := side2.Tree(ctx, m.opts.SubtreeShift)
	if err != nil {
		return nil, fmt.Errorf("subtree shift '%s': %w", m.opts.SubtreeShift, err)
	}
	return shifted, nil
}

// conflictFor renders an entry's provisional stages as a reportable record.
func (m *merger) conflictFor(path string, ci *conflictInfo, kind int) *Conflict {
	c := &Conflict{Types: kind}
	fill := func(ce *ConflictEntry, pos int) {
		if ci.mask()&(1<<pos) == 0 {
			return
		}
		ce.Path = ci.Pathnames[pos]
		ce.Mode = ci.Stages[pos].Mode
		ce.Hash = ci.Stages[pos].OID
	}
	fill(&c.Ancestor, posBase)
	fill(&c.Our, posSide1)
	fill(&c.Their, posSide2)
	return c
}

// registerUnmerged records an unclean resolution.
func (m *merger) registerUnmerged(path string, ci *conflictInfo, kind int) {
	m.result.Unmerged = append(m.result.Unmerged, m.conflictFor(path, ci, kind))
}

// verifyInvariants walks the table and reports the first broken structural
// invariant; it backs the property tests and costs nothing in production
// paths because only tests call it.
func (m *merger) verifyInvariants() error {
	for path, e := range m.table {
		if e.conflict == nil {
			continue
		}
		ci := e.conflict
		if ci.Filemask&ci.Dirmask != 0 {
			return fmt.Errorf("path %s: filemask %b overlaps dirmask %b", path, ci.Filemask, ci.Dirmask)
		}
		if ci.mask() == 0 && !ci.Processed {
			return fmt.Errorf("path %s: empty mask", path)
		}
		for i := 0; i < 3; i++ {
			present := ci.mask()&(1<<i) != 0
			if present && ci.Pathnames[i] == "" {
				return fmt.Errorf("path %s: position %d present without pathname", path, i)
			}
			if !present && ci.Pathnames[i] != "" {
				return fmt.Errorf("path %s: position %d absent with pathname", path, i)
			}
		}
		if dir, _ := splitPath(path); dir != "" {
			parent, ok := m.table[dir]
			if !ok {
				return fmt.Errorf("path %s: missing parent entry %s", path, dir)
			}
			if parent.DirName == e.DirName {
				return fmt.Errorf("path %s: parent shares DirName pointer", path)
			}
		}
	}
	for path, e := range m.table {
		dir, _ := splitPath(path)
		for sibling, se := range m.table {
			if sdir, _ := splitPath(sibling); sdir == dir && se.DirName != e.DirName {
				return fmt.Errorf("paths %s and %s share directory %s with distinct DirName pointers", path, sibling, dir)
			}
		}
	}
	return nil
}
