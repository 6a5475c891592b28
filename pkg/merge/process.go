// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"sort"
)

type sidedPair struct {
	pair *FilePair
	side int
}

// processRenames walks the combined, sorted rename set and mutates the
// path-table entries for rename/rename(1→2), rename/rename(1→1),
// rename/add, rename/delete, and plain renames.
func (m *merger) processRenames(ctx context.Context) error {
	var combined []sidedPair
	for side := 1; side <= 2; side++ {
		for _, p := range m.renamesForSide[side] {
			if p.Status == StatusRename {
				combined = append(combined, sidedPair{pair: p, side: side})
			}
		}
	}
	sort.Slice(combined, func(i, j int) bool {
		if combined[i].pair.OldPath != combined[j].pair.OldPath {
			return combined[i].pair.OldPath < combined[j].pair.OldPath
		}
		return combined[i].side < combined[j].side
	})

	for i := 0; i < len(combined); {
		j := i + 1
		for j < len(combined) && combined[j].pair.OldPath == combined[i].pair.OldPath {
			j++
		}
		group := combined[i:j]
		i = j
		var err error
		switch {
		case len(group) == 2 && group[0].pair.NewPath != group[1].pair.NewPath:
			err = m.processRenameRename1to2(ctx, group[0].pair, group[1].pair)
		case len(group) == 2:
			err = m.processRenameRename1to1(ctx, group[0].pair, group[1].pair)
		default:
			err = m.processSingleRename(ctx, group[0].pair, group[0].side)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// baseStageFor recovers the base version of a renamed path. The collector
// drops the old entry when the other side matched the base, so the pair
// itself is the fallback.
func (m *merger) baseStageFor(p *FilePair) VersionInfo {
	if e := m.table[p.OldPath]; e != nil && e.conflict != nil && e.conflict.Filemask&maskBase != 0 {
		return e.conflict.Stages[posBase]
	}
	return VersionInfo{Mode: p.OldMode, OID: p.OldOID}
}

// clearRenameSource marks the old path resolved by removal: the stages the
// rename consumed are stripped, and an entry left with nothing becomes a
// clean deletion.
func (m *merger) clearRenameSource(p *FilePair, bits uint8) {
	e := m.table[p.OldPath]
	if e == nil || e.conflict == nil {
		return
	}
	ci := e.conflict
	for i := 0; i < 3; i++ {
		bit := uint8(1) << i
		if bits&bit == 0 || ci.Filemask&bit == 0 {
			continue
		}
		ci.Filemask &^= bit
		ci.Stages[i] = VersionInfo{}
		ci.Pathnames[i] = ""
	}
	recomputeMatchMask(ci)
	if ci.mask() == 0 {
		ci.Processed = true
		e.resolve(VersionInfo{}, true)
	}
}

// targetConflict returns the provisional state of the rename target,
// materializing one for targets the collector never saw.
func (m *merger) targetConflict(path string, side int) *conflictInfo {
	e := m.table[path]
	if e == nil {
		dir, _ := splitPath(path)
		m.ensureParents(path, side)
		m.insertProvisional(path, dir, &conflictInfo{})
		e = m.table[path]
	}
	if e.conflict == nil {
		ci := &conflictInfo{}
		if !e.IsNull {
			// reopen a collector-resolved target: its clean result
			// was present on both sides
			ci.Stages[posSide1] = e.Result
			ci.Stages[posSide2] = e.Result
			ci.Pathnames[posSide1] = path
			ci.Pathnames[posSide2] = path
			ci.Filemask = maskSide1 | maskSide2
			recomputeMatchMask(ci)
		}
		e.conflict = ci
		e.Clean = false
	}
	return e.conflict
}

// processRenameRename1to2: both sides renamed the same path to different
// places. The content merge lands at both targets, both are marked
// path-conflicted, and the source resolves by removal.
func (m *merger) processRenameRename1to2(ctx context.Context, p1, p2 *FilePair) error {
	base := m.baseStageFor(p1)
	side1 := VersionInfo{Mode: p1.NewMode, OID: p1.NewOID}
	side2 := VersionInfo{Mode: p2.NewMode, OID: p2.NewOID}
	names := [3]string{p1.OldPath, p1.NewPath, p2.NewPath}
	merged, _, _, err := m.mergeContent(ctx, base, side1, side2, names)
	if err != nil {
		return err
	}
	m.out.report(m.result, "CONFLICT (rename/rename): %s renamed to %s in %s and to %s in %s.",
		p1.OldPath, p1.NewPath, m.opts.Branch1, p2.NewPath, m.opts.Branch2)

	t1 := m.targetConflict(p1.NewPath, 1)
	t1.Stages[posSide1] = merged
	t1.Pathnames[posSide1] = p1.NewPath
	t1.Filemask |= maskSide1
	t1.PathConflict = true
	t1.Kind = CONFLICT_RENAME_RENAME
	recomputeMatchMask(t1)

	t2 := m.targetConflict(p2.NewPath, 2)
	t2.Stages[posSide2] = merged
	t2.Pathnames[posSide2] = p2.NewPath
	t2.Filemask |= maskSide2
	t2.PathConflict = true
	t2.Kind = CONFLICT_RENAME_RENAME
	recomputeMatchMask(t2)

	m.clearRenameSource(p1, maskBase|maskSide1|maskSide2)
	return nil
}

// processRenameRename1to1: both sides renamed the path to the same target;
// install the base stage there and let the resolver run an ordinary
// three-way content merge.
func (m *merger) processRenameRename1to1(ctx context.Context, p1, p2 *FilePair) error {
	base := m.baseStageFor(p1)
	tci := m.targetConflict(p1.NewPath, 1)
	tci.Stages[posBase] = base
	tci.Pathnames[posBase] = p1.OldPath
	tci.Filemask |= maskBase
	recomputeMatchMask(tci)
	m.clearRenameSource(p1, maskBase|maskSide1|maskSide2)
	return nil
}

// processSingleRename handles a rename performed by one side only,
// distinguishing collisions with the other side's content at the target and
// deletions of the source.
func (m *merger) processSingleRename(ctx context.Context, p *FilePair, side int) error {
	other := 3 - side
	otherBit := uint8(1) << other
	sideBit := uint8(1) << side

	oldEntry := m.table[p.OldPath]
	otherHasOld := true
	if oldEntry != nil && oldEntry.conflict != nil {
		otherHasOld = oldEntry.conflict.mask()&otherBit != 0
	}
	base := m.baseStageFor(p)
	otherOld := base
	if oldEntry != nil && oldEntry.conflict != nil && oldEntry.conflict.Filemask&otherBit != 0 {
		otherOld = oldEntry.conflict.Stages[other]
	}

	tci := m.targetConflict(p.NewPath, side)
	collision := tci.mask()&otherBit != 0

	switch {
	case collision && otherHasOld:
		// rename/add: merge {base, renamed content, other side's file
		// at the target} into this side's stage; what remains looks
		// like add/add.
		sideVer := tci.Stages[side]
		otherVer := tci.Stages[other]
		var names [3]string
		names[posBase] = p.OldPath
		names[side] = p.NewPath
		names[other] = p.NewPath
		var vers [3]VersionInfo
		vers[posBase] = base
		vers[side] = sideVer
		vers[other] = otherVer
		merged, _, _, err := m.mergeContent(ctx, vers[posBase], vers[posSide1], vers[posSide2], names)
		if err != nil {
			return err
		}
		m.out.report(m.result, "CONFLICT (rename involved in collision): %s renamed to %s in %s, where %s added a file.",
			p.OldPath, p.NewPath, branchName(m.opts, side), branchName(m.opts, other))
		tci.Stages[side] = merged
		tci.Kind = CONFLICT_RENAME_COLLIDES
		recomputeMatchMask(tci)
		m.clearRenameSource(p, maskBase|sideBit)
	case collision:
		// rename/add/delete: the source is gone on the other side;
		// leave the target looking like an add/add.
		m.out.report(m.result, "CONFLICT (rename/delete): %s renamed to %s in %s and deleted in %s.",
			p.OldPath, p.NewPath, branchName(m.opts, side), branchName(m.opts, other))
		tci.Kind = CONFLICT_RENAME_DELETE
		m.clearRenameSource(p, maskBase|sideBit)
	default:
		// plain rename, possibly with modify/delete on the other side:
		// the base and other-side stages follow the file to its new
		// home.
		tci.Stages[posBase] = base
		tci.Pathnames[posBase] = p.OldPath
		tci.Filemask |= maskBase
		if otherHasOld {
			tci.Stages[other] = otherOld
			tci.Pathnames[other] = p.OldPath
			tci.Filemask |= otherBit
		}
		recomputeMatchMask(tci)
		m.clearRenameSource(p, maskBase|sideBit|otherBit)
	}
	return nil
}

func branchName(opts *Options, side int) string {
	if side == 1 {
		return opts.Branch1
	}
	return opts.Branch2
}
