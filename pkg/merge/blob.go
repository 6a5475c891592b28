// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
	"github.com/ortscm/ort/modules/strengthen"
)

const binarySniffLen = 8000

// mergeContent merges one path's three versions into a single VersionInfo.
// It resolves modes first, prefers regular files over symlinks and
// submodules over either on type mismatches, and delegates regular-file
// content to the line-level merger.
func (m *merger) mergeContent(ctx context.Context, o, a, b VersionInfo, names [3]string) (VersionInfo, bool, int, error) {
	if m.depth == 0 {
		switch m.opts.Variant {
		case MERGE_VARIANT_OURS:
			return a, true, 0, nil
		case MERGE_VARIANT_THEIRS:
			return b, true, 0, nil
		}
	}

	if !a.Mode.SameType(b.Mode) {
		return m.mergeTypeMismatch(a, b), false, CONFLICT_DISTINCT_TYPES, nil
	}

	switch a.Mode.Type() {
	case filemode.Symlink:
		// take side1; clean only when the sides agree
		return a, a.equal(b), CONFLICT_CONTENTS, nil
	case filemode.Submodule:
		oid, resolved, err := m.opts.Submodules.Merge(ctx, names[posSide1], o.OID, a.OID, b.OID)
		if err != nil {
			return VersionInfo{}, false, 0, err
		}
		if !resolved {
			m.out.report(m.result, "CONFLICT (submodule): merge of submodule %s not possible; suggested resolution %s.", names[posSide1], oid)
			return a, false, CONFLICT_SUBMODULE, nil
		}
		return VersionInfo{Mode: a.Mode, OID: oid}, true, 0, nil
	}

	newMode, modeClean := resolveModes(o.Mode, a.Mode, b.Mode)

	textO, err := m.readBlobText(ctx, o)
	if err != nil {
		return VersionInfo{}, false, 0, err
	}
	textA, err := m.readBlobText(ctx, a)
	if err != nil {
		return VersionInfo{}, false, 0, err
	}
	textB, err := m.readBlobText(ctx, b)
	if err != nil {
		return VersionInfo{}, false, 0, err
	}
	if isBinary(textO) || isBinary(textA) || isBinary(textB) {
		m.out.report(m.result, "warning: Cannot merge binary files: %s (%s vs. %s)", names[posSide1], m.opts.Branch1, m.opts.Branch2)
		return VersionInfo{Mode: newMode, OID: a.OID}, false, CONFLICT_BINARY, nil
	}

	if m.opts.Renormalize {
		textO = renormalize(textO)
		textA = renormalize(textA)
		textB = renormalize(textB)
	}
	mergedText, hadConflict, err := m.opts.TextMerge(ctx, textO, textA, textB, &TextMergeOptions{
		LabelO:     m.opts.Ancestor,
		LabelA:     m.label(m.opts.Branch1, names[posSide1], names),
		LabelB:     m.label(m.opts.Branch2, names[posSide2], names),
		Style:      m.opts.ConflictStyle,
		MarkerSize: m.markerSize(),
		XdlOpts:    m.opts.XdlOpts,
	})
	if err != nil {
		return VersionInfo{}, false, 0, err
	}
	oid, err := m.store.WriteBlob(ctx, []byte(mergedText))
	if err != nil {
		return VersionInfo{}, false, 0, err
	}
	kind := CONFLICT_CONTENTS
	if o.isNull() {
		kind = CONFLICT_ADD_ADD
	}
	if !modeClean && !hadConflict {
		kind = CONFLICT_DISTINCT_TYPES
	}
	return VersionInfo{Mode: newMode, OID: oid}, !hadConflict && modeClean, kind, nil
}

// resolveModes merges the three modes: a side that kept the base mode
// yields to the other side; two regulars disagreeing on the execute bit
// keep side1's and stay unclean unless side2 kept the base mode.
func resolveModes(base, a, b filemode.FileMode) (filemode.FileMode, bool) {
	if a == b || a == base {
		return b, true
	}
	if b == base {
		return a, true
	}
	return a, false
}

// mergeTypeMismatch picks the survivor when the sides disagree on object
// type: the submodule over either, otherwise the regular file over the
// symlink. The preference is kept for behavioral compatibility.
func (m *merger) mergeTypeMismatch(a, b VersionInfo) VersionInfo {
	switch {
	case a.Mode.Type() == filemode.Submodule:
		return a
	case b.Mode.Type() == filemode.Submodule:
		return b
	case a.Mode.IsRegular() || a.Mode == filemode.Executable:
		return a
	case b.Mode.IsRegular() || b.Mode == filemode.Executable:
		return b
	}
	return a
}

func (m *merger) label(branch, path string, names [3]string) string {
	if names[posBase] != "" && path != "" && path != names[posBase] {
		return strengthen.StrCat(branch, ":", path)
	}
	return branch
}

func (m *merger) readBlobText(ctx context.Context, v VersionInfo) (string, error) {
	if v.isNull() || v.OID == plumbing.ZeroHash {
		return "", nil
	}
	br, err := m.store.Blob(ctx, v.OID)
	if err != nil {
		return "", err
	}
	defer br.Close()
	content, err := io.ReadAll(br.Contents)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func renormalize(text string) string {
	if !strings.Contains(text, "\r\n") {
		return text
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func isBinary(text string) bool {
	sniff := text
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte([]byte(sniff), 0) >= 0
}
