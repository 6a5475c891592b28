// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"strings"

	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

// Position indices into per-path stage arrays.
const (
	posBase  = 0
	posSide1 = 1
	posSide2 = 2
)

// Presence bitmask values, bit i set means present at position i.
const (
	maskBase  uint8 = 1 << posBase
	maskSide1 uint8 = 1 << posSide1
	maskSide2 uint8 = 1 << posSide2
)

// VersionInfo identifies one object at one position: a mode plus an OID.
type VersionInfo struct {
	Mode filemode.FileMode `json:"mode"`
	OID  plumbing.Hash     `json:"oid"`
}

func (v VersionInfo) isNull() bool {
	return v.Mode == filemode.Empty
}

func (v VersionInfo) equal(other VersionInfo) bool {
	return v.Mode == other.Mode && v.OID == other.OID
}

// MergedInfo is the resolved form of a path.
type MergedInfo struct {
	// Result is the chosen version; the zero value with IsNull set means
	// the path vanishes from the result tree.
	Result VersionInfo
	// DirName is the interned name of the containing directory; two
	// entries share a parent iff their DirName pointers are identical.
	DirName *string
	// BasenameOffset is the byte offset of the basename within the path.
	BasenameOffset int
	IsNull         bool
	Clean          bool
}

// conflictInfo carries the provisional per-side state of a path that the
// collector could not resolve outright.
type conflictInfo struct {
	// Stages holds base, side1, side2 versions, in that order.
	Stages [3]VersionInfo
	// Pathnames holds the path at each position; it differs from the
	// table key only after a rename reinterpreted the position.
	Pathnames [3]string
	// Filemask bit i: a non-directory at position i. Dirmask bit i: a
	// directory at position i. The two never share a bit.
	Filemask uint8
	Dirmask  uint8
	// MatchMask records which of the pairs {base,side1} (3),
	// {base,side2} (5), {side1,side2} (6) are identical.
	MatchMask uint8
	// DFConflict flags a file colliding with a directory at this path.
	DFConflict bool
	// PathConflict flags rename-induced path-level conflicts.
	PathConflict bool
	// Processed is set once the rename processor has consumed the entry.
	Processed bool
	// Kind records the conflict classification for reporting.
	Kind int
}

func (ci *conflictInfo) mask() uint8 {
	return ci.Filemask | ci.Dirmask
}

// entry is one path-table record: a resolved MergedInfo, or a provisional
// one still carrying conflictInfo. Collector-resolved entries never allocate
// conflict state.
type entry struct {
	MergedInfo
	conflict *conflictInfo
}

func (e *entry) resolved() bool {
	return e.conflict == nil
}

// resolve finalizes the entry in place, dropping the provisional state.
func (e *entry) resolve(result VersionInfo, clean bool) {
	e.Result = result
	e.IsNull = result.isNull()
	e.Clean = clean
	e.conflict = nil
}

// pathTable maps full path (no leading or trailing slash) to its record.
type pathTable map[string]*entry

// dirPool interns directory-name strings so that DirName comparisons are
// pointer comparisons.
type dirPool struct {
	names map[string]*string
}

func newDirPool() *dirPool {
	root := ""
	return &dirPool{names: map[string]*string{"": &root}}
}

func (p *dirPool) intern(dir string) *string {
	if s, ok := p.names[dir]; ok {
		return s
	}
	owned := dir
	p.names[dir] = &owned
	return &owned
}

// splitPath returns the directory part and the basename offset of a full
// path.
func splitPath(path string) (string, int) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", 0
	}
	return path[:i], i + 1
}

// basename returns the path's final component.
func basename(path string) string {
	_, off := splitPath(path)
	return path[off:]
}
