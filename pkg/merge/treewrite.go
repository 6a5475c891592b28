// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"sort"
	"strings"

	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

type accEntry struct {
	name string
	vi   VersionInfo
}

type writeFrame struct {
	dir       *string
	dirString string
	start     int
}

// writeTree iterates the resolved entries in reverse lexicographic order,
// building subtree objects bottom-up: within each directory every child is
// visited before the directory itself, so a closing frame always holds the
// finished contents of its subtree. Subtree boundaries are decided by
// DirName pointer identity alone.
func (m *merger) writeTree(ctx context.Context) (plumbing.Hash, error) {
	paths := make([]string, 0, len(m.table))
	for p := range m.table {
		paths = append(paths, p)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	stack := []writeFrame{{dir: m.dirs.intern(""), dirString: ""}}
	var acc []accEntry

	closeTop := func() (plumbing.Hash, error) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		oid, n, err := m.writeSubtree(ctx, acc[top.start:])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		acc = acc[:top.start]
		if len(stack) == 0 {
			return oid, nil
		}
		if n > 0 {
			acc = append(acc, accEntry{
				name: basename(top.dirString),
				vi:   VersionInfo{Mode: filemode.Dir, OID: oid},
			})
		}
		return plumbing.ZeroHash, nil
	}

	for _, path := range paths {
		e := m.table[path]
		if e.IsNull || e.Result.Mode == filemode.Empty {
			// deleted paths and directory placeholders vanish; their
			// subtrees are represented by the closing frames
			continue
		}
		for {
			top := &stack[len(stack)-1]
			if top.dir == e.DirName {
				break
			}
			dir := path[:max(e.BasenameOffset-1, 0)]
			if isAncestorDir(top.dirString, dir) {
				// descend: open a frame per intermediate component
				rel := dir
				if top.dirString != "" {
					rel = dir[len(top.dirString)+1:]
				}
				prefix := top.dirString
				for _, comp := range strings.Split(rel, "/") {
					if prefix == "" {
						prefix = comp
					} else {
						prefix = prefix + "/" + comp
					}
					stack = append(stack, writeFrame{
						dir:       m.dirs.intern(prefix),
						dirString: prefix,
						start:     len(acc),
					})
				}
				continue
			}
			if _, err := closeTop(); err != nil {
				return plumbing.ZeroHash, err
			}
		}
		acc = append(acc, accEntry{name: path[e.BasenameOffset:], vi: e.Result})
	}

	for {
		oid, err := closeTop()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if len(stack) == 0 {
			return oid, nil
		}
	}
}

// writeSubtree materializes one directory's accumulated entries as a tree
// object and reports how many entries it holds. An empty tree is still
// written; closeTop leaves an empty subtree out of its parent.
func (m *merger) writeSubtree(ctx context.Context, entries []accEntry) (plumbing.Hash, int, error) {
	tes := make([]*object.TreeEntry, 0, len(entries))
	for _, ae := range entries {
		tes = append(tes, &object.TreeEntry{Name: ae.name, Mode: ae.vi.Mode, Hash: ae.vi.OID})
	}
	t := object.NewTree(nil, tes)
	t.Sort()
	oid, err := m.store.WriteTree(ctx, t)
	return oid, len(tes), err
}

func isAncestorDir(parent, child string) bool {
	if parent == "" {
		return child != ""
	}
	return strings.HasPrefix(child, parent+"/")
}
