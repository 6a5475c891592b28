// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/trace"
)

const (
	virtualBranch1 = "Temporary merge branch 1"
	virtualBranch2 = "Temporary merge branch 2"
)

// MergeCommits merges two commits. When more than one merge base exists the
// bases are folded pairwise into a virtual merge base first; an empty bases
// slice means "compute them from the commit graph".
func MergeCommits(ctx context.Context, store ObjectStore, c1, c2 *object.Commit, bases []*object.Commit, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	m := newMerger(store, opts)
	return m.mergeCommits(ctx, c1, c2, bases)
}

func (m *merger) mergeCommits(ctx context.Context, c1, c2 *object.Commit, bases []*object.Commit) (*Result, error) {
	var err error
	if len(bases) == 0 {
		if bases, err = c1.MergeBase(ctx, c2); err != nil {
			return nil, err
		}
	}
	baseTree, err := m.resolveAncestorTree(ctx, bases)
	if err != nil {
		return nil, err
	}
	t1, err := c1.Root(ctx)
	if err != nil {
		return nil, err
	}
	t2, err := c2.Root(ctx)
	if err != nil {
		return nil, err
	}
	if t1.Equal(t2) {
		m.result.NewTree = t1.Hash
		m.result.Clean = true
		return m.result, nil
	}
	return m.mergeTrees(ctx, baseTree, t1, t2)
}

// resolveAncestorTree folds the merge bases pairwise: each step recursively
// merges the accumulated virtual base with the next one and wraps the result
// tree in a virtual commit whose parents are the two inputs. Conflicts in
// the inner merges are accepted as-is; the provisional resolutions stand in
// for the unmergeable parts.
func (m *merger) resolveAncestorTree(ctx context.Context, bases []*object.Commit) (*object.Tree, error) {
	switch len(bases) {
	case 0:
		t := object.NewTree(nil, nil)
		if _, err := m.store.WriteTree(ctx, t); err != nil {
			return nil, err
		}
		t.Bind(m.store)
		return m.store.Tree(ctx, t.Hash)
	case 1:
		return bases[0].Root(ctx)
	}
	virtual := bases[0]
	for _, next := range bases[1:] {
		merged, err := m.mergeVirtualBase(ctx, virtual, next)
		if err != nil {
			return nil, err
		}
		virtual = merged
	}
	return virtual.Root(ctx)
}

// mergeVirtualBase runs the inner recursive merge of two bases and returns
// the virtual commit standing for their union. The virtual commit is never
// persisted.
func (m *merger) mergeVirtualBase(ctx context.Context, prev, next *object.Commit) (*object.Commit, error) {
	innerBases, err := prev.MergeBase(ctx, next)
	if err != nil {
		return nil, err
	}
	sub := newMerger(m.store, &Options{
		Branch1:       virtualBranch1,
		Branch2:       virtualBranch2,
		DetectRenames: m.opts.DetectRenames,
		DirRenames:    m.opts.DirRenames,
		RenameLimit:   m.opts.RenameLimit,
		RenameScore:   m.opts.RenameScore,
		ConflictStyle: m.opts.ConflictStyle,
		Detector:      m.opts.Detector,
		Submodules:    m.opts.Submodules,
		TextMerge:     m.opts.TextMerge,
		BufferOutput:  true,
	})
	sub.depth = m.depth + 1
	if sub.extraMarker = m.extraMarker * 2; sub.extraMarker == 0 {
		sub.extraMarker = 2
	}
	sub.out.w = nil // inner diagnostics are suppressed
	r, err := sub.mergeCommits(ctx, prev, next, innerBases)
	if err != nil {
		return nil, err
	}
	trace.NewDebuger(m.opts.Verbosity > 1).DbgPrint("virtual merge base of %s and %s: %s", prev.Hash, next.Hash, r.NewTree)
	now := time.Unix(0, 0).UTC()
	sig := object.Signature{Name: "virtual", Email: "virtual", When: now}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{prev.Hash, next.Hash},
		Tree:      r.NewTree,
		Message:   fmt.Sprintf("virtual merge base of %s and %s", prev.Hash, next.Hash),
	}
	c.Hash = object.Hash(c)
	c.Bind(m.store)
	return c, nil
}
