// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"io"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/ortscm/ort/modules/plumbing"
)

// CommitIter is a generic closable interface for iterating over commits.
type CommitIter interface {
	Next(ctx context.Context) (*Commit, error)
	ForEach(ctx context.Context, cb func(*Commit) error) error
	Close()
}

// commitIteratorByCTime implements a commit walker that orders commits by
// committer timestamp, newest first.
type commitIteratorByCTime struct {
	// seenExternal contains commits that have been seen in other iterators and should be skipped
	seenExternal map[plumbing.Hash]bool
	// seen tracks commits that have already been processed to avoid duplicates
	seen map[plumbing.Hash]bool
	// heap is a max-heap ordered by committer timestamp (newest first)
	heap *binaryheap.Heap
}

// NewCommitIterCTime returns a CommitIter that walks the commit history,
// starting at the given commit and visiting its parents while preserving
// Committer Time order.
//
// The iterator will visit each commit only once. Missing commits are silently
// skipped.
func NewCommitIterCTime(
	c *Commit,
	seenExternal map[plumbing.Hash]bool,
	ignore []plumbing.Hash,
) CommitIter {
	seen := make(map[plumbing.Hash]bool)
	for _, h := range ignore {
		seen[h] = true
	}

	heap := binaryheap.NewWith(func(a, b any) int {
		if a.(*Commit).Committer.When.Before(b.(*Commit).Committer.When) {
			return 1
		}
		return -1
	})
	heap.Push(c)

	return &commitIteratorByCTime{
		seenExternal: seenExternal,
		seen:         seen,
		heap:         heap,
	}
}

// Next returns the next commit in committer timestamp order (newest first).
// It pops from the heap, marks the commit as seen, and pushes all unseen
// parents to the heap.
func (w *commitIteratorByCTime) Next(ctx context.Context) (*Commit, error) {
	var c *Commit
	for {
		cIn, ok := w.heap.Pop()
		if !ok {
			return nil, io.EOF
		}
		c = cIn.(*Commit)

		if w.seen[c.Hash] || w.seenExternal[c.Hash] {
			continue
		}

		w.seen[c.Hash] = true

		for _, h := range c.Parents {
			if w.seen[h] || w.seenExternal[h] {
				continue
			}
			pc, err := GetCommit(ctx, c.b, h)
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			w.heap.Push(pc)
		}

		return c, nil
	}
}

// ForEach iterates through all commits in committer timestamp order, calling
// the callback for each one. Iteration stops if the callback returns an error
// or ErrStop.
func (w *commitIteratorByCTime) ForEach(ctx context.Context, cb func(*Commit) error) error {
	for {
		c, err := w.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		err = cb(c)
		if err == plumbing.ErrStop {
			break
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op for the CTime iterator as it doesn't hold any external resources.
func (w *commitIteratorByCTime) Close() {}
