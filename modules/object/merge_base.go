// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"

	"github.com/ortscm/ort/modules/plumbing"
)

// MergeBase returns the best common ancestors of the receiver and the given
// commit: common ancestors that are not reachable from any other common
// ancestor. Several bases are possible with criss-cross histories.
func (c *Commit) MergeBase(ctx context.Context, other *Commit) ([]*Commit, error) {
	if c.Hash == other.Hash {
		return []*Commit{c}, nil
	}
	reach, err := c.reachableSet(ctx)
	if err != nil {
		return nil, err
	}

	// Walk the other history newest-first collecting every common
	// ancestor, then keep only those not reachable from another one.
	var candidates []*Commit
	iter := NewCommitIterCTime(other, nil, nil)
	defer iter.Close()
	err = iter.ForEach(ctx, func(cc *Commit) error {
		if reach[cc.Hash] {
			candidates = append(candidates, cc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return independents(ctx, candidates)
}

// IsAncestor reports whether the receiver is reachable from other.
func (c *Commit) IsAncestor(ctx context.Context, other *Commit) (bool, error) {
	reach, err := other.reachableSet(ctx)
	if err != nil {
		return false, err
	}
	return reach[c.Hash], nil
}

func (c *Commit) reachableSet(ctx context.Context) (map[plumbing.Hash]bool, error) {
	reach := make(map[plumbing.Hash]bool)
	iter := NewCommitIterCTime(c, nil, nil)
	defer iter.Close()
	err := iter.ForEach(ctx, func(cc *Commit) error {
		reach[cc.Hash] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reach, nil
}

// independents drops every candidate that is reachable from another
// candidate, leaving only the nearest common ancestors.
func independents(ctx context.Context, candidates []*Commit) ([]*Commit, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}
	keep := make([]*Commit, 0, len(candidates))
	for i, cc := range candidates {
		dominated := false
		for j, rival := range candidates {
			if i == j {
				continue
			}
			if cc.Hash == rival.Hash {
				dominated = j < i
				if dominated {
					break
				}
				continue
			}
			ok, err := cc.IsAncestor(ctx, rival)
			if err != nil {
				return nil, err
			}
			if ok {
				dominated = true
				break
			}
		}
		if !dominated {
			keep = append(keep, cc)
		}
	}
	return keep, nil
}
