// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

// File pair statuses, mirroring the single-letter diff status codes.
const (
	StatusAdd    = 'A'
	StatusDelete = 'D'
	StatusModify = 'M'
	StatusRename = 'R'
)

// FilePair is one change between the base tree and a side tree. Renames
// carry both paths and a similarity score; adds, deletes and modifies carry
// their one path in both path fields.
type FilePair struct {
	Status  byte
	OldPath string
	NewPath string
	OldMode filemode.FileMode
	NewMode filemode.FileMode
	OldOID  plumbing.Hash
	NewOID  plumbing.Hash
	// Score is the rename similarity in percent; exact renames score 100.
	Score int
}

// DetectOptions bound the rename detector.
type DetectOptions struct {
	// Limit bounds similarity scoring: when the unpaired deletes times
	// the unpaired adds exceed Limit squared, only exact renames are found.
	Limit int
	// Score is the minimum similarity, in percent, for an inexact
	// rename. Zero selects the default.
	Score int
}

const (
	defaultRenameLimit = 1000
	defaultRenameScore = 50
	// similarity scoring reads blobs; anything bigger is exact-only
	similarityByteLimit = 8 * 1024 * 1024
)

// RenameDetector produces the file pairs between the base tree and one side.
// The engine consumes pairs; it does not do its own similarity scoring.
type RenameDetector interface {
	Diff(ctx context.Context, store ObjectStore, base, side *object.Tree, opts *DetectOptions) ([]*FilePair, error)
}

// detector is the in-tree implementation: a recursive tree diff, exact
// rename pairing by object identity, then bounded content-similarity
// pairing.
type detector struct{}

// NewDetector returns the default rename detector.
func NewDetector() RenameDetector {
	return &detector{}
}

type flatEntry struct {
	path string
	mode filemode.FileMode
	oid  plumbing.Hash
}

func flattenTree(ctx context.Context, t *object.Tree, into map[string]*flatEntry) error {
	if t == nil {
		return nil
	}
	w := object.NewTreeWalker(t, true, nil)
	defer w.Close()
	for {
		name, te, err := w.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if te.IsDir() {
			continue
		}
		into[name] = &flatEntry{path: name, mode: te.Mode, oid: te.Hash}
	}
}

func (d *detector) Diff(ctx context.Context, store ObjectStore, base, side *object.Tree, opts *DetectOptions) ([]*FilePair, error) {
	if opts == nil {
		opts = &DetectOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRenameLimit
	}
	minScore := opts.Score
	if minScore <= 0 {
		minScore = defaultRenameScore
	}

	baseFiles := make(map[string]*flatEntry)
	sideFiles := make(map[string]*flatEntry)
	if err := flattenTree(ctx, base, baseFiles); err != nil {
		return nil, err
	}
	if err := flattenTree(ctx, side, sideFiles); err != nil {
		return nil, err
	}

	var deleted, added []*flatEntry
	var pairs []*FilePair
	for path, be := range baseFiles {
		se, ok := sideFiles[path]
		if !ok {
			deleted = append(deleted, be)
			continue
		}
		if se.mode != be.mode || se.oid != be.oid {
			pairs = append(pairs, &FilePair{
				Status:  StatusModify,
				OldPath: path, NewPath: path,
				OldMode: be.mode, NewMode: se.mode,
				OldOID: be.oid, NewOID: se.oid,
			})
		}
	}
	for path, se := range sideFiles {
		if _, ok := baseFiles[path]; !ok {
			added = append(added, se)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].path < deleted[j].path })
	sort.Slice(added, func(i, j int) bool { return added[i].path < added[j].path })

	// exact renames first: identical blob and compatible mode
	byOID := make(map[plumbing.Hash][]*flatEntry)
	for _, de := range deleted {
		byOID[de.oid] = append(byOID[de.oid], de)
	}
	pairedOld := make(map[string]bool)
	pairedNew := make(map[string]bool)
	for _, ae := range added {
		cands := byOID[ae.oid]
		for _, de := range cands {
			if pairedOld[de.path] || !de.mode.SameType(ae.mode) {
				continue
			}
			pairs = append(pairs, &FilePair{
				Status:  StatusRename,
				OldPath: de.path, NewPath: ae.path,
				OldMode: de.mode, NewMode: ae.mode,
				OldOID: de.oid, NewOID: ae.oid,
				Score: 100,
			})
			pairedOld[de.path] = true
			pairedNew[ae.path] = true
			break
		}
	}

	// content similarity for what is left, bounded by the rename limit
	restDeleted := unpaired(deleted, pairedOld)
	restAdded := unpaired(added, pairedNew)
	if len(restDeleted)*len(restAdded) <= limit*limit {
		if err := d.similarityPairs(ctx, store, restDeleted, restAdded, minScore, &pairs, pairedOld, pairedNew); err != nil {
			return nil, err
		}
	}

	for _, de := range deleted {
		if !pairedOld[de.path] {
			pairs = append(pairs, &FilePair{
				Status:  StatusDelete,
				OldPath: de.path, NewPath: de.path,
				OldMode: de.mode, OldOID: de.oid,
			})
		}
	}
	for _, ae := range added {
		if !pairedNew[ae.path] {
			pairs = append(pairs, &FilePair{
				Status:  StatusAdd,
				OldPath: ae.path, NewPath: ae.path,
				NewMode: ae.mode, NewOID: ae.oid,
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].NewPath < pairs[j].NewPath })
	return pairs, nil
}

func unpaired(entries []*flatEntry, taken map[string]bool) []*flatEntry {
	rest := entries[:0:0]
	for _, e := range entries {
		if !taken[e.path] {
			rest = append(rest, e)
		}
	}
	return rest
}

func (d *detector) similarityPairs(ctx context.Context, store ObjectStore, deleted, added []*flatEntry, minScore int, pairs *[]*FilePair, pairedOld, pairedNew map[string]bool) error {
	if len(deleted) == 0 || len(added) == 0 {
		return nil
	}
	lineSets := make(map[plumbing.Hash]map[string]int)
	lines := func(oid plumbing.Hash) (map[string]int, error) {
		if s, ok := lineSets[oid]; ok {
			return s, nil
		}
		content, err := readBlobCapped(ctx, store, oid, similarityByteLimit)
		if err != nil {
			return nil, err
		}
		if content == nil {
			// over similarityByteLimit: not scored
			lineSets[oid] = nil
			return nil, nil
		}
		s := make(map[string]int)
		for _, line := range strings.SplitAfter(string(content), "\n") {
			if line != "" {
				s[line]++
			}
		}
		lineSets[oid] = s
		return s, nil
	}
	for _, de := range deleted {
		if !de.mode.IsRegular() {
			continue
		}
		dl, err := lines(de.oid)
		if err != nil {
			return err
		}
		if dl == nil {
			continue
		}
		bestScore := 0
		var best *flatEntry
		for _, ae := range added {
			if pairedNew[ae.path] || !ae.mode.IsRegular() {
				continue
			}
			al, err := lines(ae.oid)
			if err != nil {
				return err
			}
			if al == nil {
				continue
			}
			score := similarity(dl, al)
			if score > bestScore {
				bestScore, best = score, ae
			}
		}
		if best != nil && bestScore >= minScore {
			*pairs = append(*pairs, &FilePair{
				Status:  StatusRename,
				OldPath: de.path, NewPath: best.path,
				OldMode: de.mode, NewMode: best.mode,
				OldOID: de.oid, NewOID: best.oid,
				Score: bestScore,
			})
			pairedOld[de.path] = true
			pairedNew[best.path] = true
		}
	}
	return nil
}

// similarity scores two multisets of lines in percent.
func similarity(a, b map[string]int) int {
	var common, total int
	for line, n := range a {
		total += n
		if bn, ok := b[line]; ok {
			common += min(n, bn)
		}
	}
	for _, n := range b {
		total += n
	}
	if total == 0 {
		return 100
	}
	return 200 * common / total
}

func readBlobCapped(ctx context.Context, store ObjectStore, oid plumbing.Hash, limit int64) ([]byte, error) {
	br, err := store.Blob(ctx, oid)
	if err != nil {
		return nil, err
	}
	defer br.Close()
	if br.Size > limit {
		return nil, nil
	}
	content, err := io.ReadAll(br.Contents)
	if err != nil {
		return nil, err
	}
	return content, nil
}
