// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ortscm/ort/modules/diff3"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

// RenameDetection selects how file renames are obtained from the detector.
type RenameDetection int

const (
	// RenamesOn is the default.
	RenamesOn RenameDetection = iota
	RenamesOff
	// RenamesCopy is accepted for compatibility and clamped to RenamesOn;
	// copy detection is not performed.
	RenamesCopy
)

// DirRenameDetection selects what happens when a directory rename is
// inferred for a path added on the other side.
type DirRenameDetection int

const (
	// DirRenamesTrue moves such paths into the renamed directory.
	DirRenamesTrue DirRenameDetection = iota
	// DirRenamesConflict reports a conflict instead of moving the path.
	DirRenamesConflict
	// DirRenamesNone disables directory rename inference.
	DirRenamesNone
)

const (
	MERGE_VARIANT_NORMAL = 0
	MERGE_VARIANT_OURS   = 1
	MERGE_VARIANT_THEIRS = 2
)

// Conflict kinds, surfaced on unmerged entries and in diagnostics.
const (
	INFO_AUTO_MERGING = iota
	CONFLICT_CONTENTS
	CONFLICT_BINARY
	CONFLICT_FILE_DIRECTORY
	CONFLICT_DISTINCT_TYPES
	CONFLICT_MODIFY_DELETE
	CONFLICT_ADD_ADD
	// Regular rename
	CONFLICT_RENAME_RENAME
	CONFLICT_RENAME_COLLIDES
	CONFLICT_RENAME_DELETE
	CONFLICT_SUBMODULE
	CONFLICT_DIR_RENAME_SUGGESTED
	INFO_DIR_RENAME_APPLIED
	// Special directory rename cases
	INFO_DIR_RENAME_SKIPPED_DUE_TO_RERENAME
	CONFLICT_DIR_RENAME_FILE_IN_WAY
	CONFLICT_DIR_RENAME_COLLISION
	CONFLICT_DIR_RENAME_SPLIT
)

// TextMergeOptions parameterize one content merge: marker labels and width,
// conflict style, and the opaque xdl flag word handed to external mergers.
type TextMergeOptions struct {
	LabelO, LabelA, LabelB string
	Style                  int
	MarkerSize             int
	// XdlOpts is passed through untouched; the in-tree merger ignores it.
	XdlOpts uint64
}

// TextMerger is the low-level three-way content merger for regular files.
// It returns the merged bytes and whether the merge had conflict hunks.
type TextMerger func(ctx context.Context, o, a, b string, opts *TextMergeOptions) (string, bool, error)

// DefaultTextMerger merges with the in-tree diff3 implementation.
func DefaultTextMerger(ctx context.Context, o, a, b string, opts *TextMergeOptions) (string, bool, error) {
	return diff3.Merge(ctx, &diff3.MergeOptions{
		TextO:  o,
		TextA:  a,
		TextB:  b,
		LabelO: opts.LabelO,
		LabelA: opts.LabelA,
		LabelB: opts.LabelB,
		Style:  opts.Style, MarkerSize: opts.MarkerSize,
	})
}

// SubmoduleMerger resolves gitlink entries. It reports the chosen commit and
// whether the resolution is unique; an unresolved submodule surfaces as an
// unmerged entry with the suggestion embedded in the diagnostic.
type SubmoduleMerger interface {
	Merge(ctx context.Context, path string, o, a, b plumbing.Hash) (plumbing.Hash, bool, error)
}

type trivialSubmoduleMerger struct{}

func (trivialSubmoduleMerger) Merge(ctx context.Context, path string, o, a, b plumbing.Hash) (plumbing.Hash, bool, error) {
	switch {
	case a == b:
		return a, true, nil
	case o == a:
		return b, true, nil
	case o == b:
		return a, true, nil
	}
	// no search for a plausible merge: suggest side 1
	return a, false, nil
}

// ObjectStore is the content-addressed store the engine reads trees and
// blobs from and writes the result into. Writes are idempotent by content
// hash.
type ObjectStore interface {
	object.Backend
	WriteBlob(ctx context.Context, content []byte) (plumbing.Hash, error)
	WriteTree(ctx context.Context, t *object.Tree) (plumbing.Hash, error)
	Exists(oid plumbing.Hash) bool
}

// WorktreeAdapter is the optional collaborator that applies a finished merge
// to a working copy and index. The engine itself never touches either.
type WorktreeAdapter interface {
	Apply(ctx context.Context, result *Result) error
}

// Options control a single merge invocation.
type Options struct {
	// Branch1, Branch2 and Ancestor label conflict markers and messages.
	Branch1  string
	Branch2  string
	Ancestor string

	DetectRenames RenameDetection
	DirRenames    DirRenameDetection
	// RenameLimit and RenameScore bound the rename detector.
	RenameLimit int
	RenameScore int

	// Variant forces conflicting content toward one side at the outermost
	// call; recursive calls always merge normally.
	Variant int

	// ConflictStyle selects merge, diff3 or zdiff3 markers.
	ConflictStyle int

	// Renormalize converts CRLF line endings to LF on all three inputs
	// before content merging.
	Renormalize bool
	// XdlOpts is an opaque flag word forwarded to the content merger.
	XdlOpts uint64

	// SubtreeShift, for subtree-merge mode, names the directory of side2
	// whose tree is merged in place of side2's root; base and side1 are
	// not shifted.
	SubtreeShift string

	// Collaborators; nil selects the in-tree defaults.
	Detector   RenameDetector
	Submodules SubmoduleMerger
	TextMerge  TextMerger

	// Verbosity gates informational messages on the diagnostic sink;
	// BufferOutput defers them until the merge finishes.
	Verbosity    int
	BufferOutput bool
	// Diagnostics receives conflict notices; defaults to stderr.
	Diagnostics io.Writer
}

func (opts *Options) sanitize() {
	if opts.Branch1 == "" {
		opts.Branch1 = "Branch1"
	}
	if opts.Branch2 == "" {
		opts.Branch2 = "Branch2"
	}
	if opts.DetectRenames == RenamesCopy {
		opts.DetectRenames = RenamesOn
	}
	if opts.Detector == nil {
		opts.Detector = NewDetector()
	}
	if opts.Submodules == nil {
		opts.Submodules = trivialSubmoduleMerger{}
	}
	if opts.TextMerge == nil {
		opts.TextMerge = DefaultTextMerger
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
}

// ConflictEntry represents one side of a conflict.
type ConflictEntry struct {
	// Path is the path of the conflicting file.
	Path string `json:"path"`
	// Mode is the mode of the conflicting file.
	Mode filemode.FileMode `json:"mode"`
	Hash plumbing.Hash     `json:"oid"`
}

// Conflict represents a merge conflict for a single path.
type Conflict struct {
	// Ancestor is the conflict entry of the merge-base.
	Ancestor ConflictEntry `json:"ancestor"`
	// Our is the conflict entry of ours.
	Our ConflictEntry `json:"our"`
	// Their is the conflict entry of theirs.
	Their ConflictEntry `json:"their"`
	// Types: conflict types
	Types int `json:"types"`
}

// Result is the outcome of a tree merge. When Clean is false the unmerged
// entries carry the per-path conflict stages; the result tree then holds the
// engine's provisional resolutions.
type Result struct {
	NewTree  plumbing.Hash `json:"new-tree"`
	Clean    bool          `json:"clean"`
	Unmerged []*Conflict   `json:"conflicts,omitempty"`
	Messages []string      `json:"messages,omitempty"`
}

func (mr *Result) Error() string {
	return "conflicts"
}

// output is the buffered-or-immediate diagnostic sink.
type output struct {
	w        io.Writer
	buffered bool
	messages []string
}

func (o *output) report(result *Result, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	result.Messages = append(result.Messages, message)
	if o.w == nil {
		return
	}
	if o.buffered {
		o.messages = append(o.messages, message)
		return
	}
	fmt.Fprintln(o.w, message)
}

func (o *output) flush() {
	if o.w == nil {
		return
	}
	for _, m := range o.messages {
		fmt.Fprintln(o.w, m)
	}
	o.messages = nil
}
