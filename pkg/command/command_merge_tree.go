// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/diff3"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/pkg/merge"
)

var (
	ErrHasConflicts = errors.New("merge: there are conflicting files")
)

type MergeTree struct {
	Branch1   string `arg:"" name:"branch1" help:"Commit or tree of ours"`
	Branch2   string `arg:"" name:"branch2" help:"Commit or tree of theirs"`
	MergeBase string `name:"merge-base" help:"Specify a merge-base for the merge"`
	NameOnly  bool   `name:"name-only" help:"Only output conflict-related file names"`
	Z         bool   `name:":z" short:"z" help:"Terminate entries with NUL byte"`
	JSON      bool   `name:"json" help:"Convert conflict results to JSON"`
	Ours      bool   `name:"ours" help:"Favor our version on conflicts"`
	Theirs    bool   `name:"theirs" help:"Favor their version on conflicts"`
}

// resolveTree accepts a commit or tree OID and lands on the tree, plus the
// commit when one was given.
func resolveTree(ctx context.Context, d *backend.Database, rev string) (*object.Tree, *object.Commit, error) {
	oid, err := plumbing.NewHashEx(rev)
	if err != nil {
		return nil, nil, err
	}
	if cc, err := d.Commit(ctx, oid); err == nil {
		root, err := cc.Root(ctx)
		return root, cc, err
	}
	t, err := d.Tree(ctx, oid)
	return t, nil, err
}

func (c *MergeTree) Run(g *Globals) error {
	d, cfg, err := g.openDatabase()
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	ctx := context.Background()
	t1, c1, err := resolveTree(ctx, d, c.Branch1)
	if err != nil {
		die("resolve '%s': %v", c.Branch1, err)
		return &ErrExitCode{ExitCode: 127, Message: err.Error()}
	}
	t2, c2, err := resolveTree(ctx, d, c.Branch2)
	if err != nil {
		die("resolve '%s': %v", c.Branch2, err)
		return &ErrExitCode{ExitCode: 127, Message: err.Error()}
	}
	opts := &merge.Options{
		Branch1:       c.Branch1,
		Branch2:       c.Branch2,
		ConflictStyle: diff3.ParseConflictStyle(cfg.Core.ConflictStyle),
		RenameLimit:   cfg.Merge.RenameLimit,
		RenameScore:   cfg.Merge.RenameScore,
		Verbosity:     1,
		BufferOutput:  true,
	}
	if !cfg.Merge.DetectRenames() {
		opts.DetectRenames = merge.RenamesOff
	}
	if c.Ours {
		opts.Variant = merge.MERGE_VARIANT_OURS
	}
	if c.Theirs {
		opts.Variant = merge.MERGE_VARIANT_THEIRS
	}

	var result *merge.Result
	switch {
	case c.MergeBase != "":
		baseTree, baseCommit, err := resolveTree(ctx, d, c.MergeBase)
		if err != nil {
			die("resolve '%s': %v", c.MergeBase, err)
			return &ErrExitCode{ExitCode: 127, Message: err.Error()}
		}
		if c1 != nil && c2 != nil && baseCommit != nil {
			result, err = merge.MergeCommits(ctx, d, c1, c2, []*object.Commit{baseCommit}, opts)
		} else {
			result, err = merge.MergeTrees(ctx, d, baseTree, t1, t2, opts)
		}
		if err != nil {
			return err
		}
	case c1 != nil && c2 != nil:
		if result, err = merge.MergeCommits(ctx, d, c1, c2, nil, opts); err != nil {
			return err
		}
	default:
		// no common history available for bare trees: empty base
		empty := object.NewTree(d, nil)
		if _, err := d.WriteTree(ctx, empty); err != nil {
			return err
		}
		if result, err = merge.MergeTrees(ctx, d, empty, t1, t2, opts); err != nil {
			return err
		}
	}
	c.format(result)
	if !result.Clean {
		return &ErrExitCode{ExitCode: 1, Message: ErrHasConflicts.Error()}
	}
	return nil
}

func (c *MergeTree) format(result *merge.Result) {
	if c.JSON {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			die("format to json error: %v", err)
		}
		return
	}
	NewLine := byte('\n')
	if c.Z {
		NewLine = '\x00'
	}
	fmt.Fprintf(os.Stdout, "%s%c", result.NewTree, NewLine)
	if c.NameOnly {
		for _, e := range result.Unmerged {
			switch {
			case e.Our.Path != "":
				fmt.Fprintf(os.Stdout, "%s%c", e.Our.Path, NewLine)
			case e.Their.Path != "":
				fmt.Fprintf(os.Stdout, "%s%c", e.Their.Path, NewLine)
			case e.Ancestor.Path != "":
				fmt.Fprintf(os.Stdout, "%s%c", e.Ancestor.Path, NewLine)
			}
		}
	} else {
		for _, e := range result.Unmerged {
			if e.Ancestor.Path != "" {
				fmt.Fprintf(os.Stdout, "%s %s 1 %s%c", e.Ancestor.Mode, e.Ancestor.Hash, e.Ancestor.Path, NewLine)
			}
			if e.Our.Path != "" {
				fmt.Fprintf(os.Stdout, "%s %s 2 %s%c", e.Our.Mode, e.Our.Hash, e.Our.Path, NewLine)
			}
			if e.Their.Path != "" {
				fmt.Fprintf(os.Stdout, "%s %s 3 %s%c", e.Their.Mode, e.Their.Hash, e.Their.Path, NewLine)
			}
		}
	}
	if len(result.Messages) == 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "%c", NewLine)
	for _, m := range result.Messages {
		fmt.Fprintf(os.Stdout, "%s%c", m, NewLine)
	}
}
