// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
)

type LsTree struct {
	Tree      string `arg:"" name:"tree" help:"Tree object to list"`
	Recursive bool   `short:"r" name:"recursive" help:"Recurse into sub-trees"`
}

func (c *LsTree) Run(g *Globals) error {
	d, _, err := g.openDatabase()
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	oid, err := plumbing.NewHashEx(c.Tree)
	if err != nil {
		return err
	}
	ctx := context.Background()
	t, err := d.Tree(ctx, oid)
	if err != nil {
		return err
	}
	w := object.NewTreeWalker(t, c.Recursive, nil)
	defer w.Close()
	for {
		name, te, err := w.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s %s\t%s\n", te.Mode, te.Type(), te.Hash, name)
	}
}
