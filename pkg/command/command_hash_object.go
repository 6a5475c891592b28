// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ortscm/ort/modules/plumbing"
)

type HashObject struct {
	Paths []string `arg:"" optional:"" name:"path" help:"Files to hash; stdin when omitted"`
	Write bool     `short:"w" name:"write" help:"Actually write the object into the object database"`
}

func (c *HashObject) Run(g *Globals) error {
	d, _, err := g.openDatabase()
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	hashOne := func(r io.Reader) error {
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if !c.Write {
			header := fmt.Sprintf("blob %d\x00", len(content))
			fmt.Fprintln(os.Stdout, plumbing.HashBytes(append([]byte(header), content...)))
			return nil
		}
		oid, err := d.WriteBlob(context.Background(), content)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, oid)
		return nil
	}
	if len(c.Paths) == 0 {
		return hashOne(os.Stdin)
	}
	for _, p := range c.Paths {
		fd, err := os.Open(p)
		if err != nil {
			return err
		}
		err = hashOne(fd)
		_ = fd.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
