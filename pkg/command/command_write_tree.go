// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/config"
	"github.com/ortscm/ort/modules/object"
	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/plumbing/filemode"
)

// WriteTree snapshots a directory into the object database and prints the
// resulting tree OID; it is the fixture builder for merge-tree.
type WriteTree struct {
	Dir string `arg:"" name:"dir" help:"Directory to snapshot"`
}

func (c *WriteTree) Run(g *Globals) error {
	d, _, err := g.openDatabase()
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	oid, err := snapshotTree(context.Background(), d, c.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, oid)
	return nil
}

func snapshotTree(ctx context.Context, d *backend.Database, dir string) (plumbing.Hash, error) {
	dents, err := os.ReadDir(dir)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	sort.Slice(dents, func(i, j int) bool { return dents[i].Name() < dents[j].Name() })
	entries := make([]*object.TreeEntry, 0, len(dents))
	for _, dent := range dents {
		name := dent.Name()
		if name == config.Dir || strings.HasPrefix(name, ".") {
			continue
		}
		p := filepath.Join(dir, name)
		switch {
		case dent.IsDir():
			oid, err := snapshotTree(ctx, d, p)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: oid})
		case dent.Type()&os.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			oid, err := d.WriteBlob(ctx, []byte(target))
			if err != nil {
				return plumbing.ZeroHash, err
			}
			entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Symlink, Hash: oid})
		case dent.Type().IsRegular():
			content, err := os.ReadFile(p)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			oid, err := d.WriteBlob(ctx, content)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			mode := filemode.Regular
			if info, err := dent.Info(); err == nil && info.Mode()&0111 != 0 {
				mode = filemode.Executable
			}
			entries = append(entries, &object.TreeEntry{Name: name, Mode: mode, Hash: oid})
		}
	}
	t := object.NewTree(d, entries)
	t.Sort()
	return d.WriteTree(ctx, t)
}
