// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/ortscm/ort/modules/diff3"
)

type MergeFile struct {
	File1      string   `arg:"" name:"file1" help:"Current version"`
	Base       string   `arg:"" name:"base" help:"Common ancestor version"`
	File2      string   `arg:"" name:"file2" help:"Other version"`
	Labels     []string `short:"L" name:"label" help:"Conflict marker labels, up to three"`
	Stdout     bool     `short:"p" name:"stdout" help:"Send results to standard output"`
	Diff3      bool     `name:"diff3" help:"Use diff3 based merge"`
	ZDiff3     bool     `name:"zdiff3" help:"Use zealous diff3 based merge"`
	MarkerSize int      `name:"marker-size" help:"Length of conflict markers"`
	Quiet      bool     `short:"q" name:"quiet" help:"Do not warn about conflicts"`
}

func (c *MergeFile) Run(g *Globals) error {
	readAll := func(p string) (string, error) {
		b, err := os.ReadFile(p)
		return string(b), err
	}
	textA, err := readAll(c.File1)
	if err != nil {
		return err
	}
	textO, err := readAll(c.Base)
	if err != nil {
		return err
	}
	textB, err := readAll(c.File2)
	if err != nil {
		return err
	}
	labelA, labelO, labelB := c.File1, c.Base, c.File2
	if len(c.Labels) > 0 {
		labelA = c.Labels[0]
	}
	if len(c.Labels) > 1 {
		labelO = c.Labels[1]
	}
	if len(c.Labels) > 2 {
		labelB = c.Labels[2]
	}
	style := diff3.STYLE_DEFAULT
	if c.Diff3 {
		style = diff3.STYLE_DIFF3
	}
	if c.ZDiff3 {
		style = diff3.STYLE_ZEALOUS_DIFF3
	}
	merged, conflict, err := diff3.Merge(context.Background(), &diff3.MergeOptions{
		TextO: textO, TextA: textA, TextB: textB,
		LabelO: labelO, LabelA: labelA, LabelB: labelB,
		Style: style, MarkerSize: c.MarkerSize,
	})
	if err != nil {
		return err
	}
	if c.Stdout {
		fmt.Fprint(os.Stdout, merged)
	} else if err := os.WriteFile(c.File1, []byte(merged), 0644); err != nil {
		return err
	}
	if conflict {
		if !c.Quiet {
			die("conflict markers written for %s", c.File1)
		}
		return &ErrExitCode{ExitCode: 1, Message: "conflict"}
	}
	return nil
}
