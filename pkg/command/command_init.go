// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ortscm/ort/modules/config"
)

type Init struct {
	Quiet bool `name:"quiet" short:"q" help:"Only print error and warning messages"`
}

func (c *Init) Run(g *Globals) error {
	dir := filepath.Join(g.CWD, config.Dir)
	if _, err := os.Stat(dir); err == nil {
		die("repository already initialized: %s", dir)
		return &ErrExitCode{ExitCode: 1, Message: "already initialized"}
	}
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0755); err != nil {
		return err
	}
	if err := config.Save(g.CWD, &config.Config{}); err != nil {
		return err
	}
	if !c.Quiet {
		fmt.Fprintf(os.Stdout, "Initialized empty repository in %s\n", dir)
	}
	return nil
}
