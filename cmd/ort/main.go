// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ortscm/ort/pkg/command"
)

type App struct {
	command.Globals
	Init       command.Init       `cmd:"init" help:"Create an empty repository"`
	HashObject command.HashObject `cmd:"hash-object" help:"Compute hash or create blob object"`
	WriteTree  command.WriteTree  `cmd:"write-tree" help:"Snapshot a directory as a tree object"`
	LsTree     command.LsTree     `cmd:"ls-tree" help:"List the contents of a tree object"`
	MergeFile  command.MergeFile  `cmd:"merge-file" help:"Run a three-way file merge"`
	MergeTree  command.MergeTree  `cmd:"merge-tree" help:"Perform merge without touching index or working tree"`
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("ort"),
		kong.Description("ort - a three-way tree merge engine for content-addressed repositories"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
	)
	now := time.Now()
	err := ctx.Run(&app.Globals)
	if app.Verbose {
		app.DbgPrint("time spent: %v", time.Since(now))
	}
	if err == nil {
		return
	}
	if e, ok := err.(*command.ErrExitCode); ok {
		os.Exit(e.ExitCode)
	}
	os.Exit(127)
}
