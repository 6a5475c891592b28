// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ortscm/ort/modules/backend"
	"github.com/ortscm/ort/modules/config"
)

// Version is the release identifier stamped into builds.
const Version = "0.3.0"

type Globals struct {
	Verbose bool        `short:"V" name:"verbose" help:"Make the operation more talkative"`
	Version VersionFlag `short:"v" name:"version" help:"Show version number and quit"`
	CWD     string      `name:"cwd" help:"Set the path to the repository" default:"."`
}

func (g *Globals) DbgPrint(format string, args ...any) {
	if !g.Verbose {
		return
	}
	message := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	var buffer bytes.Buffer
	for _, s := range strings.Split(message, "\n") {
		_, _ = buffer.WriteString("\x1b[33m* ")
		_, _ = buffer.WriteString(s)
		_, _ = buffer.WriteString("\x1b[0m\n")
	}
	_, _ = os.Stderr.Write(buffer.Bytes())
}

// openDatabase opens the object database of the repository at the working
// directory.
func (g *Globals) openDatabase() (*backend.Database, *config.Config, error) {
	cfg, err := config.Load(g.CWD)
	if err != nil {
		return nil, nil, err
	}
	d, err := backend.NewDatabase(fmt.Sprintf("%s/%s", strings.TrimSuffix(g.CWD, "/"), config.Dir))
	if err != nil {
		return nil, nil, err
	}
	return d, cfg, nil
}

type VersionFlag bool

func (v VersionFlag) Decode(ctx *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                         { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println("ort version", Version)
	app.Exit(0)
	return nil
}

var (
	ErrArgRequired = errors.New("arg required")
)

// ErrExitCode carries a process exit status out of a subcommand.
type ErrExitCode struct {
	ExitCode int
	Message  string
}

func (e *ErrExitCode) Error() string { return e.Message }

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ort: %s\n", fmt.Sprintf(format, args...))
}
