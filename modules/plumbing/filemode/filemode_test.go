package filemode

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
)

func TestModes(t *testing.T) {
	ms := []FileMode{
		Regular,
		Executable,
		Dir,
		Symlink,
		Submodule,
	}
	for _, m := range ms {
		om, err := m.ToOSFileMode()
		if err != nil {
			t.Fatalf("bad filemode: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s --> %s\n", m, om)
	}
}

func TestSameType(t *testing.T) {
	if !Regular.SameType(Executable) {
		t.Fatal("regular and executable share a type")
	}
	if Regular.SameType(Symlink) {
		t.Fatal("regular and symlink must differ in type")
	}
	if Dir.SameType(Submodule) {
		t.Fatal("dir and submodule must differ in type")
	}
}

func TestNewRoundTrip(t *testing.T) {
	for _, m := range []FileMode{Regular, Executable, Dir, Symlink, Submodule} {
		got, err := New(m.Origin())
		if err != nil {
			t.Fatalf("parse %s: %v", m, err)
		}
		if got != m {
			t.Fatalf("round trip %s --> %s", m, got)
		}
	}
}

func TestFileModeJSON(t *testing.T) {
	type J struct {
		A FileMode `json:"a"`
	}
	j := &J{
		A: Executable,
	}
	var s strings.Builder
	_ = json.NewEncoder(io.MultiWriter(&s, os.Stderr)).Encode(j)
	var j2 J

	if err := json.NewDecoder(strings.NewReader(s.String())).Decode(&j2); err != nil {
		t.Fatal(err)
	}
	if j2.A != Executable {
		t.Fatalf("decode mismatch: %s", j2.A)
	}
}
