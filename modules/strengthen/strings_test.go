package strengthen

import "testing"

func TestStrSplitSkipEmpty(t *testing.T) {
	sv := StrSplitSkipEmpty("/a//b/c/", '/', 4)
	if len(sv) != 3 || sv[0] != "a" || sv[1] != "b" || sv[2] != "c" {
		t.Fatalf("unexpected split result: %v", sv)
	}
}

func TestStrCat(t *testing.T) {
	if got := StrCat("a", "~", "branch"); got != "a~branch" {
		t.Fatalf("unexpected concat result: %s", got)
	}
}

func TestBufferCat(t *testing.T) {
	if got := string(BufferCat("\"", "x", "\"")); got != "\"x\"" {
		t.Fatalf("unexpected buffer result: %s", got)
	}
}
