package diff3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMyersDiffEqual(t *testing.T) {
	assert.Empty(t, myersDiff([]int{1, 2, 3}, []int{1, 2, 3}))
	assert.Empty(t, myersDiff(nil, nil))
}

func TestMyersDiffReplace(t *testing.T) {
	changes := myersDiff([]int{1, 2, 3}, []int{1, 4, 3})
	assert.Equal(t, []Change{{P1: 1, P2: 1, Del: 1, Ins: 1}}, changes)
}

func TestMyersDiffInsertDelete(t *testing.T) {
	assert.Equal(t, []Change{{P1: 0, P2: 0, Ins: 2}}, myersDiff(nil, []int{7, 8}))
	assert.Equal(t, []Change{{P1: 0, P2: 0, Del: 2}}, myersDiff([]int{7, 8}, nil))

	changes := myersDiff([]int{1, 2, 3}, []int{1, 2, 9, 3})
	assert.Equal(t, []Change{{P1: 2, P2: 2, Ins: 1}}, changes)

	changes = myersDiff([]int{1, 2, 9, 3}, []int{1, 2, 3})
	assert.Equal(t, []Change{{P1: 2, P2: 2, Del: 1}}, changes)
}

func TestMyersDiffPositions(t *testing.T) {
	// positions must be usable to reconstruct b from a
	a := []int{10, 11, 12, 13, 14}
	b := []int{10, 20, 12, 14, 30}
	changes := myersDiff(a, b)
	out := make([]int, 0, len(b))
	pos := 0
	for _, ch := range changes {
		out = append(out, a[pos:ch.P1]...)
		out = append(out, b[ch.P2:ch.P2+ch.Ins]...)
		pos = ch.P1 + ch.Del
	}
	out = append(out, a[pos:]...)
	assert.Equal(t, b, out)
}

func TestSinkSplitLines(t *testing.T) {
	s := NewSink()
	lines := s.SplitLines("a\nb\na\nc")
	assert.Len(t, lines, 4)
	assert.Equal(t, lines[0], lines[2], "identical lines intern to the same id")
	assert.NotEqual(t, lines[0], lines[1])
}
