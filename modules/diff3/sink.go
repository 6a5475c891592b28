// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package diff3

import (
	"io"
	"strings"
)

// Sink interns lines so that diffing compares small integers instead of
// strings. Lines keep their trailing newline byte; a file not ending in a
// newline contributes a final line without one.
type Sink struct {
	Lines []string
	Index map[string]int
}

func NewSink() *Sink {
	return &Sink{
		Lines: make([]string, 0, 200),
		Index: make(map[string]int),
	}
}

func (s *Sink) addLine(line string) int {
	if lineIndex, ok := s.Index[line]; ok {
		return lineIndex
	}
	index := len(s.Lines)
	s.Index[line] = index
	s.Lines = append(s.Lines, line)
	return index
}

// SplitLines interns the raw lines of text.
func (s *Sink) SplitLines(text string) []int {
	lines := make([]int, 0, 200)
	for pos := 0; pos < len(text); {
		part := text[pos:]
		newPos := strings.IndexByte(part, '\n')
		if newPos == -1 {
			lines = append(lines, s.addLine(part))
			break
		}
		lines = append(lines, s.addLine(part[:newPos+1]))
		pos += newPos + 1
	}
	return lines
}

// WriteLine writes interned lines back out unchanged.
func (s *Sink) WriteLine(w io.Writer, E ...int) {
	for _, e := range E {
		_, _ = io.WriteString(w, s.Lines[e])
	}
}
