// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package strengthen

import (
	"strings"
)

// StrSplitSkipEmpty skip empty string
func StrSplitSkipEmpty(s string, sep byte, cap int) []string {
	sv := make([]string, 0, cap)
	var first, i int
	for ; i < len(s); i++ {
		if s[i] != sep {
			continue
		}
		if first != i {
			sv = append(sv, s[first:i])
		}
		first = i + 1
	}
	if first < len(s) {
		sv = append(sv, s[first:])
	}
	return sv
}

// StrCat cat strings:
// You should know that StrCat gradually builds advantages
// only when the number of parameters is> 2.
func StrCat(sv ...string) string {
	var sb strings.Builder
	var size int
	for _, s := range sv {
		size += len(s)
	}
	sb.Grow(size)
	for _, s := range sv {
		_, _ = sb.WriteString(s)
	}
	return sb.String()
}

// BufferCat cat strings to bytes
func BufferCat(sv ...string) []byte {
	var size int
	for _, s := range sv {
		size += len(s)
	}
	buf := make([]byte, 0, size)
	for _, s := range sv {
		buf = append(buf, s...)
	}
	return buf
}
