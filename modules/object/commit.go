// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ortscm/ort/modules/plumbing"
)

// DateFormat is the format being used in the original git implementation
const DateFormat = "Mon Jan 02 15:04:05 2006 -0700"

type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

var timeZoneLength = 5

func (s *Signature) decodeTimeAndTimeZone(b []byte) {
	space := bytes.IndexByte(b, ' ')
	if space == -1 {
		space = len(b)
	}

	ts, err := strconv.ParseInt(string(b[:space]), 10, 64)
	if err != nil {
		return
	}

	s.When = time.Unix(ts, 0).In(time.UTC)
	var tzStart = space + 1
	if tzStart >= len(b) || tzStart+timeZoneLength > len(b) {
		return
	}

	timezone := string(b[tzStart : tzStart+timeZoneLength])
	tzhours, err1 := strconv.ParseInt(timezone[0:3], 10, 64)
	tzmins, err2 := strconv.ParseInt(timezone[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if tzhours < 0 {
		tzmins *= -1
	}

	tz := time.FixedZone("", int(tzhours*60*60+tzmins*60))

	s.When = s.When.In(tz)
}

// Decode decodes a byte slice into a signature
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 {
		return
	}

	if close < open {
		return
	}

	s.Name = string(bytes.Trim(b[:open], " "))
	s.Email = string(b[open+1 : close])

	hasTime := close+2 < len(b)
	if hasTime {
		s.decodeTimeAndTimeZone(b[close+2:])
	}
}

const (
	formatTimeZoneOnly = "-0700"
)

// String implements the fmt.Stringer interface and formats a Signature as
// expected in the commit internal object format. For instance:
//
//	Taylor Blau <ttaylorr@github.com> 1494258422 -0600
func (s *Signature) String() string {
	at := s.When.Unix()
	zone := s.When.Format(formatTimeZoneOnly)

	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, at, zone)
}

type Commit struct {
	Hash plumbing.Hash `json:"hash"` // commit oid
	// Author is the Author this commit, or the original writer of the
	// contents.
	Author Signature `json:"author"`
	// Committer is the individual or entity that added this commit to the
	// history.
	Committer Signature `json:"committer"`
	// Parents are the IDs of all parents for which this commit is a
	// linear child.
	Parents []plumbing.Hash `json:"parents"`
	// Tree is the root Tree associated with this commit.
	Tree plumbing.Hash `json:"tree"`
	// Message is the commit message.
	Message string `json:"message"`
	b       Backend
}

// Bind attaches the backend used to resolve the root tree and parents.
func (c *Commit) Bind(b Backend) {
	c.b = b
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree); err != nil {
		return err
	}
	for _, p := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", p); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}
	_, err := io.WriteString(w, c.Message)
	return err
}

func (c *Commit) Decode(reader Reader) error {
	if reader.Type() != CommitObject {
		return ErrUnsupportedObject
	}
	c.Hash = reader.Hash()
	c.Parents = nil
	br := bufio.NewReader(reader)
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF && len(line) == 0 {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		line = strings.TrimSuffix(line, "\n")
		if len(line) == 0 {
			// headers end, the remainder is the message
			message, err := io.ReadAll(br)
			if err != nil {
				return err
			}
			c.Message = string(message)
			return nil
		}
		field, value, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("ort: malformed commit header '%s'", line)
		}
		switch field {
		case "tree":
			if c.Tree, err = plumbing.NewHashEx(value); err != nil {
				return err
			}
		case "parent":
			oid, err := plumbing.NewHashEx(value)
			if err != nil {
				return err
			}
			c.Parents = append(c.Parents, oid)
		case "author":
			c.Author.Decode([]byte(value))
		case "committer":
			c.Committer.Decode([]byte(value))
		default:
			// unrecognized headers are preserved nowhere; skip
		}
		if err == io.EOF {
			return nil
		}
	}
}

func (c *Commit) Less(rhs *Commit) bool {
	return c.Committer.When.Before(rhs.Committer.When) ||
		(c.Committer.When.Equal(rhs.Committer.When) && bytes.Compare(c.Hash[:], rhs.Hash[:]) < 0)
}

func (c *Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return subject
}

// Root resolves the commit's root tree.
func (c *Commit) Root(ctx context.Context) (*Tree, error) {
	if c.b == nil {
		return nil, plumbing.NoSuchObject(c.Tree)
	}
	return c.b.Tree(ctx, c.Tree)
}

func (c *Commit) NumParents() int {
	return len(c.Parents)
}

func GetCommit(ctx context.Context, b Backend, oid plumbing.Hash) (*Commit, error) {
	cc, err := b.Commit(ctx, oid)
	if err != nil {
		return nil, err
	}
	cc.b = b
	return cc, nil
}
