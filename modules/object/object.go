// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/ortscm/ort/modules/plumbing"
	"github.com/ortscm/ort/modules/strengthen"
)

var (
	ErrUnsupportedObject = errors.New("unsupported object type")
)

type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3

	AnyObject ObjectType = -127
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case AnyObject:
		return "any"
	default:
		return "unknown"
	}
}

// ObjectTypeFromString converts from a given string to an ObjectType
// enumeration instance.
func ObjectTypeFromString(s string) ObjectType {
	switch strings.ToLower(s) {
	case "blob":
		return BlobObject
	case "tree":
		return TreeObject
	case "commit":
		return CommitObject
	case "any":
		return AnyObject
	default:
		return InvalidObject
	}
}

func (t ObjectType) MarshalJSON() ([]byte, error) {
	return strengthen.BufferCat("\"", t.String(), "\""), nil
}

func (t *ObjectType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ObjectTypeFromString(s)
	return nil
}

// Reader is a decoded-object source: raw payload bytes plus identity.
type Reader interface {
	io.Reader
	Hash() plumbing.Hash
	Type() ObjectType
}

type reader struct {
	io.Reader
	hash       plumbing.Hash
	objectType ObjectType
}

func (r *reader) Hash() plumbing.Hash {
	return r.hash
}

func (r *reader) Type() ObjectType {
	return r.objectType
}

// NewReader wraps a raw payload stream with its object identity.
func NewReader(r io.Reader, hash plumbing.Hash, t ObjectType) Reader {
	return &reader{Reader: r, hash: hash, objectType: t}
}

// Backend is the read side of the content-addressed object store consumed by
// lazily resolved trees and commits.
type Backend interface {
	Commit(ctx context.Context, oid plumbing.Hash) (*Commit, error)
	Tree(ctx context.Context, oid plumbing.Hash) (*Tree, error)
	Blob(ctx context.Context, oid plumbing.Hash) (*Blob, error)
}
