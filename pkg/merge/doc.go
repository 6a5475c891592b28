// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package merge implements a three-way tree merge over a content-addressed
// object store, in the manner of the "ort" merge strategy.
//
// A merge runs as a pipeline over a shared path table: a synchronized
// three-tree walk collects and trivially resolves paths, rename detection
// and directory-rename inference rewrite paths before merging, a per-path
// state machine selects each resolution, and the result tree is rebuilt
// bottom-up in reverse lexicographic order. Multiple merge bases are folded
// pairwise into virtual merge bases first.
//
// The engine is single-threaded and synchronous; one Options/merge
// invocation owns all of its state. Callers supply an ObjectStore and may
// substitute the RenameDetector, TextMerger and SubmoduleMerger
// collaborators.
package merge
