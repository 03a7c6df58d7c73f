// Package store implements the partitioned store (spec §4.6): it opens
// a directory of one root and N leaf containers, validates cross-file
// consistency, and dispatches queries and writes across them.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/container"
)

// filenamePattern matches <prefix>.<N>.<ext>; the directory's ext is
// whatever the root file actually uses (kept configurable since the
// spec names "h5" only by convention -- this implementation's ext is
// the bespoke container's own, see container.Magic).
var filenamePattern = regexp.MustCompile(`^(.+)\.([0-9]+)\.([A-Za-z0-9]+)$`)

// Store holds one open partitioned database directory.
type Store struct {
	Dir    string
	Prefix string
	Ext    string

	Root   *container.RootContainer
	Leaves map[uint32]*container.LeafContainer // partition_num -> leaf

	manifest famdb.Manifest
}

// ErrNoRoot is returned when a directory has zero root files.
var ErrNoRoot = errors.New("store: no root file (<prefix>.0.<ext>) found in directory")

// ErrMultipleRoots is returned when a directory has more than one
// distinct root-shaped file.
type ErrMultipleRoots struct{ Files []string }

func (e *ErrMultipleRoots) Error() string {
	return fmt.Sprintf("store: multiple root files found: %s", strings.Join(e.Files, ", "))
}

// ErrMixedPrefixes is returned when files in the directory disagree on
// their <prefix> component.
type ErrMixedPrefixes struct{ Prefixes []string }

func (e *ErrMixedPrefixes) Error() string {
	return fmt.Sprintf("store: mixed filename prefixes in directory: %s", strings.Join(e.Prefixes, ", "))
}

// ErrManifestMismatch is returned when a leaf's manifest metadata
// disagrees with the root's (spec §4.6: partition_id/db_version/db_date
// must match exactly).
type ErrManifestMismatch struct {
	File  string
	Field string
	Want  string
	Got   string
}

func (e *ErrManifestMismatch) Error() string {
	return fmt.Sprintf("store: %s: %s mismatch (root has %q, file has %q)", e.File, e.Field, e.Want, e.Got)
}

// Open scans dir, opens the root and every leaf container, and
// validates cross-file consistency (spec §4.6 initialization).
func Open(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "store: reading directory %s", dir)
	}

	type found struct {
		path   string
		prefix string
		num    uint32
		ext    string
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			continue
		}
		files = append(files, found{path: filepath.Join(dir, e.Name()), prefix: m[1], num: uint32(n), ext: m[3]})
	}

	prefixSet := make(map[string]bool)
	for _, f := range files {
		prefixSet[f.prefix] = true
	}
	if len(prefixSet) > 1 {
		var ps []string
		for p := range prefixSet {
			ps = append(ps, p)
		}
		sort.Strings(ps)
		return nil, &ErrMixedPrefixes{Prefixes: ps}
	}

	var rootFiles []found
	var leafFiles []found
	for _, f := range files {
		if f.num == 0 {
			rootFiles = append(rootFiles, f)
		} else {
			leafFiles = append(leafFiles, f)
		}
	}
	if len(rootFiles) == 0 {
		return nil, ErrNoRoot
	}
	if len(rootFiles) > 1 {
		var names []string
		for _, f := range rootFiles {
			names = append(names, f.path)
		}
		return nil, &ErrMultipleRoots{Files: names}
	}

	root, err := container.LoadRoot(rootFiles[0].path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening root %s", rootFiles[0].path)
	}

	var rootManifest famdb.Manifest
	if root.FileInfoJSON != "" {
		if err := json.Unmarshal([]byte(root.FileInfoJSON), &rootManifest); err != nil {
			return nil, errors.Wrapf(err, "store: parsing root manifest")
		}
	}

	s := &Store{
		Dir:      dir,
		Prefix:   rootFiles[0].prefix,
		Ext:      rootFiles[0].ext,
		Root:     root,
		Leaves:   make(map[uint32]*container.LeafContainer, len(leafFiles)),
		manifest: rootManifest,
	}

	for _, f := range leafFiles {
		leaf, err := container.OpenLeaf(f.path)
		if err != nil {
			return nil, errors.Wrapf(err, "store: opening leaf %s", f.path)
		}
		if err := s.checkManifest(f.path, leaf.FileInfoJSON); err != nil {
			return nil, err
		}
		s.Leaves[leaf.PartitionNum] = leaf
	}

	return s, nil
}

func (s *Store) checkManifest(path, fileInfoJSON string) error {
	if fileInfoJSON == "" || s.Root.FileInfoJSON == "" {
		return nil
	}
	var m famdb.Manifest
	if err := json.Unmarshal([]byte(fileInfoJSON), &m); err != nil {
		return errors.Wrapf(err, "store: parsing manifest of %s", path)
	}
	if m.Meta.PartitionID != s.manifest.Meta.PartitionID {
		return &ErrManifestMismatch{File: path, Field: "partition_id", Want: s.manifest.Meta.PartitionID, Got: m.Meta.PartitionID}
	}
	if m.Meta.DBVersion != s.manifest.Meta.DBVersion {
		return &ErrManifestMismatch{File: path, Field: "db_version", Want: s.manifest.Meta.DBVersion, Got: m.Meta.DBVersion}
	}
	if m.Meta.DBDate != s.manifest.Meta.DBDate {
		return &ErrManifestMismatch{File: path, Field: "db_date", Want: s.manifest.Meta.DBDate, Got: m.Meta.DBDate}
	}
	return nil
}

// Close releases every held file lock.
func (s *Store) Close() error {
	var firstErr error
	if err := s.Root.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, l := range s.Leaves {
		if err := l.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// containerForPartition returns the container owning partition p: the
// root container itself for chunk 0, else the matching leaf.
func (s *Store) containerForPartition(p uint32) (*container.Container, bool) {
	if p == 0 {
		return s.Root.Container, true
	}
	leaf, ok := s.Leaves[p]
	if !ok {
		return nil, false
	}
	return leaf.Container, true
}

// GetFamilyByAccession probes every open container in partition order,
// root first, and returns the first hit (spec §4.6).
func (s *Store) GetFamilyByAccession(acc string) *famdb.Family {
	if f := s.Root.GetFamilyByAccession(acc); f != nil {
		return f
	}
	nums := s.sortedPartitions()
	for _, p := range nums {
		if f := s.Leaves[p].GetFamilyByAccession(acc); f != nil {
			return f
		}
	}
	return nil
}

func (s *Store) sortedPartitions() []uint32 {
	nums := make([]uint32, 0, len(s.Leaves))
	for p := range s.Leaves {
		nums = append(nums, p)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// GetFamiliesForTaxon resolves t's owning partition via the root's
// find_taxon and delegates; the bool result distinguishes "partition
// absent" (false) from "partition present but empty" (true, nil slice)
// per spec §4.6.
func (s *Store) GetFamiliesForTaxon(t uint32, filter container.CuratedFilter) ([]string, bool) {
	p, ok := s.Root.FindTaxon(t)
	if !ok {
		return nil, false
	}
	c, ok := s.containerForPartition(p)
	if !ok {
		return nil, false
	}
	return c.GetFamiliesForTaxon(t, filter), true
}
