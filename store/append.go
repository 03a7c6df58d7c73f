package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/container"
)

// AppendResult tallies the outcome of one Append call (spec §4.6 write
// routing / §7 recoverable-error policy): duplicates and missing
// partitions are counted and skipped rather than aborting the run.
type AppendResult struct {
	Added            int
	Duplicates       []string // accessions skipped as already present
	MissingPartition []MissingPartition
	NewlyValuedTaxa  []uint32 // taxa that went from 0 to >=1 attached families this run
}

// MissingPartition records one (family, clade) pair whose target
// partition was not present among the open containers.
type MissingPartition struct {
	Accession string
	TaxID     uint32
}

// ErrUnknownClade is fatal-at-write (spec §7): the target partition is
// present but the clade tax_id itself is unknown to the full tree.
type ErrUnknownClade struct {
	Accession string
	TaxID     uint32
}

func (e *ErrUnknownClade) Error() string {
	return fmt.Sprintf("store: family %s references unknown tax_id %d", e.Accession, e.TaxID)
}

// Append routes each family to every partition owning one of its
// clades, adds it there, and -- once every family in the batch has been
// tried -- rebuilds the pruned tree if any taxon newly gained family
// data (spec §4.6).
func (s *Store) Append(families []*famdb.Family) (*AppendResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res := &AppendResult{}

	wasEmpty := make(map[uint32]bool)
	newlyValued := make(map[uint32]bool)

	for _, f := range families {
		targets := make(map[uint32]bool)
		for _, clade := range f.Clades {
			if s.Root.Taxonomy.Get(clade) == nil {
				return res, &ErrUnknownClade{Accession: f.Accession, TaxID: clade}
			}
			p, _ := s.Root.FindTaxon(clade)
			if _, open := s.containerForPartition(p); !open {
				res.MissingPartition = append(res.MissingPartition, MissingPartition{Accession: f.Accession, TaxID: clade})
				continue
			}
			targets[p] = true
		}

		addedAny := false
		for p := range targets {
			leaf, isRoot := s.containerTarget(p)
			var err error
			if isRoot {
				err = s.Root.AddFamily(f, now)
			} else {
				err = leaf.AddFamilyNow(f)
			}
			if err != nil {
				if _, dup := err.(*container.ErrAccessionCollision); dup {
					res.Duplicates = append(res.Duplicates, f.Accession)
					continue
				}
				if _, dup := err.(*container.ErrNameCollision); dup {
					res.Duplicates = append(res.Duplicates, f.Accession)
					continue
				}
				return res, errors.Wrapf(err, "store: adding family %s to partition %d", f.Accession, p)
			}
			addedAny = true

			for _, clade := range f.Clades {
				node := s.Root.Taxonomy.Get(clade)
				if node != nil {
					if !wasEmpty[clade] {
						wasEmpty[clade] = len(node.FamilyAccessions) == 0
					}
					node.FamilyAccessions = append(node.FamilyAccessions, f.Accession)
					if wasEmpty[clade] {
						newlyValued[clade] = true
					}
				}
			}
		}
		if addedAny {
			res.Added++
		}
	}

	if len(newlyValued) > 0 {
		ids := make([]uint32, 0, len(newlyValued))
		for id := range newlyValued {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		res.NewlyValuedTaxa = ids
		s.Root.UpdatePrunedTaxa(ids, now)
	}

	return res, nil
}

// containerTarget resolves partition p to either the root (isRoot=true,
// leaf=nil) or the owning leaf.
func (s *Store) containerTarget(p uint32) (leaf *container.LeafContainer, isRoot bool) {
	if p == 0 {
		return nil, true
	}
	return s.Leaves[p], false
}

// ValidateReferentialIntegrity checks the universal invariant that every
// family's clades all name taxa present in the full taxonomy tree (spec
// §8 universal invariants, first bullet).
func (s *Store) ValidateReferentialIntegrity() error {
	check := func(c *container.Container) error {
		for acc, f := range c.Families {
			for _, clade := range f.Clades {
				if s.Root.Taxonomy.Get(clade) == nil {
					return &ErrUnknownClade{Accession: acc, TaxID: clade}
				}
			}
		}
		return nil
	}
	if err := check(s.Root.Container); err != nil {
		return err
	}
	for _, l := range s.Leaves {
		if err := check(l.Container); err != nil {
			return err
		}
	}
	return nil
}

// SaveAll persists the root and every dirty leaf container.
func (s *Store) SaveAll() error {
	if s.Root.Dirty() {
		if err := s.Root.Save(); err != nil {
			return errors.Wrap(err, "store: saving root")
		}
	}
	for _, l := range s.Leaves {
		if l.Dirty() {
			if err := l.Save(); err != nil {
				return errors.Wrapf(err, "store: saving leaf %s", l.Path)
			}
		}
	}
	return nil
}
