package store

import (
	"strings"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/container"
)

// Stage95Set is the fixed membership spec §4.7 names for stage=95.
var Stage95Set = map[int]bool{35: true, 50: true, 55: true, 60: true, 65: true, 70: true, 75: true}

// Filters composes the AND-ed predicate set of spec §4.7
// get_accessions_filtered. Zero values mean "no constraint" except
// TaxID/Ancestors/Descendants, whose effective default (1, true, true)
// callers apply via NewFilters.
type Filters struct {
	CuratedOnly   bool
	UncuratedOnly bool

	TaxID       uint32
	Ancestors   bool
	Descendants bool

	Stage    int // read only when StageSet; spec's 80 sentinel means "no filter"
	StageSet bool
	IsHMM    bool

	RepeatType string // case-insensitive prefix match
	Name       string // case-insensitive prefix match
}

// NewFilters returns the spec-mandated default: whole tree, both
// directions, no other constraint.
func NewFilters() Filters {
	return Filters{TaxID: famdb.RootTaxID, Ancestors: true, Descendants: true}
}

func (f Filters) curatedFilter() container.CuratedFilter {
	switch {
	case f.CuratedOnly:
		return container.CuratedOnly
	case f.UncuratedOnly:
		return container.UncuratedOnly
	default:
		return container.CuratedAndUncurated
	}
}

// stageFilterDisabled reports whether the 80 sentinel is in effect.
func (f Filters) stageFilterDisabled() bool {
	return !f.StageSet || f.Stage == 80
}

func (f Filters) stageMembership() map[int]bool {
	if !f.StageSet {
		return nil
	}
	if f.Stage == 95 {
		return Stage95Set
	}
	return map[int]bool{f.Stage: true}
}

// matchesPostFilters applies the filters that need the materialized
// Family record: stage+is_hmm, repeat_type, name. Index-testable
// filters (curated shape, stage membership alone) are expected to have
// already narrowed the candidate set upstream.
func (f Filters) matchesPostFilters(fam *famdb.Family) bool {
	if !f.stageFilterDisabled() {
		members := f.stageMembership()
		matched := false
		for _, s := range fam.Stages() {
			if members[s] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
		if f.IsHMM {
			inSearch := false
			for _, s := range fam.SearchStages {
				if members[s] {
					inSearch = true
					break
				}
			}
			if !inSearch {
				return false
			}
		}
	}
	if f.RepeatType != "" {
		full := fam.RepeatType
		if fam.RepeatSubtype != "" {
			full += "/" + fam.RepeatSubtype
		}
		if !strings.HasPrefix(strings.ToLower(full), strings.ToLower(f.RepeatType)) {
			return false
		}
	}
	if f.Name != "" && !strings.HasPrefix(strings.ToLower(fam.Name), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

// isWholeDB reports whether the taxon scope covers the whole tree, the
// precondition for enumeration strategies 1 and 2 (spec §4.7).
func (f Filters) isWholeDB() bool {
	return f.TaxID == famdb.RootTaxID && f.Ancestors && f.Descendants
}

// GetAccessionsFiltered implements spec §4.7's three enumeration
// strategies and deduplicates across clade attachments.
func (s *Store) GetAccessionsFiltered(f Filters) []string {
	switch {
	case f.isWholeDB() && f.StageSet && f.Stage != 80:
		return s.enumerateByStage(f)
	case f.isWholeDB():
		return s.enumerateWholeDB(f)
	default:
		return s.enumerateByLineage(f)
	}
}

func (s *Store) allContainers() []*container.Container {
	out := []*container.Container{s.Root.Container}
	for _, p := range s.sortedPartitions() {
		out = append(out, s.Leaves[p].Container)
	}
	return out
}

// enumerateByStage walks ByStage/<stage>/ across every container,
// avoiding the lineage walk entirely (strategy 1).
func (s *Store) enumerateByStage(f Filters) []string {
	members := f.stageMembership()
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.allContainers() {
		for stage := range members {
			for _, acc := range c.Index.ByStage[stage] {
				if seen[acc] {
					continue
				}
				fam := c.Families[acc]
				if fam == nil || !passesCuratedFilter(fam, f) || !f.matchesPostFilters(fam) {
					continue
				}
				seen[acc] = true
				out = append(out, acc)
			}
		}
	}
	return out
}

// enumerateWholeDB walks every family in every container (strategy 2).
func (s *Store) enumerateWholeDB(f Filters) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.allContainers() {
		for acc, fam := range c.Families {
			if seen[acc] {
				continue
			}
			if !passesCuratedFilter(fam, f) || !f.matchesPostFilters(fam) {
				continue
			}
			seen[acc] = true
			out = append(out, acc)
		}
	}
	return out
}

// enumerateByLineage resolves the lineage on the root, then for each
// node in the walk asks the owning leaf for its directly attached
// accessions, deduplicating across nodes (strategy 3; a family attached
// to multiple clades in the walk must be emitted once).
func (s *Store) enumerateByLineage(f Filters) []string {
	tree := s.Root.GetLineage(f.TaxID, f.Ancestors, f.Descendants, true)
	var ids []uint32
	flattenLineage(tree, &ids)

	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		accs, ok := s.GetFamiliesForTaxon(id, f.curatedFilter())
		if !ok {
			continue
		}
		for _, acc := range accs {
			if seen[acc] {
				continue
			}
			fam := s.GetFamilyByAccession(acc)
			if fam == nil || !f.matchesPostFilters(fam) {
				continue
			}
			seen[acc] = true
			out = append(out, acc)
		}
	}
	return out
}

func flattenLineage(t *container.LineageTree, out *[]uint32) {
	if t == nil {
		return
	}
	*out = append(*out, t.TaxID)
	for _, c := range t.Children {
		flattenLineage(c, out)
	}
}

func passesCuratedFilter(fam *famdb.Family, f Filters) bool {
	switch {
	case f.CuratedOnly:
		return fam.IsCurated()
	case f.UncuratedOnly:
		return !fam.IsCurated()
	default:
		return true
	}
}
