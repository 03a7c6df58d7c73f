// Package famdb implements the core of a partitioned on-disk database of
// Transposable Element families attached to an NCBI-shaped taxonomy tree.
//
// The package layout mirrors the component split of the design: the
// taxonomy model, family record and soundex/sanitize helpers live here;
// the weighted partitioner lives in famdb/partition; the on-disk
// container format and the partitioned store live in famdb/container
// and famdb/store.
package famdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shenwei356/breader"
)

// RootTaxID is the tax_id of the taxonomy root. The NCBI source lists the
// root as its own parent; that self-loop is rewritten to "no parent" on
// load (see TaxonomyBuilder.Build).
const RootTaxID uint32 = 1

// Name classes the system gives special treatment to. Unknown classes
// from the source are kept verbatim on the Taxon as they arrive.
const (
	NameScientific          = "scientific name"
	NameCommon              = "common name"
	NameSanitizedScientific = "sanitized scientific name"
	NameSanitizedSynonym    = "sanitized synonym"
)

// Name is a single (kind, value) pair attached to a Taxon, kept in the
// order the source presented it.
type Name struct {
	Kind  string
	Value string
}

// Taxon is one node of the taxonomy tree.
type Taxon struct {
	TaxID     uint32
	ParentID  uint32 // meaningful only when HasParent is true
	HasParent bool

	Names    []Name
	Children []uint32

	// FamilyAccessions lists accessions of families attached directly to
	// this node (not to descendants). Populated by the store as families
	// are added; empty on a freshly built tree.
	FamilyAccessions []string

	// Weight is the byte size attributed to this node's own family
	// payload (not the subtree sum); the partitioner derives subtree
	// sums from it.
	Weight uint64

	// Partition records which chunk owns this node.
	Partition uint32
}

// ScientificName returns the first "scientific name" entry, or "" if none.
func (t *Taxon) ScientificName() string {
	for _, n := range t.Names {
		if n.Kind == NameScientific {
			return n.Value
		}
	}
	return ""
}

// Taxonomy is the in-memory rooted tree of taxa, plus the sanitized-name
// reverse index used by name resolution.
type Taxonomy struct {
	Nodes map[uint32]*Taxon

	// bySanitizedName maps sanitize(lower(name)) to the tax_ids that
	// carry it; names are not required to be globally unique.
	bySanitizedName map[string][]uint32

	maxTaxID uint32
}

// MaxTaxID returns the largest tax_id observed while building the tree.
func (t *Taxonomy) MaxTaxID() uint32 { return t.maxTaxID }

// Get returns the Taxon for id, or nil if absent.
func (t *Taxonomy) Get(id uint32) *Taxon { return t.Nodes[id] }

// ErrMissingParent is returned when a child references a parent tax_id
// that was never observed in the node stream.
type ErrMissingParent struct {
	Child  uint32
	Parent uint32
}

func (e *ErrMissingParent) Error() string {
	return fmt.Sprintf("famdb: taxon %d references missing parent %d", e.Child, e.Parent)
}

// TaxonomyBuilder accumulates (tax_id, parent_id) pairs and name tuples
// streamed in from either a relational source or NCBI dump files, then
// links the tree in one pass on Build. This mirrors the accumulate-then-
// link shape of the teacher's NewTaxonomy, generalized from a bare
// parent map to the full Taxon model required here.
type TaxonomyBuilder struct {
	nodes    map[uint32]*Taxon
	order    []uint32 // insertion order of nodes, for stable iteration
	maxTaxID uint32
}

// NewTaxonomyBuilder returns an empty builder.
func NewTaxonomyBuilder() *TaxonomyBuilder {
	return &TaxonomyBuilder{nodes: make(map[uint32]*Taxon, 1024)}
}

func (b *TaxonomyBuilder) ensure(id uint32) *Taxon {
	t, ok := b.nodes[id]
	if !ok {
		t = &Taxon{TaxID: id}
		b.nodes[id] = t
		b.order = append(b.order, id)
	}
	if id > b.maxTaxID {
		b.maxTaxID = id
	}
	return t
}

// AddNode records a (tax_id, parent_id) pair. Calling it more than once
// for the same tax_id overwrites the recorded parent (last write wins).
func (b *TaxonomyBuilder) AddNode(taxID, parentID uint32) {
	t := b.ensure(taxID)
	t.ParentID = parentID
	t.HasParent = true
	b.ensure(parentID)
}

// RegisterNode ensures taxID exists in the tree without asserting a
// parent, for reconstructing a persisted tree where orphan/root shape
// was already resolved on a prior Build (see container/root.go).
func (b *TaxonomyBuilder) RegisterNode(taxID uint32) {
	b.ensure(taxID)
}

// AddName records a name tuple for taxID. Kind is taken verbatim from the
// source's name_class column.
func (b *TaxonomyBuilder) AddName(taxID uint32, value, kind string) {
	if value == "" {
		return
	}
	t := b.ensure(taxID)
	t.Names = append(t.Names, Name{Kind: kind, Value: value})
}

// Build links every node to its parent, appends to the parent's Children
// in stable tax_id-ascending order, rewrites the root's self-parent (and
// any other self-loop, a known source anomaly) to "no parent", and
// builds the sanitized-name reverse index. It fails if a child
// references a parent never seen as a node.
func (b *TaxonomyBuilder) Build() (*Taxonomy, error) {
	for _, id := range b.order {
		t := b.nodes[id]
		if id == RootTaxID {
			t.HasParent = false
			t.ParentID = 0
			continue
		}
		if !t.HasParent {
			continue // observed only as somebody's parent; legal interior anchor
		}
		if t.ParentID == t.TaxID {
			t.HasParent = false
			continue
		}
		if _, ok := b.nodes[t.ParentID]; !ok {
			return nil, &ErrMissingParent{Child: t.TaxID, Parent: t.ParentID}
		}
	}

	tax := &Taxonomy{
		Nodes:           b.nodes,
		bySanitizedName: make(map[string][]uint32, len(b.nodes)),
		maxTaxID:        b.maxTaxID,
	}

	// Stable ascending order keeps Children order -- and therefore every
	// downstream stable traversal -- reproducible across runs.
	sortedIDs := make([]uint32, len(b.order))
	copy(sortedIDs, b.order)
	sort.Slice(sortedIDs, func(i, j int) bool { return sortedIDs[i] < sortedIDs[j] })

	for _, id := range sortedIDs {
		t := b.nodes[id]
		if id == RootTaxID || !t.HasParent {
			continue
		}
		parent := b.nodes[t.ParentID]
		parent.Children = append(parent.Children, t.TaxID)
	}

	for _, id := range sortedIDs {
		t := b.nodes[id]
		for _, n := range t.Names {
			switch n.Kind {
			case NameScientific, NameSanitizedScientific, NameSanitizedSynonym, NameCommon:
				key := strings.ToLower(SanitizeName(n.Value))
				tax.bySanitizedName[key] = append(tax.bySanitizedName[key], id)
			}
		}
	}

	return tax, nil
}

// LookupSanitizedName returns the tax_ids whose scientific, sanitized
// scientific, sanitized synonym or common names sanitize to key (expected
// already lower-cased and sanitized).
func (t *Taxonomy) LookupSanitizedName(key string) []uint32 {
	return t.bySanitizedName[key]
}

// AllTaxaNames returns the map from lowercased sanitized name to tax_id,
// taking the first tax_id recorded for each key (get_all_taxa_names in
// spec §4.5). Keys come from scientific names, sanitized scientific
// names, sanitized synonyms and common names alike.
func (t *Taxonomy) AllTaxaNames() map[string]uint32 {
	out := make(map[string]uint32, len(t.bySanitizedName))
	for k, ids := range t.bySanitizedName {
		if len(ids) > 0 {
			out[k] = ids[0]
		}
	}
	return out
}

// NamesDumpEntry is the JSON-encoded shape of one entry in the root
// container's NamesCache: an ordered list of [kind, value] pairs.
type NamesDumpEntry = [][2]string

// NamesDump builds the {tax_id: [[kind, value], ...]} map the root
// container persists as NamesCache and loads back on open.
func (t *Taxonomy) NamesDump() map[uint32]NamesDumpEntry {
	out := make(map[uint32]NamesDumpEntry, len(t.Nodes))
	for id, node := range t.Nodes {
		entries := make(NamesDumpEntry, len(node.Names))
		for i, n := range node.Names {
			entries[i] = [2]string{n.Kind, n.Value}
		}
		out[id] = entries
	}
	return out
}

// LoadNCBINodesDump streams tax_id|parent_id|... rows from an NCBI-format
// nodes.dmp file into the builder, in the shape of the teacher's
// NewTaxonomyFromNCBI (which reads the analogous two-column case through
// shenwei356/breader).
func (b *TaxonomyBuilder) LoadNCBINodesDump(path string) error {
	parseFunc := func(line string) (interface{}, bool, error) {
		items := strings.Split(line, "|")
		if len(items) < 2 {
			return nil, false, nil
		}
		child, e := strconv.ParseUint(strings.TrimSpace(items[0]), 10, 32)
		if e != nil {
			return nil, false, e
		}
		parent, e := strconv.ParseUint(strings.TrimSpace(items[1]), 10, 32)
		if e != nil {
			return nil, false, e
		}
		return [2]uint32{uint32(child), uint32(parent)}, true, nil
	}

	reader, err := breader.NewBufferedReader(path, 8, 100, parseFunc)
	if err != nil {
		return fmt.Errorf("famdb: reading nodes dump %s: %w", path, err)
	}
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return fmt.Errorf("famdb: parsing nodes dump %s: %w", path, chunk.Err)
		}
		for _, data := range chunk.Data {
			pair := data.([2]uint32)
			b.AddNode(pair[0], pair[1])
		}
	}
	return nil
}

// LoadNCBINamesDump streams tax_id|name_txt|unique_name|name_class|...
// rows from an NCBI-format names.dmp file into the builder.
func (b *TaxonomyBuilder) LoadNCBINamesDump(path string) error {
	type nameRow struct {
		TaxID uint32
		Value string
		Class string
	}
	parse := func(line string) (interface{}, bool, error) {
		items := strings.Split(line, "|")
		if len(items) < 4 {
			return nil, false, nil
		}
		taxID, err := strconv.ParseUint(strings.TrimSpace(items[0]), 10, 32)
		if err != nil {
			return nil, false, err
		}
		return nameRow{
			TaxID: uint32(taxID),
			Value: strings.TrimSpace(items[1]),
			Class: strings.TrimSpace(items[3]),
		}, true, nil
	}
	reader, err := breader.NewBufferedReader(path, 8, 100, parse)
	if err != nil {
		return fmt.Errorf("famdb: reading names dump %s: %w", path, err)
	}
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return fmt.Errorf("famdb: parsing names dump %s: %w", path, chunk.Err)
		}
		for _, data := range chunk.Data {
			row := data.(nameRow)
			b.AddName(row.TaxID, row.Value, row.Class)
		}
	}
	return nil
}
