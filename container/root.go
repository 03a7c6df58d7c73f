package container

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/dfam-consortium/famdb"
)

// RootContainer wraps the root partition file (spec §4.5): the family
// records and indices any container has, plus the full and pruned
// taxonomy trees, a names cache kept resident for every lookup that
// does not need the full tree, and the RepeatPeps reference protein
// blob. It is the one file every store directory must have exactly
// one of.
type RootContainer struct {
	*Container
	lock *flock.Flock

	Taxonomy *famdb.Taxonomy

	// PrunedParent/PrunedChildren hold the pruned tree (spec §4.6.a/b):
	// only taxa with family data directly attached, each linked to its
	// nearest such ancestor, so clade-scoped queries over a deep,
	// mostly-linear taxonomy don't walk thousands of uninteresting nodes.
	PrunedParent   map[uint32]uint32
	PrunedChildren map[uint32][]uint32

	namesCache map[uint32]famdb.NamesDumpEntry
	RepeatPeps string

	lineageCache map[uint32][]uint32
}

// CreateRoot makes a new, empty root container at path over tax, ready
// for write_taxonomy/update_pruned_taxa calls and a first Save.
func CreateRoot(path string, tax *famdb.Taxonomy, info DBInfo) *RootContainer {
	c := NewContainer(path, true)
	c.DBName = info.Name
	c.DBVersion = info.Version
	c.DBDate = info.Date
	c.DBDescription = info.Description
	c.DBCopyright = info.Copyright
	return &RootContainer{
		Container:      c,
		lock:           flock.New(path + ".lock"),
		Taxonomy:       tax,
		PrunedParent:   make(map[uint32]uint32),
		PrunedChildren: make(map[uint32][]uint32),
		namesCache:     tax.NamesDump(),
		lineageCache:   make(map[uint32][]uint32),
	}
}

// Lock/Unlock mirror LeafContainer's single-writer discipline.
func (r *RootContainer) Lock() error {
	ok, err := r.lock.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("container: %s is locked by another writer", r.Path)
	}
	return nil
}

func (r *RootContainer) Unlock() error { return r.lock.Unlock() }

// beginChange appends a two-phase changelog entry (spec §7); callers
// flip it verified after the corresponding mutation succeeds.
func (r *RootContainer) beginChange(now, message string) int {
	r.Changelog = append(r.Changelog, ChangelogEntry{Timestamp: now, Message: message})
	r.dirty = true
	return len(r.Changelog) - 1
}

func (r *RootContainer) endChange(idx int) { r.Changelog[idx].Verified = true }

// WriteTaxonomyFull persists the full tree and refreshes the names
// cache; it is the root analogue of LeafContainer's WriteTaxonomy.
func (r *RootContainer) WriteTaxonomyFull(now string) {
	idx := r.beginChange(now, "Taxonomy Written")
	r.namesCache = r.Taxonomy.NamesDump()
	r.endChange(idx)
}

// UpdatePrunedTaxa rebuilds the pruned tree (spec §4.6.a). It always
// performs the full rebuild over the whole taxonomy; touched is not used
// to narrow the work, so the incremental case (§4.6.b) gets the same
// result by recomputing everything.
//
// A tax_id belongs to the pruned tree (is "valued") iff it carries
// family data directly attached (spec.md:52); val_parent is the nearest
// valued ancestor, or null if none exists (spec.md:52, §4.6).
func (r *RootContainer) UpdatePrunedTaxa(touched []uint32, now string) {
	idx := r.beginChange(now, "Pruned Tree Updated")
	defer r.endChange(idx)

	interesting := make(map[uint32]bool, len(r.Taxonomy.Nodes))
	var mark func(id uint32) bool
	mark = func(id uint32) bool {
		if v, ok := interesting[id]; ok {
			return v
		}
		node := r.Taxonomy.Get(id)
		if node == nil {
			return false
		}
		for _, c := range node.Children {
			mark(c)
		}
		result := len(node.FamilyAccessions) > 0
		interesting[id] = result
		return result
	}
	mark(famdb.RootTaxID)

	parent := make(map[uint32]uint32, len(interesting))
	children := make(map[uint32][]uint32, len(interesting))

	var nearestInterestingAncestor func(id uint32) (uint32, bool)
	nearestInterestingAncestor = func(id uint32) (uint32, bool) {
		node := r.Taxonomy.Get(id)
		if node == nil || !node.HasParent {
			return 0, false
		}
		p := r.Taxonomy.Get(node.ParentID)
		for p != nil {
			if interesting[p.TaxID] {
				return p.TaxID, true
			}
			if !p.HasParent {
				return 0, false
			}
			p = r.Taxonomy.Get(p.ParentID)
		}
		return 0, false
	}

	ids := make([]uint32, 0, len(interesting))
	for id, v := range interesting {
		if v {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if id == famdb.RootTaxID {
			continue
		}
		if p, ok := nearestInterestingAncestor(id); ok {
			parent[id] = p
			children[p] = append(children[p], id)
		}
	}

	r.PrunedParent = parent
	r.PrunedChildren = children
	_ = touched // full rebuild covers the incremental case; kept for call-site symmetry with leaf.WriteTaxonomy
}

// SpeciesMatch is one hit from ResolveSpecies: a candidate tax_id and
// whether its name matched the query exactly or only as a substring.
type SpeciesMatch struct {
	TaxID uint32
	Exact bool
}

// ResolveSpecies implements spec §4.5 resolve_species. A positive
// integer query that names a known tax_id short-circuits to an exact
// match on that id. Otherwise every taxon name containing the query as
// a substring is returned, annotated exact when the name equals the
// query outright, starts with "query <" (the NCBI homonym-disambiguation
// suffix), or sanitizes to the same key as the query. When nothing
// matches and allowSimilar is set, the scan is retried with Soundex
// equality standing in for substring containment. Results are ordered
// exact matches first, each group by ascending tax_id.
func (r *RootContainer) ResolveSpecies(term string, allowSimilar bool) []SpeciesMatch {
	if id, err := strconv.ParseUint(term, 10, 32); err == nil {
		if _, ok := r.namesCache[uint32(id)]; ok {
			return []SpeciesMatch{{TaxID: uint32(id), Exact: true}}
		}
	}

	sanitizedQuery := strings.ToLower(famdb.SanitizeName(term))
	homonymPrefix := term + " <"

	var exact, substr []SpeciesMatch
	seenExact := make(map[uint32]bool)
	seenSubstr := make(map[uint32]bool)
	for taxID, entries := range r.namesCache {
		for _, e := range entries {
			name := e[1]
			isExact := name == term || strings.HasPrefix(name, homonymPrefix) ||
				strings.ToLower(famdb.SanitizeName(name)) == sanitizedQuery
			if isExact {
				if !seenExact[taxID] {
					seenExact[taxID] = true
					exact = append(exact, SpeciesMatch{TaxID: taxID, Exact: true})
				}
				continue
			}
			if strings.Contains(name, term) {
				if !seenSubstr[taxID] {
					seenSubstr[taxID] = true
					substr = append(substr, SpeciesMatch{TaxID: taxID, Exact: false})
				}
			}
		}
	}

	if len(exact) == 0 && len(substr) == 0 && allowSimilar {
		code := famdb.Soundex(sanitizedQuery)
		for candidateKey, id := range r.Taxonomy.AllTaxaNames() {
			if famdb.Soundex(candidateKey) == code && !seenSubstr[id] {
				seenSubstr[id] = true
				substr = append(substr, SpeciesMatch{TaxID: id, Exact: false})
			}
		}
	}

	sort.Slice(exact, func(i, j int) bool { return exact[i].TaxID < exact[j].TaxID })
	sort.Slice(substr, func(i, j int) bool { return substr[i].TaxID < substr[j].TaxID })
	return append(exact, substr...)
}

// ErrAmbiguousSpecies is returned by ResolveOneSpecies when more than
// one tax_id matches and no single exact match breaks the tie.
var ErrAmbiguousSpecies = fmt.Errorf("container: species name is ambiguous")

// ErrUnknownSpecies is returned when nothing matches, exactly or by
// substring/Soundex.
var ErrUnknownSpecies = fmt.Errorf("container: no taxon matches species name")

// ResolveOneSpecies requires a single resolution: exactly one exact
// match, or (failing that) exactly one match overall; otherwise it
// reports ambiguity (spec §4.5 resolve_one_species).
func (r *RootContainer) ResolveOneSpecies(term string) (uint32, error) {
	matches := r.ResolveSpecies(term, true)
	exactCount := 0
	var lastExact uint32
	for _, m := range matches {
		if m.Exact {
			exactCount++
			lastExact = m.TaxID
		}
	}
	switch {
	case exactCount == 1:
		return lastExact, nil
	case len(matches) == 0:
		return 0, ErrUnknownSpecies
	case len(matches) == 1:
		return matches[0].TaxID, nil
	default:
		return 0, ErrAmbiguousSpecies
	}
}

// ResolveTaxonArg resolves a CLI-style argument that may be a bare
// tax_id or a species name, the convenience the core's method set
// leaves to callers (spec §6 CLI surface: every subcommand accepts
// either form interchangeably).
func (r *RootContainer) ResolveTaxonArg(arg string) (uint32, error) {
	if id, err := strconv.ParseUint(arg, 10, 32); err == nil {
		if r.Taxonomy.Get(uint32(id)) != nil {
			return uint32(id), nil
		}
		return 0, ErrUnknownSpecies
	}
	return r.ResolveOneSpecies(arg)
}

// FindTaxon returns the partition_id owning taxID, and false if taxID
// is unknown (spec §4.5 find_taxon: dispatches on the node's stored
// Partition attribute).
func (r *RootContainer) FindTaxon(taxID uint32) (uint32, bool) {
	node := r.Taxonomy.Get(taxID)
	if node == nil {
		return 0, false
	}
	return node.Partition, true
}

// LineageTree is one node of a get_lineage result: taxID followed by
// one subtree per child actually walked (spec §4.5 get_lineage's
// nested-list shape `[n, child_tree_1, child_tree_2, …]`).
type LineageTree struct {
	TaxID    uint32
	Children []*LineageTree
}

// GetLineage builds the (optionally ancestor-wrapped) descendant tree
// rooted at taxID. descendants selects whether children are walked at
// all; complete selects the full tree's Children versus the pruned
// tree's PrunedChildren; ancestors wraps the result in successive
// [parent, subtree] pairs up to the root (spec §4.5 get_lineage).
func (r *RootContainer) GetLineage(taxID uint32, ancestors, descendants, complete bool) *LineageTree {
	base := r.descendantTree(taxID, descendants, complete)
	if !ancestors {
		return base
	}
	for node := r.Taxonomy.Get(taxID); node != nil && node.HasParent; node = r.Taxonomy.Get(node.ParentID) {
		base = &LineageTree{TaxID: node.ParentID, Children: []*LineageTree{base}}
	}
	return base
}

func (r *RootContainer) descendantTree(taxID uint32, descend, complete bool) *LineageTree {
	node := &LineageTree{TaxID: taxID}
	if !descend {
		return node
	}
	var childIDs []uint32
	if complete {
		if t := r.Taxonomy.Get(taxID); t != nil {
			childIDs = t.Children
		}
	} else {
		childIDs = r.PrunedChildren[taxID]
	}
	for _, c := range childIDs {
		node.Children = append(node.Children, r.descendantTree(c, descend, complete))
	}
	return node
}

// GetLineagePath returns the (scientific_name, partition_id) pairs from
// root to taxID, caching results per instance since repeated sibling
// queries re-request overlapping prefixes (spec §4.5 get_lineage_path).
type LineagePathEntry struct {
	ScientificName string
	PartitionID    uint32
}

func (r *RootContainer) GetLineagePath(taxID uint32) []LineagePathEntry {
	if cached, ok := r.lineageCache[taxID]; ok {
		out := make([]LineagePathEntry, len(cached))
		for i, id := range cached {
			node := r.Taxonomy.Get(id)
			out[i] = LineagePathEntry{ScientificName: node.ScientificName(), PartitionID: node.Partition}
		}
		return out
	}
	var chain []uint32
	for node := r.Taxonomy.Get(taxID); node != nil; node = r.Taxonomy.Get(node.ParentID) {
		chain = append(chain, node.TaxID)
		if !node.HasParent {
			break
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	r.lineageCache[taxID] = chain
	out := make([]LineagePathEntry, len(chain))
	for i, id := range chain {
		node := r.Taxonomy.Get(id)
		out[i] = LineagePathEntry{ScientificName: node.ScientificName(), PartitionID: node.Partition}
	}
	return out
}

// GetAllTaxaNames exposes the sanitized-name reverse index (spec §4.5
// get_all_taxa_names), read from the Taxonomy's own index; a loaded
// root rebuilds that index from the persisted full tree.
func (r *RootContainer) GetAllTaxaNames() map[string]uint32 {
	return r.Taxonomy.AllTaxaNames()
}

// WriteRepeatPeps stores the RepeatPeps reference protein blob (spec
// §4.5 write_repeatpeps); it is a single opaque text blob, not parsed.
func (r *RootContainer) WriteRepeatPeps(data string, now string) {
	idx := r.beginChange(now, "RepeatPeps Written")
	r.RepeatPeps = data
	r.endChange(idx)
}

// EditDescription replaces db_description, the operation behind the
// CLI's edit_description subcommand (spec §6).
func (r *RootContainer) EditDescription(text, now string) {
	idx := r.beginChange(now, "Description Edited")
	r.DBDescription = text
	r.endChange(idx)
}

// Save writes the root container: shared header/families/indices/
// changelog (matching leaf framing exactly so a directory scan can
// identify file kind purely from IsRoot), then the full tree, the
// pruned tree, the names cache, and the RepeatPeps blob.
func (r *RootContainer) Save() error {
	f, err := ensureFile(r.Path)
	if err != nil {
		return fmt.Errorf("container: creating %s: %w", r.Path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := r.writeHeader(w); err != nil {
		return err
	}
	if err := r.writeFamilies(w); err != nil {
		return err
	}
	if err := r.writeIndices(w); err != nil {
		return err
	}
	if err := r.writeChangelog(w); err != nil {
		return err
	}
	if err := r.writeFullTree(w); err != nil {
		return err
	}
	if err := r.writePrunedTree(w); err != nil {
		return err
	}
	if err := writeJSON(w, r.namesCache); err != nil {
		return err
	}
	if err := writeBlob(w, []byte(r.RepeatPeps)); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	r.dirty = false
	return f.Sync()
}

func (r *RootContainer) writeFullTree(w *bufio.Writer) error {
	ids := make([]uint32, 0, len(r.Taxonomy.Nodes))
	for id := range r.Taxonomy.Nodes {
		ids = append(ids, id)
	}
	sortUint32s(ids)

	if err := writeUint32(w, uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		n := r.Taxonomy.Get(id)
		if err := writeUint32(w, n.TaxID); err != nil {
			return err
		}
		if err := writeBool(w, n.HasParent); err != nil {
			return err
		}
		if err := writeUint32(w, n.ParentID); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(n.Weight)); err != nil {
			return err
		}
		if err := writeUint32(w, n.Partition); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(n.Names))); err != nil {
			return err
		}
		for _, name := range n.Names {
			if err := writeString(w, name.Kind); err != nil {
				return err
			}
			if err := writeString(w, name.Value); err != nil {
				return err
			}
		}
		if err := writeStringSlice(w, n.FamilyAccessions); err != nil {
			return err
		}
	}
	return nil
}

func (r *RootContainer) writePrunedTree(w *bufio.Writer) error {
	ids := make([]uint32, 0, len(r.PrunedParent))
	for id := range r.PrunedChildren {
		if _, ok := r.PrunedParent[id]; !ok {
			ids = append(ids, id) // the pruned root itself
		}
	}
	pids := make([]uint32, 0, len(r.PrunedParent))
	for id := range r.PrunedParent {
		pids = append(pids, id)
	}
	sortUint32s(pids)
	if err := writeUint32(w, uint32(len(pids))); err != nil {
		return err
	}
	for _, id := range pids {
		if err := writeUint32(w, id); err != nil {
			return err
		}
		if err := writeUint32(w, r.PrunedParent[id]); err != nil {
			return err
		}
	}
	return nil
}

// LoadRoot opens an existing root container at path.
func LoadRoot(path string) (*RootContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	c, err := loadCommon(br, path)
	if err != nil {
		return nil, err
	}
	if !c.IsRoot {
		return nil, fmt.Errorf("container: %s is a leaf container, not a root", path)
	}
	if !c.LastChangelogVerified() {
		return nil, ErrInterruptedWrite
	}

	r := &RootContainer{
		Container:      c,
		lock:           flock.New(path + ".lock"),
		PrunedParent:   make(map[uint32]uint32),
		PrunedChildren: make(map[uint32][]uint32),
		lineageCache:   make(map[uint32][]uint32),
	}

	tax, err := r.readFullTree(br)
	if err != nil {
		return nil, err
	}
	r.Taxonomy = tax

	if err := r.readPrunedTree(br); err != nil {
		return nil, err
	}
	if err := readJSON(br, &r.namesCache); err != nil {
		return nil, err
	}
	repBytes, err := readBlob(br)
	if err != nil {
		return nil, err
	}
	r.RepeatPeps = string(repBytes)

	return r, nil
}

func (r *RootContainer) readFullTree(br *bufio.Reader) (*famdb.Taxonomy, error) {
	n, err := readUint32(br)
	if err != nil {
		return nil, err
	}

	type rawNode struct {
		id, parentID, weight, partition uint32
		hasParent                       bool
		names                           []famdb.Name
		accessions                      []string
	}
	raw := make([]rawNode, n)

	b := famdb.NewTaxonomyBuilder()
	for i := uint32(0); i < n; i++ {
		var rn rawNode
		if rn.id, err = readUint32(br); err != nil {
			return nil, err
		}
		if rn.hasParent, err = readBool(br); err != nil {
			return nil, err
		}
		if rn.parentID, err = readUint32(br); err != nil {
			return nil, err
		}
		if rn.weight, err = readUint32(br); err != nil {
			return nil, err
		}
		if rn.partition, err = readUint32(br); err != nil {
			return nil, err
		}
		nNames, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < nNames; j++ {
			kind, err := readString(br)
			if err != nil {
				return nil, err
			}
			value, err := readString(br)
			if err != nil {
				return nil, err
			}
			rn.names = append(rn.names, famdb.Name{Kind: kind, Value: value})
			b.AddName(rn.id, value, kind)
		}
		if rn.accessions, err = readStringSlice(br); err != nil {
			return nil, err
		}

		if rn.hasParent {
			b.AddNode(rn.id, rn.parentID)
		} else {
			b.RegisterNode(rn.id)
		}
		raw[i] = rn
	}

	tax, err := b.Build()
	if err != nil {
		return nil, err
	}
	for _, rn := range raw {
		node := tax.Get(rn.id)
		if node == nil {
			continue
		}
		node.Weight = uint64(rn.weight)
		node.Partition = rn.partition
		node.FamilyAccessions = rn.accessions
	}
	return tax, nil
}

func (r *RootContainer) readPrunedTree(br *bufio.Reader) error {
	n, err := readUint32(br)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		id, err := readUint32(br)
		if err != nil {
			return err
		}
		parent, err := readUint32(br)
		if err != nil {
			return err
		}
		r.PrunedParent[id] = parent
		r.PrunedChildren[parent] = append(r.PrunedChildren[parent], id)
	}
	return nil
}
