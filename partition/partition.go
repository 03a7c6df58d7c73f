// Package partition implements the weighted taxonomy partitioner (spec
// §4.2): it cuts a taxonomy tree into chunks of bounded byte size so that
// every non-root chunk is a contiguous subtree and the root chunk is the
// residue.
//
// The naive formulation is O(|V|^2) (one full rescan per cut), and both
// tie-break modes use it. The modes differ only in the order candidates
// are scanned: InsertionOrder follows a caller-supplied order, and
// TaxIDOrder scans ascending tax_ids, sorted with
// twotwotwo/sorts/sortutil.
package partition

import (
	"fmt"

	"github.com/twotwotwo/sorts/sortutil"

	"github.com/dfam-consortium/famdb"
)

// TieBreak selects the order candidates are scanned in when multiple
// nodes share the same maximal tot_weight < S. The source's original
// behavior (dict iteration order) is underspecified; this package
// documents and ships two concrete, stable choices (spec §4.2, §9).
type TieBreak int

const (
	// InsertionOrder scans candidates in the order given by Partition's
	// insertionOrder argument (the order TaxonomyBuilder observed them).
	// When that argument is nil, the scan falls back to ascending tax_id
	// order. This is the default and is required for the worked example
	// in spec §8.
	InsertionOrder TieBreak = iota
	// TaxIDOrder scans candidates in ascending tax_id order, computed via
	// a parallel sort for large trees.
	TaxIDOrder
)

// ErrUnpartitionable is returned when the root still exceeds the size
// bound and no unassigned node has 0 < tot_weight < S -- i.e. some
// single node's own weight is at least S (for example one leaf heavier
// than S), a configuration error.
type ErrUnpartitionable struct {
	SizeBound uint64
}

func (e *ErrUnpartitionable) Error() string {
	return fmt.Sprintf("partition: no node has 0 < weight < %d while the root exceeds it; a single node's own weight is not below the size bound", e.SizeBound)
}

// Result is the outcome of Partition: the chunk manifest plus a
// per-node chunk_id assignment.
type Result struct {
	Chunks  []famdb.Chunk
	ChunkOf map[uint32]uint32 // tax_id -> chunk_id
}

// Partition cuts tax into chunks of at most sizeBound bytes. order picks
// the tie-break used when multiple candidate subtrees share the same
// maximal weight strictly less than sizeBound; insertionOrder is the
// order tax_ids were first seen by the taxonomy builder (pass nil to
// fall back to ascending tax_id order, used by TaxIDOrder).
func Partition(tax *famdb.Taxonomy, sizeBound uint64, order TieBreak, insertionOrder []uint32) (*Result, error) {
	if sizeBound == 0 {
		return nil, fmt.Errorf("partition: sizeBound must be positive")
	}

	totWeight := make(map[uint32]uint64, len(tax.Nodes))
	chunkOf := make(map[uint32]uint32, len(tax.Nodes))

	// Post-order accumulation of subtree weight sums, iterative so deep
	// taxonomies (NCBI goes ~40 levels) never risk a recursion-depth
	// problem (spec §9 "Recursion").
	var scanIDs []uint32
	if order == TaxIDOrder {
		scanIDs = ascendingTaxIDs(tax)
	} else if insertionOrder != nil {
		scanIDs = insertionOrder
	} else {
		scanIDs = ascendingTaxIDs(tax)
	}

	childrenOrder := make([]uint32, 0, len(tax.Nodes))
	visited := make(map[uint32]bool, len(tax.Nodes))
	postOrderIterative(tax, famdb.RootTaxID, &childrenOrder, visited)

	for _, id := range childrenOrder {
		node := tax.Get(id)
		if node == nil {
			continue
		}
		totWeight[id] += node.Weight
		if node.HasParent {
			totWeight[node.ParentID] += totWeight[id]
		}
	}

	var chunks []famdb.Chunk
	var nextChunkID uint32 = 1

	for totWeight[famdb.RootTaxID] > sizeBound {
		best, ok := selectCandidate(tax, totWeight, chunkOf, sizeBound, scanIDs)
		if !ok {
			return nil, &ErrUnpartitionable{SizeBound: sizeBound}
		}

		chunkID := nextChunkID
		nextChunkID++

		preWeight := totWeight[best]
		nodes := assignSubtree(tax, best, chunkID, chunkOf)

		// Subtract the pre-assignment weight from every proper ancestor.
		node := tax.Get(best)
		for node.HasParent {
			totWeight[node.ParentID] -= preWeight
			node = tax.Get(node.ParentID)
		}
		totWeight[best] = 0

		chunks = append(chunks, famdb.Chunk{
			ChunkID: chunkID,
			TRoot:   best,
			Bytes:   preWeight,
			Nodes:   nodes,
		})
	}

	// Everything still unassigned belongs to chunk 0.
	var chunk0Nodes []uint32
	for _, id := range scanIDs {
		if _, ok := chunkOf[id]; !ok {
			chunkOf[id] = 0
			chunk0Nodes = append(chunk0Nodes, id)
		}
	}

	chunk0 := famdb.Chunk{
		ChunkID: 0,
		TRoot:   famdb.RootTaxID,
		Bytes:   totWeight[famdb.RootTaxID],
		Nodes:   chunk0Nodes,
	}

	allChunks := append([]famdb.Chunk{chunk0}, chunks...)
	populateFRoots(tax, allChunks, chunkOf)

	return &Result{Chunks: allChunks, ChunkOf: chunkOf}, nil
}

// postOrderIterative appends a post-order traversal of the subtree
// rooted at id to *out, using an explicit stack instead of recursion.
func postOrderIterative(tax *famdb.Taxonomy, id uint32, out *[]uint32, visited map[uint32]bool) {
	type frame struct {
		id        uint32
		childIdx  int
	}
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := tax.Get(top.id)
		if node == nil || top.childIdx >= len(node.Children) {
			if !visited[top.id] {
				visited[top.id] = true
				*out = append(*out, top.id)
			}
			stack = stack[:len(stack)-1]
			continue
		}
		child := node.Children[top.childIdx]
		top.childIdx++
		if !visited[child] {
			stack = append(stack, frame{id: child})
		}
	}
}

// selectCandidate scans for the node maximizing tot_weight subject to
// 0 < tot_weight < sizeBound, among nodes not yet assigned to a chunk,
// breaking ties by the first such node encountered in scanIDs.
func selectCandidate(tax *famdb.Taxonomy, totWeight map[uint32]uint64, chunkOf map[uint32]uint32, sizeBound uint64, scanIDs []uint32) (uint32, bool) {
	var best uint32
	var bestWeight uint64
	found := false
	for _, id := range scanIDs {
		if _, assigned := chunkOf[id]; assigned {
			continue
		}
		w := totWeight[id]
		if w == 0 || w >= sizeBound {
			continue
		}
		if !found || w > bestWeight {
			best = id
			bestWeight = w
			found = true
		}
	}
	return best, found
}

// assignSubtree labels id and every still-unassigned descendant with
// chunkID, returning the resulting node list in scan order.
func assignSubtree(tax *famdb.Taxonomy, id uint32, chunkID uint32, chunkOf map[uint32]uint32) []uint32 {
	var nodes []uint32
	stack := []uint32{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := chunkOf[cur]; ok {
			continue
		}
		chunkOf[cur] = chunkID
		nodes = append(nodes, cur)
		node := tax.Get(cur)
		if node == nil {
			continue
		}
		stack = append(stack, node.Children...)
	}
	return nodes
}

// populateFRoots fills in Chunk.FRoots for every chunk in place.
//
// For a non-root chunk, F_roots is every tax_id in the chunk whose
// parent_id lies in chunk 0 -- for a contiguous subtree chunk that is
// exactly the chunk's own T_root. For chunk 0, F_roots is the set of
// tax_ids that are maximal ancestors of a leaf with family data in
// chunk 0, whose entire descendant closure also sits in chunk 0.
func populateFRoots(tax *famdb.Taxonomy, chunks []famdb.Chunk, chunkOf map[uint32]uint32) {
	for i := range chunks {
		c := &chunks[i]
		if c.ChunkID == 0 {
			c.FRoots = chunk0FRoots(tax, chunkOf)
			continue
		}
		for _, id := range c.Nodes {
			node := tax.Get(id)
			if node == nil {
				continue
			}
			if !node.HasParent || chunkOf[node.ParentID] == 0 {
				c.FRoots = append(c.FRoots, id)
			}
		}
	}
}

// chunk0FRoots finds maximal chunk-0 ancestors of any node with family
// data, whose entire descendant closure stays within chunk 0.
func chunk0FRoots(tax *famdb.Taxonomy, chunkOf map[uint32]uint32) []uint32 {
	hasNonZeroDescendant := make(map[uint32]bool, len(tax.Nodes))

	var mark func(id uint32) bool
	mark = func(id uint32) bool {
		if v, ok := hasNonZeroDescendant[id]; ok {
			return v
		}
		node := tax.Get(id)
		result := chunkOf[id] != 0
		if node != nil {
			for _, c := range node.Children {
				if mark(c) {
					result = true
				}
			}
		}
		hasNonZeroDescendant[id] = result
		return result
	}
	mark(famdb.RootTaxID)

	hasFamilyBeneath := make(map[uint32]bool, len(tax.Nodes))
	var markFamily func(id uint32) bool
	markFamily = func(id uint32) bool {
		if v, ok := hasFamilyBeneath[id]; ok {
			return v
		}
		node := tax.Get(id)
		result := false
		if node != nil {
			result = len(node.FamilyAccessions) > 0
			for _, c := range node.Children {
				if markFamily(c) {
					result = true
				}
			}
		}
		hasFamilyBeneath[id] = result
		return result
	}
	markFamily(famdb.RootTaxID)

	// A node only qualifies as an F_root by virtue of a proper descendant
	// carrying family data -- never by carrying family data itself. A
	// childless node can never be its own ancestor, so it is never
	// emitted (spec §8 scenario 8: a childless chunk-0 taxon with family
	// attached directly yields no F_root at all).
	var roots []uint32
	var walk func(id uint32)
	walk = func(id uint32) {
		node := tax.Get(id)
		if node == nil {
			return
		}
		if chunkOf[id] == 0 && !hasNonZeroDescendant[id] {
			familyStrictlyBelow := false
			for _, c := range node.Children {
				if hasFamilyBeneath[c] {
					familyStrictlyBelow = true
					break
				}
			}
			if familyStrictlyBelow {
				roots = append(roots, id)
				return
			}
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(famdb.RootTaxID)
	return roots
}

// ascendingTaxIDs returns every tax_id in tax in ascending order, using
// a parallel sort for large trees (the documented TaxIDOrder mode).
func ascendingTaxIDs(tax *famdb.Taxonomy) []uint32 {
	ids64 := make(sortutil.Uint64Slice, 0, len(tax.Nodes))
	for id := range tax.Nodes {
		ids64 = append(ids64, uint64(id))
	}
	sortutil.Uint64s(ids64)
	out := make([]uint32, len(ids64))
	for i, v := range ids64 {
		out[i] = uint32(v)
	}
	return out
}
