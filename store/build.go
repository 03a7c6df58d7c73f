package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/container"
	"github.com/dfam-consortium/famdb/partition"
)

// Build runs the weighted partitioner over tax and lays out a fresh
// store directory: one root file and one leaf file per non-zero chunk,
// all sharing a freshly minted partition_id (spec §3 "Manifest
// metadata"). families are routed to every chunk naming one of their
// clades, exactly as Append does for an already-open store.
//
// dir is checked and created the way the teacher's db-index/merge/split
// commands check their output directories: an existing, non-empty dir
// is refused rather than silently overwritten.
func Build(dir, prefix, ext string, tax *famdb.Taxonomy, sizeBound uint64, info container.DBInfo, families []*famdb.Family) (*Store, error) {
	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "store: checking output dir: %s", dir)
	}
	if existed {
		empty, err := pathutil.IsEmpty(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "store: checking output dir: %s", dir)
		}
		if !empty {
			return nil, fmt.Errorf("store: dir not empty: %s, choose another one", dir)
		}
	} else if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, errors.Wrapf(err, "store: creating output dir: %s", dir)
	}

	result, err := partition.Partition(tax, sizeBound, partition.InsertionOrder, nil)
	if err != nil {
		return nil, errors.Wrap(err, "store: partitioning taxonomy")
	}
	for id, chunkID := range result.ChunkOf {
		if node := tax.Get(id); node != nil {
			node.Partition = chunkID
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	partitionID := uuid.New().String()

	rootPath := filepath.Join(dir, fmt.Sprintf("%s.0.%s", prefix, ext))
	root := container.CreateRoot(rootPath, tax, info)

	leaves := make(map[uint32]*container.LeafContainer, len(result.Chunks)-1)
	for _, c := range result.Chunks {
		if c.ChunkID == 0 {
			continue
		}
		leafPath := filepath.Join(dir, fmt.Sprintf("%s.%d.%s", prefix, c.ChunkID, ext))
		leaves[c.ChunkID] = container.CreateLeaf(leafPath, c.ChunkID, info)
	}

	s := &Store{Dir: dir, Prefix: prefix, Ext: ext, Root: root, Leaves: leaves}

	manifest := famdb.Manifest{
		Meta:    famdb.ManifestMeta{PartitionID: partitionID, DBVersion: info.Version, DBDate: info.Date},
		FileMap: make(map[string]famdb.FileMapEntry, len(result.Chunks)),
	}
	for _, c := range result.Chunks {
		nameOf := func(id uint32) string {
			if node := tax.Get(id); node != nil {
				return node.ScientificName()
			}
			return ""
		}
		names := make([]string, len(c.FRoots))
		for i, id := range c.FRoots {
			names[i] = nameOf(id)
		}
		manifest.FileMap[fmt.Sprintf("%d", c.ChunkID)] = famdb.FileMapEntry{
			TRoot:       c.TRoot,
			Filename:    filepath.Base(filepath.Join(dir, fmt.Sprintf("%s.%d.%s", prefix, c.ChunkID, ext))),
			FRoots:      c.FRoots,
			TRootName:   nameOf(c.TRoot),
			FRootsNames: names,
		}
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, errors.Wrap(err, "store: marshaling manifest")
	}
	root.FileInfoJSON = string(data)
	for _, l := range leaves {
		l.FileInfoJSON = string(data)
	}
	s.manifest = manifest

	root.WriteTaxonomyFull(now)
	for _, c := range result.Chunks {
		if c.ChunkID == 0 {
			root.Container.WriteTaxonomy(c.Nodes)
		} else {
			leaves[c.ChunkID].WriteTaxonomy(c.Nodes)
		}
	}

	if _, err := s.Append(families); err != nil {
		return nil, errors.Wrap(err, "store: appending initial families")
	}

	if err := s.SaveAll(); err != nil {
		return nil, errors.Wrap(err, "store: writing new partition files")
	}

	return s, nil
}
