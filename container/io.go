package container

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dfam-consortium/famdb"
)

// Save serializes the container's header and regions to Path, replacing
// any existing file. Region order is sorted where it affects nothing
// observable, to keep byte-identical output across runs with identical
// logical content (spec §8 "container round-trip" property).
func (c *Container) Save() error {
	f, err := ensureFile(c.Path)
	if err != nil {
		return fmt.Errorf("container: creating %s: %w", c.Path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := c.writeHeader(w); err != nil {
		return err
	}
	if err := c.writeFamilies(w); err != nil {
		return err
	}
	if err := c.writeIndices(w); err != nil {
		return err
	}
	if err := c.writeChangelog(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.dirty = false
	return f.Sync()
}

func (c *Container) writeHeader(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{FormatMainVersion, FormatMinorVersion}); err != nil {
		return err
	}
	for _, s := range []string{
		c.FamdbVersion, c.Created, c.DBName, c.DBVersion,
		c.DBDate, c.DBDescription, c.DBCopyright, c.FileInfoJSON,
	} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	if err := writeUint32(w, c.PartitionNum); err != nil {
		return err
	}
	if err := writeBool(w, c.IsRoot); err != nil {
		return err
	}
	if err := writeUint32(w, c.CountConsensus); err != nil {
		return err
	}
	return writeUint32(w, c.CountHMM)
}

func (c *Container) writeFamilies(w io.Writer) error {
	accs := make([]string, 0, len(c.Families))
	for acc := range c.Families {
		accs = append(accs, acc)
	}
	sort.Strings(accs)
	if err := writeUint32(w, uint32(len(accs))); err != nil {
		return err
	}
	for _, acc := range accs {
		if err := writeFamily(w, c.Families[acc]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) writeIndices(w io.Writer) error {
	// ByName
	names := make([]string, 0, len(c.Index.ByName))
	for n := range c.Index.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	if err := writeUint32(w, uint32(len(names))); err != nil {
		return err
	}
	for _, n := range names {
		if err := writeString(w, n); err != nil {
			return err
		}
		if err := writeString(w, c.Index.ByName[n]); err != nil {
			return err
		}
	}

	// ByStage
	stages := make([]int, 0, len(c.Index.ByStage))
	for s := range c.Index.ByStage {
		stages = append(stages, s)
	}
	sort.Ints(stages)
	if err := writeUint32(w, uint32(len(stages))); err != nil {
		return err
	}
	for _, s := range stages {
		if err := writeUint32(w, uint32(s)); err != nil {
			return err
		}
		if err := writeStringSlice(w, c.Index.ByStage[s]); err != nil {
			return err
		}
	}

	// NodesByTaxon, including empty groups seeded by WriteTaxonomy
	taxa := make([]uint32, 0, len(c.TaxonomySlice))
	for t := range c.TaxonomySlice {
		taxa = append(taxa, t)
	}
	sortUint32s(taxa)
	if err := writeUint32(w, uint32(len(taxa))); err != nil {
		return err
	}
	for _, t := range taxa {
		if err := writeUint32(w, t); err != nil {
			return err
		}
		if err := writeStringSlice(w, c.Index.ByTaxon[t]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) writeChangelog(w io.Writer) error {
	if err := writeUint32(w, uint32(len(c.Changelog))); err != nil {
		return err
	}
	for _, e := range c.Changelog {
		if err := writeString(w, e.Timestamp); err != nil {
			return err
		}
		if err := writeString(w, e.Message); err != nil {
			return err
		}
		if err := writeBool(w, e.Verified); err != nil {
			return err
		}
	}
	return nil
}

func sortUint32s(vs []uint32) {
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
}

// Load opens path and reads a Container's header and shared regions. It
// returns ErrInvalidFormat / ErrIncompatibleVersion for a malformed or
// unreadable-version file, matching spec §7's fatal-at-open taxonomy.
func Load(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	return loadCommon(r, path)
}

// loadCommon reads the header and shared regions (families, indices,
// changelog) from r, leaving the reader positioned at the start of any
// backend-specific trailing regions a caller (e.g. root.go) appends.
func loadCommon(r *bufio.Reader, path string) (*Container, error) {
	c := &Container{Path: path, Families: make(map[string]*famdb.Family), Index: newFamilyIndex(), TaxonomySlice: make(map[uint32]bool)}
	if err := c.readHeader(r); err != nil {
		return nil, err
	}
	if err := c.readFamilies(r); err != nil {
		return nil, err
	}
	if err := c.readIndices(r); err != nil {
		return nil, err
	}
	if err := c.readChangelog(r); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) readHeader(r *bufio.Reader) error {
	var m [8]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return ErrInvalidFormat
	}
	if m != Magic {
		return ErrInvalidFormat
	}
	mainV, err := r.ReadByte()
	if err != nil {
		return ErrInvalidFormat
	}
	minorV, err := r.ReadByte()
	if err != nil {
		return ErrInvalidFormat
	}
	if mainV != FormatMainVersion {
		return ErrIncompatibleVersion
	}
	_ = minorV

	fields := []*string{
		&c.FamdbVersion, &c.Created, &c.DBName, &c.DBVersion,
		&c.DBDate, &c.DBDescription, &c.DBCopyright, &c.FileInfoJSON,
	}
	for _, p := range fields {
		if *p, err = readString(r); err != nil {
			return err
		}
	}
	if c.PartitionNum, err = readUint32(r); err != nil {
		return err
	}
	if c.IsRoot, err = readBool(r); err != nil {
		return err
	}
	if c.CountConsensus, err = readUint32(r); err != nil {
		return err
	}
	if c.CountHMM, err = readUint32(r); err != nil {
		return err
	}
	return nil
}

func (c *Container) readFamilies(r *bufio.Reader) error {
	n, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		fam, err := readFamily(r)
		if err != nil {
			return err
		}
		c.Families[fam.Accession] = fam
	}
	return nil
}

func (c *Container) readIndices(r *bufio.Reader) error {
	nNames, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nNames; i++ {
		name, err := readString(r)
		if err != nil {
			return err
		}
		acc, err := readString(r)
		if err != nil {
			return err
		}
		c.Index.ByName[name] = acc
	}

	nStages, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nStages; i++ {
		stage, err := readUint32(r)
		if err != nil {
			return err
		}
		accs, err := readStringSlice(r)
		if err != nil {
			return err
		}
		c.Index.ByStage[int(stage)] = accs
	}

	nTaxa, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < nTaxa; i++ {
		taxID, err := readUint32(r)
		if err != nil {
			return err
		}
		accs, err := readStringSlice(r)
		if err != nil {
			return err
		}
		c.TaxonomySlice[taxID] = true
		c.Index.ByTaxon[taxID] = accs
	}
	return nil
}

func (c *Container) readChangelog(r *bufio.Reader) error {
	n, err := readUint32(r)
	if err != nil {
		return err
	}
	c.Changelog = make([]ChangelogEntry, n)
	for i := uint32(0); i < n; i++ {
		ts, err := readString(r)
		if err != nil {
			return err
		}
		msg, err := readString(r)
		if err != nil {
			return err
		}
		verified, err := readBool(r)
		if err != nil {
			return err
		}
		c.Changelog[i] = ChangelogEntry{Timestamp: ts, Message: msg, Verified: verified}
	}
	return nil
}

// LastChangelogVerified reports whether the container's most recent
// changelog entry is verified (true), matching spec §6/§7: a false
// terminal entry means the file was interrupted mid-write.
func (c *Container) LastChangelogVerified() bool {
	if len(c.Changelog) == 0 {
		return true
	}
	return c.Changelog[len(c.Changelog)-1].Verified
}
