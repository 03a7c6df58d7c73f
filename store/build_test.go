package store

import (
	"testing"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/container"
)

func buildBuildFixtureTaxonomy(t *testing.T) *famdb.Taxonomy {
	t.Helper()
	b := famdb.NewTaxonomyBuilder()
	b.AddNode(1, 1)
	b.AddNode(10, 1)
	b.AddNode(20, 1)
	b.AddName(1, "root", famdb.NameScientific)
	b.AddName(10, "Mammalia", famdb.NameScientific)
	b.AddName(20, "Drosophila melanogaster", famdb.NameScientific)
	tax, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tax.Get(10).Weight = 1
	tax.Get(20).Weight = 1
	return tax
}

func TestBuildLaysOutRootAndLeavesThenReopens(t *testing.T) {
	dir := t.TempDir()
	tax := buildBuildFixtureTaxonomy(t)
	info := container.DBInfo{Name: "built", Version: "1.0", Date: "2026-01-01"}

	fam1 := &famdb.Family{Accession: "DF0000001", Name: "A", Clades: []uint32{10}}
	fam2 := &famdb.Family{Accession: "DF0000002", Name: "B", Clades: []uint32{20}}

	built, err := Build(dir, "test", "famdb", tax, 1_000_000, info, []*famdb.Family{fam1, fam2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := built.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(built dir): %v", err)
	}
	defer s.Close()

	if got := s.GetFamilyByAccession("DF0000001"); got == nil || got.Name != "A" {
		t.Fatalf("GetFamilyByAccession(DF0000001) = %v", got)
	}
	if got := s.GetFamilyByAccession("DF0000002"); got == nil || got.Name != "B" {
		t.Fatalf("GetFamilyByAccession(DF0000002) = %v", got)
	}
}
