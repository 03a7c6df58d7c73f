package container

import (
	"path/filepath"
	"testing"

	"github.com/dfam-consortium/famdb"
)

func buildRootFixtureTaxonomy(t *testing.T) *famdb.Taxonomy {
	t.Helper()
	b := famdb.NewTaxonomyBuilder()
	b.AddNode(1, 1)
	b.AddNode(10, 1)
	b.AddNode(100, 10)
	b.AddNode(101, 10)
	b.AddNode(20, 1)
	b.AddName(1, "root", famdb.NameScientific)
	b.AddName(10, "Mammalia", famdb.NameScientific)
	b.AddName(100, "Mus musculus", famdb.NameScientific)
	b.AddName(100, "house mouse", famdb.NameCommon)
	b.AddName(101, "Rattus norvegicus", famdb.NameScientific)
	b.AddName(20, "Drosophila melanogaster", famdb.NameScientific)
	tax, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tax
}

func TestRootRoundTripPreservesTreeAndRepeatPeps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.0.famdb")
	tax := buildRootFixtureTaxonomy(t)
	root := CreateRoot(path, tax, testDBInfo())
	root.WriteTaxonomyFull("t0")
	root.WriteRepeatPeps(">pep1\nMKV\n", "t1")
	root.UpdatePrunedTaxa(nil, "t2")

	fam := &famdb.Family{Accession: "DF0000001", Name: "MouseFam", Clades: []uint32{100}}
	root.TaxonomySlice[100] = true
	if err := root.AddFamily(fam, "t3"); err != nil {
		t.Fatalf("AddFamily: %v", err)
	}
	tax.Get(100).FamilyAccessions = append(tax.Get(100).FamilyAccessions, fam.Accession)
	root.UpdatePrunedTaxa([]uint32{100}, "t4")

	if err := root.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := LoadRoot(path)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}
	if reopened.Taxonomy.Get(100) == nil {
		t.Fatalf("taxon 100 missing after reopen")
	}
	if reopened.Taxonomy.Get(100).ScientificName() != "Mus musculus" {
		t.Fatalf("ScientificName = %q, want Mus musculus", reopened.Taxonomy.Get(100).ScientificName())
	}
	if reopened.RepeatPeps != ">pep1\nMKV\n" {
		t.Fatalf("RepeatPeps = %q, want preserved blob", reopened.RepeatPeps)
	}
	if got := reopened.GetFamilyByAccession("DF0000001"); got == nil || got.Name != "MouseFam" {
		t.Fatalf("GetFamilyByAccession after reopen = %v", got)
	}
	// Only 100 itself carries family data directly; neither Mammalia (10)
	// nor root (1) do, so 100 has no valued ancestor at all and must not
	// appear in PrunedParent.
	if parent, ok := reopened.PrunedParent[100]; ok {
		t.Fatalf("PrunedParent[100] = (%d, true), want no entry", parent)
	}
}

func TestResolveOneSpeciesExactMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.0.famdb")
	tax := buildRootFixtureTaxonomy(t)
	root := CreateRoot(path, tax, testDBInfo())
	root.WriteTaxonomyFull("t0")

	id, err := root.ResolveOneSpecies("Mus musculus")
	if err != nil {
		t.Fatalf("ResolveOneSpecies: %v", err)
	}
	if id != 100 {
		t.Fatalf("ResolveOneSpecies(Mus musculus) = %d, want 100", id)
	}
}

func TestResolveOneSpeciesUnknownReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.0.famdb")
	tax := buildRootFixtureTaxonomy(t)
	root := CreateRoot(path, tax, testDBInfo())
	root.WriteTaxonomyFull("t0")

	if _, err := root.ResolveOneSpecies("Zonosaurus madagascariensis"); err != ErrUnknownSpecies {
		t.Fatalf("ResolveOneSpecies(unknown) = %v, want ErrUnknownSpecies", err)
	}
}

func TestGetLineagePathOrdersRootToLeaf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.0.famdb")
	tax := buildRootFixtureTaxonomy(t)
	root := CreateRoot(path, tax, testDBInfo())
	root.WriteTaxonomyFull("t0")

	path2 := root.GetLineagePath(100)
	want := []string{"root", "Mammalia", "Mus musculus"}
	if len(path2) != len(want) {
		t.Fatalf("GetLineagePath(100) = %v, want len %d", path2, len(want))
	}
	for i, name := range want {
		if path2[i].ScientificName != name {
			t.Fatalf("GetLineagePath(100)[%d] = %q, want %q", i, path2[i].ScientificName, name)
		}
	}
}

func TestOpenLeafAndLoadRootRejectEachOther(t *testing.T) {
	rootPath := filepath.Join(t.TempDir(), "root.0.famdb")
	leafPath := filepath.Join(t.TempDir(), "leaf.1.famdb")

	tax := buildRootFixtureTaxonomy(t)
	root := CreateRoot(rootPath, tax, testDBInfo())
	root.WriteTaxonomyFull("t0")
	if err := root.Save(); err != nil {
		t.Fatalf("root Save: %v", err)
	}

	leaf := CreateLeaf(leafPath, 1, testDBInfo())
	if err := leaf.Container.Save(); err != nil {
		t.Fatalf("leaf Save: %v", err)
	}

	if _, err := LoadRoot(leafPath); err == nil {
		t.Fatalf("expected LoadRoot to reject a leaf-shaped file")
	}
	if _, err := OpenLeaf(rootPath); err == nil {
		t.Fatalf("expected OpenLeaf to reject a root-shaped file")
	}
}
