package store

import "testing"

func TestGetAccessionsFilteredByCuratedOnly(t *testing.T) {
	dir := writeFixtureStore(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f := NewFilters()
	f.CuratedOnly = true
	accs := s.GetAccessionsFiltered(f)
	if len(accs) != 1 || accs[0] != "DF0000001" {
		t.Fatalf("GetAccessionsFiltered(CuratedOnly) = %v, want [DF0000001]", accs)
	}
}

func TestGetAccessionsFilteredByUncuratedOnly(t *testing.T) {
	dir := writeFixtureStore(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f := NewFilters()
	f.UncuratedOnly = true
	accs := s.GetAccessionsFiltered(f)
	if len(accs) != 1 || accs[0] != "DR000000001" {
		t.Fatalf("GetAccessionsFiltered(UncuratedOnly) = %v, want [DR000000001]", accs)
	}
}

func TestGetAccessionsFilteredByStageUsesIndexShortcut(t *testing.T) {
	dir := writeFixtureStore(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f := NewFilters()
	f.Stage = 35
	f.StageSet = true
	accs := s.GetAccessionsFiltered(f)
	if len(accs) != 1 || accs[0] != "DF0000001" {
		t.Fatalf("GetAccessionsFiltered(stage=35) = %v, want [DF0000001]", accs)
	}
}

func TestGetAccessionsFilteredByLineageScopesToSubtree(t *testing.T) {
	dir := writeFixtureStore(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f := NewFilters()
	f.TaxID = 20
	f.Ancestors = false
	accs := s.GetAccessionsFiltered(f)
	if len(accs) != 1 || accs[0] != "DR000000001" {
		t.Fatalf("GetAccessionsFiltered(taxID=20, no ancestors) = %v, want [DR000000001]", accs)
	}
}

func TestGetAccessionsFilteredByNamePrefix(t *testing.T) {
	dir := writeFixtureStore(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f := NewFilters()
	f.Name = "root"
	accs := s.GetAccessionsFiltered(f)
	if len(accs) != 1 || accs[0] != "DF0000001" {
		t.Fatalf("GetAccessionsFiltered(name=root) = %v, want [DF0000001]", accs)
	}
}
