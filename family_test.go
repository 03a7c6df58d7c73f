package famdb

import "testing"

func TestAccessionBinForCanonicalAccession(t *testing.T) {
	got := AccessionBin("DF0001234")
	want := "Families/DF/00/01"
	if got != want {
		t.Errorf("AccessionBin(DF0001234) = %q, want %q", got, want)
	}
}

func TestAccessionBinForAuxAccession(t *testing.T) {
	got := AccessionBin("XYZ999")
	want := "Families/Aux/xy"
	if got != want {
		t.Errorf("AccessionBin(XYZ999) = %q, want %q", got, want)
	}
}

func TestIdentityWithAndWithoutVersion(t *testing.T) {
	f := &Family{Accession: "DF0000001"}
	if got := f.Identity(); got != "DF0000001" {
		t.Errorf("Identity() = %q, want DF0000001", got)
	}
	v := 3
	f.Version = &v
	if got := f.Identity(); got != "DF0000001.3" {
		t.Errorf("Identity() = %q, want DF0000001.3", got)
	}
}

func TestIsCuratedRecognizesExactlyNineDigitDR(t *testing.T) {
	cases := map[string]bool{
		"DR123456789":  false, // exactly 9 digits: uncurated
		"DR1234567890": true,  // 10 digits: curated (longer DR form)
		"DF0001234":    true,
		"DR12345":      true,
	}
	for acc, wantCurated := range cases {
		f := &Family{Accession: acc}
		if got := f.IsCurated(); got != wantCurated {
			t.Errorf("IsCurated(%q) = %v, want %v", acc, got, wantCurated)
		}
	}
}

func TestStagesCombinesSearchAndBufferPrefixesDeduped(t *testing.T) {
	f := &Family{
		SearchStages: []int{35, 50},
		BufferStages: []string{"50[a-b]", "70", "35"},
	}
	got := f.Stages()
	want := []int{35, 50, 70}
	if len(got) != len(want) {
		t.Fatalf("Stages() = %v, want %v", got, want)
	}
	seen := make(map[int]bool, len(got))
	for _, v := range got {
		seen[v] = true
	}
	for _, v := range want {
		if !seen[v] {
			t.Fatalf("Stages() = %v, missing %d", got, v)
		}
	}
}

func TestStagesIgnoresMalformedBufferToken(t *testing.T) {
	f := &Family{BufferStages: []string{"not-a-stage"}}
	if got := f.Stages(); len(got) != 0 {
		t.Errorf("Stages() = %v, want empty", got)
	}
}
