package famdb

import "testing"

func TestSoundexKnownCode(t *testing.T) {
	if got := Soundex("Robert"); got != "R163" {
		t.Errorf("Soundex(Robert) = %q, want R163", got)
	}
}

func TestSoundexHomophoneFormsMatch(t *testing.T) {
	if !SoundsLike("Robert", "Rupert") {
		t.Errorf("expected Robert and Rupert to share a Soundex code")
	}
}

func TestSoundexAlwaysFourChars(t *testing.T) {
	for _, w := range []string{"", "A", "Ox", "Mus musculus", "Xylophone"} {
		if got := Soundex(w); len(got) != 4 {
			t.Errorf("Soundex(%q) = %q, length %d, want 4", w, got, len(got))
		}
	}
}

func TestSoundexStableOnRepeatedCall(t *testing.T) {
	words := []string{"Robert", "Ashworth", "Smith", "Taxon"}
	for _, w := range words {
		first := Soundex(w)
		second := Soundex(w)
		if first != second {
			t.Errorf("Soundex(%q) not stable across calls: %q then %q", w, first, second)
		}
	}
}

func TestSoundsLikeIsSymmetric(t *testing.T) {
	pairs := [][2]string{{"Robert", "Rupert"}, {"Mouse", "House"}}
	for _, p := range pairs {
		if SoundsLike(p[0], p[1]) != SoundsLike(p[1], p[0]) {
			t.Errorf("SoundsLike(%q,%q) not symmetric", p[0], p[1])
		}
	}
}
