package famdb

import "testing"

func TestSanitizeNameCollapsesWhitespaceCommaUnderscore(t *testing.T) {
	cases := map[string]string{
		"Mus musculus":        "Mus_musculus",
		"Homo sapiens, human": "Homo_sapiens_human",
		"a__b":                "a_b",
		"a,  ,b":              "a_b",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeNameStripsBracketsAndQuotes(t *testing.T) {
	cases := map[string]string{
		"Mus musculus <mouse>": "Mus_musculus_mouse",
		"O'Brien's find":       "OBriens_find",
		"(parenthetical)":      "parenthetical",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeNameIsIdempotent(t *testing.T) {
	inputs := []string{
		"Mus musculus <mouse>",
		"Homo sapiens, human",
		"already_sanitized",
		"",
		"  weird,, <spacing>  ",
	}
	for _, in := range inputs {
		once := SanitizeName(in)
		twice := SanitizeName(once)
		if once != twice {
			t.Errorf("SanitizeName not idempotent on %q: once=%q twice=%q", in, once, twice)
		}
	}
}
