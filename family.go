package famdb

import (
	"regexp"
	"strconv"
	"strings"
)

// dfamAccessionPattern matches DF/DR accessions of the canonical shape
// used for binning: two letters, four digits split 2+2, then 3-6 more
// digits that are not part of the bin path.
var dfamAccessionPattern = regexp.MustCompile(`^(DF|DR)([0-9]{2})([0-9]{2})[0-9]{3,6}$`)

// uncuratedAccessionPattern is the authoritative "uncurated" shape per
// the resolved Open Question in spec.md §9: DR followed by exactly nine
// decimal digits. Everything else -- including longer DR forms -- is
// curated.
var uncuratedAccessionPattern = regexp.MustCompile(`^DR[0-9]{9}$`)

// TaxonThreshold is one row of a Family's per-taxon cutoff table.
type TaxonThreshold struct {
	TaxID uint32
	GA    float64
	TC    float64
	NC    float64
	FDR   float64
}

// Family is an immutable value object describing one TE family. Fields
// are grouped as in spec.md §3; optional fields use pointer/zero-value
// semantics ("present" tracked by a non-nil pointer or a non-empty
// string/slice, per field).
type Family struct {
	// Identity
	Accession string
	Version   *int
	Name      string // "" means absent; must be globally unique when set
	Length    int

	// Descriptive
	Title          string
	Author         string
	Description    string
	Classification string
	RepeatType     string
	RepeatSubtype  string
	Clades         []uint32
	DateCreated    string
	DateModified   string

	// Search metadata
	SearchStages  []int
	BufferStages  []string // tokens of form "N" or "N[a-b]"
	Refineable    bool
	TargetSiteCons string

	// Model
	Model          string
	Consensus      string
	MaxLength      int
	IsModelMasked  bool
	SeedCount      int
	BuildMethod    string
	SearchMethod   string
	TaxaThresholds []TaxonThreshold
	GeneralCutoff  *float64

	// Structured blobs, opaque JSON text
	Features        string
	CodingSequences string
	Aliases         string
	Citations       string
}

// AccessionBin returns the storage group path for this family's
// accession: Families/DF|DR/<d0d1>/<d2d3> for canonical Dfam-shaped
// accessions, else Families/Aux/<first two chars lowercased>.
func (f *Family) AccessionBin() string {
	return AccessionBin(f.Accession)
}

// AccessionBin computes the binning group path for an arbitrary
// accession string, independent of any Family value. Binning prevents
// any single container directory from exceeding the couple-hundred-
// thousand-sibling point at which the container backend degrades.
func AccessionBin(accession string) string {
	if m := dfamAccessionPattern.FindStringSubmatch(accession); m != nil {
		return "Families/" + m[1] + "/" + m[2] + "/" + m[3]
	}
	prefix := accession
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return "Families/Aux/" + strings.ToLower(prefix)
}

// Identity returns accession, or "accession.version" when Version is set.
func (f *Family) Identity() string {
	if f.Version != nil {
		return f.Accession + "." + strconv.Itoa(*f.Version)
	}
	return f.Accession
}

// IsCurated reports whether the family's accession has the curated
// shape: everything that is NOT exactly "DR" + nine decimal digits.
func (f *Family) IsCurated() bool {
	return !uncuratedAccessionPattern.MatchString(f.Accession)
}

// Stages returns the set of stage integers this family should be found
// under in the ByStage index: search_stages verbatim, plus the numeric
// prefix of every "N[a-b]"-shaped buffer_stages token.
func (f *Family) Stages() []int {
	seen := make(map[int]struct{}, len(f.SearchStages)+len(f.BufferStages))
	out := make([]int, 0, len(f.SearchStages)+len(f.BufferStages))
	add := func(s int) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range f.SearchStages {
		add(s)
	}
	for _, tok := range f.BufferStages {
		n, ok := bufferStagePrefix(tok)
		if ok {
			add(n)
		}
	}
	return out
}

var bufferStagePattern = regexp.MustCompile(`^([0-9]+)(\[[a-zA-Z]-[a-zA-Z]\])?$`)

func bufferStagePrefix(token string) (int, bool) {
	m := bufferStagePattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
