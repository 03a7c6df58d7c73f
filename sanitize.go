package famdb

import "regexp"

var (
	reWhitespacePunct = regexp.MustCompile(`[\s,_]+`)
	reBracketsQuote   = regexp.MustCompile(`[()<>']+`)
)

// SanitizeName strips parens, angle brackets and apostrophes, then
// collapses runs of whitespace, commas and underscores into a single
// underscore. It must stay in sync with the source database's own
// normalization so that sanitized-name lookups agree across the pipeline.
//
// SanitizeName is idempotent: SanitizeName(SanitizeName(s)) == SanitizeName(s).
// Stripping before collapsing is what guarantees this: a bracket between
// two separators ("a ( c") cannot leave a "__" run behind.
func SanitizeName(name string) string {
	name = reBracketsQuote.ReplaceAllString(name, "")
	name = reWhitespacePunct.ReplaceAllString(name, "_")
	return name
}
