package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dfam-consortium/famdb/container"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage <term>...",
	Short: "Print the taxonomic lineage tree for one or more taxa",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		ancestors := getFlagBool(cmd, "ancestors")
		descendants := getFlagBool(cmd, "descendants")
		complete := getFlagBool(cmd, "complete")
		format := getFlagString(cmd, "format")

		for _, term := range args {
			taxID, err := s.Root.ResolveTaxonArg(term)
			checkError(err)

			switch format {
			case "semicolon":
				for _, e := range s.Root.GetLineagePath(taxID) {
					fmt.Printf("%s;", e.ScientificName)
				}
				fmt.Println()
			case "totals":
				tree := s.Root.GetLineage(taxID, ancestors, descendants, complete)
				fmt.Printf("%s: %d taxa in lineage\n", term, countLineageNodes(tree))
			default:
				tree := s.Root.GetLineage(taxID, ancestors, descendants, complete)
				printLineageTree(tree, 0)
			}
		}
	},
}

func countLineageNodes(t *container.LineageTree) int {
	if t == nil {
		return 0
	}
	n := 1
	for _, c := range t.Children {
		n += countLineageNodes(c)
	}
	return n
}

func printLineageTree(t *container.LineageTree, depth int) {
	if t == nil {
		return
	}
	fmt.Printf("%s%d\n", strings.Repeat("  ", depth), t.TaxID)
	for _, c := range t.Children {
		printLineageTree(c, depth+1)
	}
}

func init() {
	RootCmd.AddCommand(lineageCmd)
	lineageCmd.Flags().BoolP("ancestors", "a", false, "include ancestor chain to the root")
	lineageCmd.Flags().BoolP("descendants", "d", false, "include descendant subtree")
	lineageCmd.Flags().BoolP("complete", "k", false, "use the full tree instead of the pruned tree")
	lineageCmd.Flags().BoolP("curated-only", "c", false, "accepted for parity with families; has no effect on lineage output")
	lineageCmd.Flags().BoolP("uncurated-only", "u", false, "accepted for parity with families; has no effect on lineage output")
	lineageCmd.Flags().StringP("format", "", "pretty", "output format: pretty|semicolon|totals")
}
