package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfam-consortium/famdb"
	"github.com/dfam-consortium/famdb/store"
)

var familiesCmd = &cobra.Command{
	Use:   "families <term>...",
	Short: "List families matching a taxon and a set of filters",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		f := store.NewFilters()
		f.Ancestors = getFlagBool(cmd, "ancestors")
		f.Descendants = getFlagBool(cmd, "descendants")
		f.CuratedOnly = getFlagBool(cmd, "curated-only")
		f.UncuratedOnly = getFlagBool(cmd, "uncurated-only")
		f.RepeatType = getFlagString(cmd, "class")
		f.Name = getFlagString(cmd, "name")
		if stage := getFlagInt(cmd, "stage"); stage != 0 {
			f.Stage = stage
			f.StageSet = true
		}
		format := getFlagString(cmd, "format")

		for _, term := range args {
			taxID, err := s.Root.ResolveTaxonArg(term)
			checkError(err)
			f.TaxID = taxID

			for _, acc := range s.GetAccessionsFiltered(f) {
				fam := s.GetFamilyByAccession(acc)
				if fam == nil {
					continue
				}
				printFamilySummary(fam, format)
			}
		}
	},
}

// printFamilySummary renders a Family in the one summary format the
// core itself can produce without an external serializer (spec §4.3:
// textual EMBL/HMM/FASTA export is an out-of-scope collaborator, so
// every other --format value falls back to this one with a notice).
func printFamilySummary(fam *famdb.Family, format string) {
	if format != "summary" && format != "" {
		fmt.Printf("# format %q requires an external serializer; showing summary\n", format)
	}
	fmt.Printf("%s\t%s\t%s\n", fam.Identity(), fam.Name, fam.Classification)
}

func init() {
	RootCmd.AddCommand(familiesCmd)
	familiesCmd.Flags().BoolP("ancestors", "a", true, "include ancestor clades")
	familiesCmd.Flags().BoolP("descendants", "d", true, "include descendant clades")
	familiesCmd.Flags().BoolP("curated-only", "c", false, "restrict to curated families")
	familiesCmd.Flags().BoolP("uncurated-only", "u", false, "restrict to uncurated families")
	familiesCmd.Flags().IntP("stage", "", 0, "search/buffer stage filter (80 = no filter, 95 = standard set)")
	familiesCmd.Flags().StringP("class", "", "", "repeat_type[/repeat_subtype] prefix filter")
	familiesCmd.Flags().StringP("name", "", "", "family name prefix filter")
	familiesCmd.Flags().StringP("format", "", "summary", "output format: summary|hmm|hmm_species|fasta_name|fasta_acc|embl|embl_meta|embl_seq")
}
