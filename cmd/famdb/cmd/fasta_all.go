package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfam-consortium/famdb/store"
)

// fastaAllCmd is undocumented in the CLI surface (spec §6): it dumps
// every curated family's consensus sequence in FASTA form.
var fastaAllCmd = &cobra.Command{
	Use:    "fasta_all",
	Short:  "Dump all curated families as FASTA",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		f := store.NewFilters()
		f.CuratedOnly = true
		for _, acc := range s.GetAccessionsFiltered(f) {
			fam := s.GetFamilyByAccession(acc)
			if fam == nil || fam.Consensus == "" {
				continue
			}
			fmt.Printf(">%s %s\n%s\n", fam.Identity(), fam.Name, fam.Consensus)
		}
	},
}

func init() {
	RootCmd.AddCommand(fastaAllCmd)
}
