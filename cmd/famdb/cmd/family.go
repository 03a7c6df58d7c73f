package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var familyCmd = &cobra.Command{
	Use:   "family <accession>",
	Short: "Print one family record by accession",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		fam := s.GetFamilyByAccession(args[0])
		if fam == nil {
			checkError(fmt.Errorf("no such family: %s", args[0]))
		}
		format := getFlagString(cmd, "format")
		printFamilySummary(fam, format)
	},
}

func init() {
	RootCmd.AddCommand(familyCmd)
	familyCmd.Flags().StringP("format", "", "summary", "output format: summary|hmm|hmm_species|fasta_name|fasta_acc|embl|embl_meta|embl_seq")
}
