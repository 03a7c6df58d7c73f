package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dfam-consortium/famdb"
)

// appendCmd implements spec §6's append operation. The EMBL-style text
// parser that produces Family values from a flat file is an external
// collaborator out of the core's scope (spec §1, §6 "EMBL append
// stream"); this command accepts that parser's already-resolved output
// as a JSON array of Family records, matching the core's own
// round-trippable field set.
var appendCmd = &cobra.Command{
	Use:   "append <path>",
	Short: "Append parsed family records to the database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		data, err := os.ReadFile(args[0])
		checkError(err)

		var families []*famdb.Family
		checkError(json.Unmarshal(data, &families))

		if desc := getFlagString(cmd, "description"); desc != "" {
			for _, f := range families {
				if f.Description == "" {
					f.Description = desc
				}
			}
		}

		res, err := s.Append(families)
		checkError(err)

		fmt.Printf("added: %d\n", res.Added)
		fmt.Printf("duplicates: %d\n", len(res.Duplicates))
		for _, mp := range res.MissingPartition {
			log.Warningf("Partition File Not Found for tax_id %d (family %s)", mp.TaxID, mp.Accession)
		}

		checkError(s.SaveAll())
	},
}

func init() {
	RootCmd.AddCommand(appendCmd)
	appendCmd.Flags().StringP("name", "", "", "override name on records missing one (unused placeholder, kept for CLI-shape parity)")
	appendCmd.Flags().StringP("description", "", "", "default description for records missing one")
}
