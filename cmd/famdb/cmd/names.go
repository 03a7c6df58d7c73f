package cmd

import (
	"encoding/json"
	"fmt"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"
)

// maxNameColumnWidth caps the name column when printing to an
// interactive terminal, so a long scientific name doesn't wrap the
// rest of the table sideways.
const maxNameColumnWidth = 60

var namesCmd = &cobra.Command{
	Use:   "names <term>...",
	Short: "Search for taxa by name or tax_id",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		format := getFlagString(cmd, "format")

		type result struct {
			Term    string `json:"term"`
			TaxID   uint32 `json:"tax_id"`
			Name    string `json:"name"`
			Exact   bool   `json:"exact"`
		}
		var results []result
		for _, term := range args {
			for _, m := range s.Root.ResolveSpecies(term, true) {
				node := s.Root.Taxonomy.Get(m.TaxID)
				name := ""
				if node != nil {
					name = node.ScientificName()
				}
				results = append(results, result{Term: term, TaxID: m.TaxID, Name: name, Exact: m.Exact})
			}
		}

		if format == "json" {
			data, err := json.MarshalIndent(results, "", "  ")
			checkError(err)
			fmt.Println(string(data))
			return
		}

		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}
		tbl := stable.New()
		tbl.HeaderWithFormat([]stable.Column{
			{Header: "term"},
			{Header: "tax_id", Align: stable.AlignRight},
			{Header: "name"},
			{Header: "exact"},
		})
		name := func(s string) string { return s }
		if isTerminalStdout() {
			name = func(s string) string { return runewidth.Truncate(s, maxNameColumnWidth, "...") }
		}
		for _, r := range results {
			tbl.AddRow([]interface{}{r.Term, r.TaxID, name(r.Name), r.Exact})
		}
		fmt.Print(string(tbl.Render(style)))
	},
}

func init() {
	RootCmd.AddCommand(namesCmd)
	namesCmd.Flags().StringP("format", "", "pretty", "output format: pretty|json")
}
