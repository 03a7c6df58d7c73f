package cmd

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Dump database metadata and counts",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		root := s.Root
		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}
		tbl := stable.New()
		tbl.HeaderWithFormat([]stable.Column{
			{Header: "field"},
			{Header: "value"},
		})
		tbl.AddRow([]interface{}{"db_name", root.DBName})
		tbl.AddRow([]interface{}{"db_version", root.DBVersion})
		tbl.AddRow([]interface{}{"db_date", root.DBDate})
		tbl.AddRow([]interface{}{"db_description", root.DBDescription})
		tbl.AddRow([]interface{}{"db_copyright", root.DBCopyright})
		tbl.AddRow([]interface{}{"famdb_version", root.FamdbVersion})
		tbl.AddRow([]interface{}{"partitions", humanize.Comma(int64(len(s.Leaves) + 1))})
		tbl.AddRow([]interface{}{"count_consensus", humanize.Comma(int64(root.CountConsensus))})
		tbl.AddRow([]interface{}{"count_hmm", humanize.Comma(int64(root.CountHMM))})
		fmt.Print(string(tbl.Render(style)))

		if getFlagBool(cmd, "history") {
			fmt.Println()
			fmt.Println("File history (root):")
			for _, e := range root.Changelog {
				fmt.Printf("  %s  %-24s  verified=%v\n", e.Timestamp, e.Message, e.Verified)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolP("history", "", false, "also print the root container's change log")
}
