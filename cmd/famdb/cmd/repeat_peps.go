package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repeatPepsCmd = &cobra.Command{
	Use:   "repeat_peps",
	Short: "Print the RepeatPeps reference protein blob",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()
		fmt.Print(s.Root.RepeatPeps)
	},
}

func init() {
	RootCmd.AddCommand(repeatPepsCmd)
}
