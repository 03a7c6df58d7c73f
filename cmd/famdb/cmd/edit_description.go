package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var editDescriptionCmd = &cobra.Command{
	Use:   "edit_description <text>",
	Short: "Replace the root container's db_description",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore(cmd)
		defer s.Close()

		s.Root.EditDescription(args[0], time.Now().UTC().Format(time.RFC3339))
		checkError(s.Root.Save())
	},
}

func init() {
	RootCmd.AddCommand(editDescriptionCmd)
}
