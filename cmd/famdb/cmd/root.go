// Package cmd implements the famdb command-line surface (spec §6): a
// thin layer over the famdb/store query and write operations.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time; "dev" otherwise.
var Version = "dev"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "famdb",
	Short: "Transposable Element family database toolkit",
	Long: fmt.Sprintf(`famdb - Transposable Element family database toolkit

A command-line toolkit for querying a partitioned FamDB directory: name
and lineage resolution, filtered family enumeration, and appending new
family records from a JSON array of already-parsed families.

Version: %s
`, Version),
}

// Execute adds all child commands to RootCmd and runs it. Called once
// from main.main(); exits 1 when command execution returns an error.
// Errors raised inside a command, such as a broken pipe on output, exit
// 1 through checkError instead.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringP("dir", "", ".", "directory holding the partitioned database")
	RootCmd.PersistentFlags().BoolP("verbose", "", false, "print verbose information")
}
