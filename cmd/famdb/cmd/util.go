package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	isatty "github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/dfam-consortium/famdb/store"
)

var log = logging.MustGetLogger("famdb")

// checkError prints err and exits 1, unless err is nil. A broken pipe
// downstream (e.g. piping into `head`) is the one case the spec calls
// out explicitly (spec §6: exit 1 on unrecoverable broken pipe); it is
// reported quietly since stdout itself may no longer accept writes.
func checkError(err error) {
	if err == nil {
		return
	}
	if isBrokenPipe(err) {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func isBrokenPipe(err error) bool {
	if err == io.ErrClosedPipe {
		return true
	}
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		return sysErr == syscall.EPIPE
	}
	return false
}

func getFlagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	checkError(err)
	return v
}

// isTerminalStdout reports whether stdout is an interactive terminal;
// `names` uses it to truncate long names only when output is
// interactive. Table layout is the same whether or not stdout is piped.
func isTerminalStdout() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func getFlagInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	checkError(err)
	return v
}

// openStore opens the database directory named by the persistent --dir
// flag, exiting the process on any fatal-at-open error (spec §7). A
// leading "~" is expanded against the user's home directory so --dir
// behaves the way a shell would have expanded it.
func openStore(cmd *cobra.Command) *store.Store {
	dir := getFlagString(cmd, "dir")
	expanded, err := homedir.Expand(dir)
	checkError(err)
	existed, err := pathutil.DirExists(expanded)
	checkError(err)
	if !existed {
		checkError(fmt.Errorf("dir does not exist: %s", expanded))
	}
	s, err := store.Open(expanded)
	checkError(err)
	return s
}
