package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/compsize/internal"
)

var logger = internal.GetLogger("compsize_cmd")

// Exit codes of the command.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNoFiles   = 2
	ExitNoExtents = 3
)

func Main(args []string) error {
	return newApp(os.Stdout, os.Stderr).Run(reorderArgs(args))
}

func newApp(stdout, stderr io.Writer) *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print version only",
	}
	return &cli.App{
		Name:      "compsize",
		Usage:     "Find compression type and ratio of files on btrfs.",
		UsageText: "compsize [options] FILE-OR-DIR...",
		Description: `Walks the given files and directories and reports how much disk space
they use per compression type. Extents shared between files (reflinks,
snapshots, dedupe) are counted once.

Examples:
$ compsize /home
$ compsize -x -b --workers 8 /srv/data /srv/backup`,
		Version:         internal.Version(),
		HideHelpCommand: true,
		Flags:           compsizeFlags(),
		Action:          run,
		Writer:          stdout,
		ErrWriter:       stderr,
		// errors are turned into exit codes by the caller
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// ExitCode maps the error returned by Main to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, internal.ErrNoFiles):
		return ExitNoFiles
	case errors.Is(err, internal.ErrNoExtents):
		return ExitNoExtents
	default:
		return ExitFailure
	}
}

// reorderArgs moves every option in front of the paths, so that
// "compsize /data -b" works like "compsize -b /data". Everything after "--"
// is a path.
func reorderArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	newArgs := []string{args[0]}
	var paths []string
	flags := append(compsizeFlags(), cli.VersionFlag, cli.HelpFlag)
	for i := 1; i < len(args); i++ {
		option := args[i]
		if option == "--" {
			paths = append(paths, args[i+1:]...)
			break
		}
		if ok, hasValue := isFlag(flags, option); ok {
			newArgs = append(newArgs, option)
			if hasValue && i+1 < len(args) {
				i++
				newArgs = append(newArgs, args[i])
			}
		} else {
			paths = append(paths, option)
		}
	}
	if len(paths) == 0 {
		return newArgs
	}
	// paths may look like options
	newArgs = append(newArgs, "--")
	return append(newArgs, paths...)
}

func isFlag(flags []cli.Flag, option string) (bool, bool) {
	if !strings.HasPrefix(option, "-") || option == "-" {
		return false, false
	}
	// --V or -v work the same
	option = strings.TrimLeft(option, "-")
	for _, flag := range flags {
		_, isBool := flag.(*cli.BoolFlag)
		for _, name := range flag.Names() {
			if option == name || strings.HasPrefix(option, name+"=") {
				return true, !isBool && !strings.Contains(option, "=")
			}
		}
	}
	return false, false
}

// unknownOption reports the first path argument that looks like an option.
func unknownOption(args []string) error {
	for _, a := range args {
		if strings.HasPrefix(a, "-") && a != "-" {
			if _, err := os.Lstat(a); err != nil {
				return fmt.Errorf("unknown option: %s", a)
			}
		}
	}
	return nil
}
