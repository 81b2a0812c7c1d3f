package main

import (
	"os"

	"github.com/zhengshuai-xiao/compsize/cmd"
)

func main() {
	// errors have already been reported by the command
	os.Exit(cmd.ExitCode(cmd.Main(os.Args)))
}
