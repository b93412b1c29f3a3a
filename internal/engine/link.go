package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/dabozzhub/pbj/internal/common"
	"github.com/dabozzhub/pbj/internal/config"
)

// linkNeeded reports whether the output binary must be (re)produced:
// something was compiled this run, the output is missing, or some object is
// newer than the output (a prior link was skipped or the user deleted things).
func linkNeeded(proj *config.Project, objFiles []string, anyCompiled bool) bool {
	if anyCompiled {
		return true
	}
	outStat, err := os.Stat(proj.OutputPath())
	if err != nil {
		return true
	}
	for _, obj := range objFiles {
		if objStat, err := os.Stat(obj); err == nil && objStat.ModTime().After(outStat.ModTime()) {
			return true
		}
	}
	return false
}

// linkCmdLine assembles the full linker argv. Ordering matters for
// left-to-right symbol resolution: free-form flags, then objects, then -L/-l,
// then archives, then the output. The archive sequence comes from the
// configuration; the engine never classifies flag strings itself.
func linkCmdLine(proj *config.Project, objFiles []string) []string {
	cmdLine := make([]string, 0, len(proj.LdFlags)+len(objFiles)+len(proj.LibDirs)+len(proj.Libs)+len(proj.Archives)+3)
	cmdLine = append(cmdLine, proj.LinkerCmd)
	cmdLine = append(cmdLine, proj.LdFlags...)
	cmdLine = append(cmdLine, objFiles...)
	for _, libDir := range proj.LibDirs {
		cmdLine = append(cmdLine, "-L"+libDir)
	}
	for _, lib := range proj.Libs {
		cmdLine = append(cmdLine, "-l"+lib)
	}
	cmdLine = append(cmdLine, proj.Archives...)
	cmdLine = append(cmdLine, "-o", proj.OutputPath())
	return cmdLine
}

// runLink invokes the linker once. Any non-zero exit is fatal for the build.
// The hash store is never touched here: link failures must not invalidate
// compile progress.
func runLink(ctx context.Context, proj *config.Project, objFiles []string, verbose bool) error {
	if err := common.MkdirForFile(proj.OutputPath()); err != nil {
		return err
	}

	cmdLine := linkCmdLine(proj, objFiles)
	if verbose {
		fmt.Printf("  [LD] %v\n", cmdLine)
	}

	exitCode, _, linkStderr := runChildProcess(ctx, cmdLine[0], cmdLine[1:])
	if exitCode != 0 {
		fmt.Print(string(linkStderr))
		return fmt.Errorf("linker exited with code %d", exitCode)
	}
	return nil
}
