package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dabozzhub/pbj/internal/common"
)

// deploy stages registered runtime dependencies beside the output binary.
// Problems here are logged and never fail the build: a missing DLL next to the
// executable is recoverable, a lost compile cache is not.
func (builder *Builder) deploy() {
	proj := builder.proj
	if len(proj.DeployFiles) == 0 && len(proj.DeployDirs) == 0 {
		return
	}

	fmt.Println("Deploying dependencies...")

	for _, entry := range proj.DeployFiles {
		dst := entry.Dst
		if dst == "" {
			dst = filepath.Base(entry.Src)
		}
		destPath := filepath.Join(proj.BinDir, dst)

		srcStat, err := os.Stat(entry.Src)
		if err != nil {
			logPbj.Error("deploy source missing", entry.Src, err)
			continue
		}
		if dstStat, err := os.Stat(destPath); err == nil && !srcStat.ModTime().After(dstStat.ModTime()) {
			continue
		}

		if err := common.CopyFile(entry.Src, destPath); err != nil {
			logPbj.Error("deploy failed", entry.Src, err)
			continue
		}
		if builder.verbose {
			fmt.Printf("  [DEPLOY] %s -> %s\n", entry.Src, destPath)
		}
	}

	for _, entry := range proj.DeployDirs {
		destPath := filepath.Join(proj.BinDir, entry.Dst)
		if _, err := os.Stat(destPath); err == nil {
			if err := os.RemoveAll(destPath); err != nil {
				logPbj.Error("deploy cannot replace", destPath, err)
				continue
			}
		}
		if err := common.CopyDir(entry.Src, destPath); err != nil {
			logPbj.Error("deploy failed", entry.Src, err)
			continue
		}
		if builder.verbose {
			fmt.Printf("  [DEPLOY] %s/ -> %s/\n", entry.Src, destPath)
		}
	}
}
