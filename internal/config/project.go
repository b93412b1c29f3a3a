package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DeployEntry is a file or directory copied beside the output binary after linking.
type DeployEntry struct {
	Src string `toml:"src"`
	Dst string `toml:"dst"`
}

// Project is the build description the engine consumes.
// It is filled by the loader once and never mutated afterwards:
// the engine treats it as an immutable value for the whole invocation.
type Project struct {
	ProjectName string
	OutputName  string
	ObjDir      string
	BinDir      string

	CompilerCmd string
	LinkerCmd   string

	Sources  []string // expanded, in project-file order (diagnostic determinism only)
	Includes []string // search order is semantically significant: first match wins
	CFlags   []string
	Defines  []string

	DebugCFlags   []string
	ReleaseCFlags []string

	LdFlags  []string // free-form linker flags, archives already split out
	LibDirs  []string
	Libs     []string
	Archives []string // placed after -l libs to satisfy left-to-right resolution

	MetaTool       string // optional; empty disables meta-object generation
	ResourceTool   string // optional; empty disables resource generation
	MetaScanDirs   []string
	ResourceInputs []string

	DeployFiles []DeployEntry
	DeployDirs  []DeployEntry
}

// OutputPath is where the linked executable lands.
func (p *Project) OutputPath() string {
	return filepath.Join(p.BinDir, p.OutputName)
}

// Validate rejects configurations the engine cannot build safely.
// In particular obj_dir must not overlap the source tree: obj_dir contents are
// engine-owned and may be deleted wholesale by `clean`.
func (p *Project) Validate() error {
	if p.ProjectName == "" {
		return fmt.Errorf("project name is empty")
	}
	if p.OutputName == "" {
		return fmt.Errorf("output name is empty")
	}
	if p.CompilerCmd == "" || p.LinkerCmd == "" {
		return fmt.Errorf("compiler and linker must be set")
	}
	if p.ObjDir == "" || p.ObjDir == "." {
		return fmt.Errorf("obj_dir %q would collide with the project root", p.ObjDir)
	}
	if len(p.Sources) == 0 {
		return fmt.Errorf("no source files configured")
	}

	for _, src := range p.Sources {
		if isInsideDir(src, p.ObjDir) {
			return fmt.Errorf("source %q lies inside obj_dir %q", src, p.ObjDir)
		}
	}
	for _, dir := range append(append([]string{}, p.Includes...), p.MetaScanDirs...) {
		if dir != "" && isInsideDir(dir, p.ObjDir) {
			return fmt.Errorf("directory %q lies inside obj_dir %q", dir, p.ObjDir)
		}
	}
	for _, res := range p.ResourceInputs {
		if isInsideDir(res, p.ObjDir) {
			return fmt.Errorf("resource %q lies inside obj_dir %q", res, p.ObjDir)
		}
	}

	if p.MetaTool != "" && len(p.MetaScanDirs) == 0 {
		return fmt.Errorf("meta tool configured but no scan directories given")
	}
	return nil
}

func isInsideDir(p string, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}
