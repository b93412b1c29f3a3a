package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// DefaultProjectFile is looked up in the working directory when -f is not given.
const DefaultProjectFile = "pbjfile.toml"

// pbjfile mirrors the TOML project description on disk.
type pbjfile struct {
	Project struct {
		Name   string `toml:"name"`
		Output string `toml:"output"`
		ObjDir string `toml:"obj_dir"`
		BinDir string `toml:"bin_dir"`
	} `toml:"project"`

	Toolchain struct {
		Compiler     string `toml:"compiler"`
		Linker       string `toml:"linker"`
		MetaTool     string `toml:"meta_tool"`
		ResourceTool string `toml:"resource_tool"`
	} `toml:"toolchain"`

	Build struct {
		Sources       []string `toml:"sources"`
		Includes      []string `toml:"includes"`
		CFlags        []string `toml:"cflags"`
		Defines       []string `toml:"defines"`
		DebugCFlags   []string `toml:"debug_cflags"`
		ReleaseCFlags []string `toml:"release_cflags"`
	} `toml:"build"`

	Link struct {
		LdFlags  []string `toml:"ldflags"`
		LibDirs  []string `toml:"lib_dirs"`
		Libs     []string `toml:"libs"`
		Archives []string `toml:"archives"`
	} `toml:"link"`

	Codegen struct {
		MetaScanDirs []string `toml:"meta_scan_dirs"`
		Resources    []string `toml:"resources"`
	} `toml:"codegen"`

	Deploy struct {
		Files []DeployEntry `toml:"files"`
		Dirs  []DeployEntry `toml:"dirs"`
	} `toml:"deploy"`
}

// Load reads a pbjfile.toml and produces the validated Project record.
func Load(fileName string) (*Project, error) {
	contents, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read project file: %w", err)
	}

	var raw pbjfile
	if err := toml.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", fileName, err)
	}

	sources, err := expandSourceGlobs(raw.Build.Sources)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ProjectName: raw.Project.Name,
		OutputName:  raw.Project.Output,
		ObjDir:      raw.Project.ObjDir,
		BinDir:      raw.Project.BinDir,

		CompilerCmd: raw.Toolchain.Compiler,
		LinkerCmd:   raw.Toolchain.Linker,

		Sources:  sources,
		Includes: raw.Build.Includes,
		CFlags:   raw.Build.CFlags,
		Defines:  raw.Build.Defines,

		DebugCFlags:   raw.Build.DebugCFlags,
		ReleaseCFlags: raw.Build.ReleaseCFlags,

		LibDirs:  raw.Link.LibDirs,
		Libs:     raw.Link.Libs,
		Archives: raw.Link.Archives,

		MetaTool:       raw.Toolchain.MetaTool,
		ResourceTool:   raw.Toolchain.ResourceTool,
		MetaScanDirs:   raw.Codegen.MetaScanDirs,
		ResourceInputs: raw.Codegen.Resources,

		DeployFiles: raw.Deploy.Files,
		DeployDirs:  raw.Deploy.Dirs,
	}

	applyDefaults(p)

	// older pbjfiles list static archives among ldflags; the engine wants them as
	// a dedicated sequence, so the split happens here, once, at load time
	p.LdFlags, p.Archives = splitArchiveFlags(raw.Link.LdFlags, p.Archives)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func applyDefaults(p *Project) {
	if p.OutputName == "" {
		p.OutputName = p.ProjectName
	}
	if p.ObjDir == "" {
		p.ObjDir = "obj"
	}
	if p.BinDir == "" {
		p.BinDir = "bin"
	}
	if p.CompilerCmd == "" {
		p.CompilerCmd = "g++"
	}
	if p.LinkerCmd == "" {
		p.LinkerCmd = p.CompilerCmd
	}
	if len(p.DebugCFlags) == 0 {
		p.DebugCFlags = []string{"-g", "-O0", "-DDEBUG"}
	}
	if len(p.ReleaseCFlags) == 0 {
		p.ReleaseCFlags = []string{"-O2", "-DNDEBUG"}
	}
}

// expandSourceGlobs turns glob entries into concrete file paths, keeping entry order.
// Plain paths (no glob metacharacters) pass through untouched even if absent on disk:
// the compiler will produce the authoritative diagnostic for them.
func expandSourceGlobs(entries []string) ([]string, error) {
	sources := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if !strings.ContainsAny(entry, "*?[{") {
			if !seen[entry] {
				seen[entry] = true
				sources = append(sources, entry)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(entry)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", entry, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				sources = append(sources, m)
			}
		}
	}
	return sources, nil
}

func splitArchiveFlags(ldflags []string, archives []string) ([]string, []string) {
	plain := make([]string, 0, len(ldflags))
	for _, f := range ldflags {
		if strings.HasSuffix(f, ".a") || strings.HasSuffix(f, ".dll") || strings.HasSuffix(f, ".so") {
			archives = append(archives, f)
		} else {
			plain = append(plain, f)
		}
	}
	return plain, archives
}
