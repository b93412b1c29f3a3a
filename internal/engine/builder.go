package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dabozzhub/pbj/internal/common"
	"github.com/dabozzhub/pbj/internal/config"
)

// Build targets, selecting which mode flag set the compiler gets.
const (
	TargetDebug   = "debug"
	TargetRelease = "release"
)

// Builder drives one project through configure → codegen → detect → compile →
// link → stage. A single coordinating goroutine owns the whole state machine;
// only compile tasks fan out to workers.
type Builder struct {
	proj    *config.Project
	target  string
	jobs    int
	verbose bool

	store     *HashStore
	scanCache *ScanCache
}

func MakeBuilder(proj *config.Project, target string, jobs int, verbose bool) *Builder {
	return &Builder{
		proj:      proj,
		target:    target,
		jobs:      jobs,
		verbose:   verbose,
		store:     MakeHashStore(CacheFileName),
		scanCache: MakeScanCache(),
	}
}

// Build runs one full incremental build. It returns an error when any compile
// or link failed, or when two sources or two meta headers map to the same
// output path; a failing generator tool only degrades the build (its output is
// excluded for this run).
func (builder *Builder) Build(ctx context.Context) error {
	start := time.Now()
	proj := builder.proj

	fmt.Println("=== PB&J Build System ===")
	fmt.Printf("Project: %s\n", proj.ProjectName)
	fmt.Printf("Target:  %s\n", builder.target)
	fmt.Printf("Jobs:    %d\n\n", builder.jobs)

	if err := os.MkdirAll(proj.ObjDir, os.ModePerm); err != nil {
		return err
	}
	if err := os.MkdirAll(proj.BinDir, os.ModePerm); err != nil {
		return err
	}

	// codegen runs strictly before detection: it may extend the source set,
	// and its cache keys live in the same store the compile phase persists
	metaSources, err := builder.runMetaGenerator(ctx)
	if err != nil {
		return err
	}
	resourceSources, err := builder.runResourceGenerator(ctx)
	if err != nil {
		return err
	}

	allSources := make([]string, 0, len(proj.Sources)+len(metaSources)+len(resourceSources))
	for _, source := range proj.Sources {
		allSources = append(allSources, filepath.Clean(source))
	}
	allSources = append(allSources, metaSources...)
	allSources = append(allSources, resourceSources...)

	detector := MakeChangeDetector(builder.store, builder.scanCache, proj.Includes)

	tasks := make([]CompileTask, 0, len(allSources))
	allObjs := make([]string, 0, len(allSources))
	objOwner := make(map[string]string, len(allSources))
	upToDate := 0

	for _, source := range allSources {
		objPath := builder.sourceToObj(source)
		if owner, taken := objOwner[objPath]; taken {
			return fmt.Errorf("object paths collide: %q and %q both map to %q", owner, source, objPath)
		}
		objOwner[objPath] = source
		allObjs = append(allObjs, objPath)

		if detector.NeedsRebuild(source, objPath) {
			tasks = append(tasks, CompileTask{
				Source:  source,
				ObjPath: objPath,
				CmdLine: builder.compileCmdLine(source, objPath),
			})
		} else {
			upToDate++
		}
	}

	anyCompiled := len(tasks) > 0
	if !anyCompiled && upToDate > 0 {
		fmt.Printf("All %d files up to date.\n", upToDate)
	}

	failedCount := 0
	if anyCompiled {
		fmt.Printf("Compiling %d file(s) (%d up to date)...\n", len(tasks), upToDate)
		failedCount = RunCompileTasks(ctx, tasks, builder.jobs, builder.verbose, detector.RecordCompiled)
	}

	// persisted exactly once per invocation, success or not: entries for
	// sources that did compile (and refreshed codegen keys) must survive
	if err := builder.store.Save(); err != nil {
		logPbj.Error("cannot save hash store", err)
	}

	if failedCount > 0 {
		fmt.Println("\nBuild FAILED.")
		return fmt.Errorf("%d file(s) failed to compile", failedCount)
	}

	// the link command is assembled from sorted objects: the executable and the
	// command line stay identical no matter how sources were ordered or compiled
	sort.Strings(allObjs)

	if linkNeeded(proj, allObjs, anyCompiled) {
		fmt.Printf("\nLinking %s...\n", proj.OutputName)
		if err := runLink(ctx, proj, allObjs, builder.verbose); err != nil {
			fmt.Println("Link FAILED.")
			return err
		}
	}

	builder.deploy()

	fmt.Printf("\nBuild complete (%.2fs)\n", time.Since(start).Seconds())
	return nil
}

// Clean removes everything the engine owns: objects, the output binary and the
// hash store. It is also the documented recovery path from cache corruption.
func (builder *Builder) Clean() error {
	fmt.Println("Cleaning...")

	if _, err := os.Stat(builder.proj.ObjDir); err == nil {
		if err := os.RemoveAll(builder.proj.ObjDir); err != nil {
			return err
		}
		fmt.Printf("  Removed %s/\n", builder.proj.ObjDir)
	}

	outputPath := builder.proj.OutputPath()
	if _, err := os.Stat(outputPath); err == nil {
		if err := os.Remove(outputPath); err != nil {
			return err
		}
		fmt.Printf("  Removed %s\n", outputPath)
	}

	if _, err := os.Stat(builder.store.FileName()); err == nil {
		if err := os.Remove(builder.store.FileName()); err != nil {
			return err
		}
		fmt.Printf("  Removed %s\n", builder.store.FileName())
	}

	fmt.Println("Clean complete.")
	return nil
}

// Rebuild is clean followed by a full build within the same process.
func (builder *Builder) Rebuild(ctx context.Context) error {
	if err := builder.Clean(); err != nil {
		return err
	}
	builder.store = MakeHashStore(CacheFileName)
	builder.scanCache.Clear()
	return builder.Build(ctx)
}

// sourceToObj derives the object path: the source path flattened into a single
// file name under obj_dir. Collisions are checked before dispatch.
func (builder *Builder) sourceToObj(source string) string {
	return filepath.Join(builder.proj.ObjDir, common.FlattenPath(source)+".o")
}

// compileCmdLine builds the compiler argv for one source:
// mode flags, free-form cflags, defines, include dirs, then -c/-o.
func (builder *Builder) compileCmdLine(source string, objPath string) []string {
	proj := builder.proj

	modeFlags := proj.ReleaseCFlags
	if builder.target == TargetDebug {
		modeFlags = proj.DebugCFlags
	}

	cmdLine := make([]string, 0, len(modeFlags)+len(proj.CFlags)+len(proj.Defines)+len(proj.Includes)*2+5)
	cmdLine = append(cmdLine, proj.CompilerCmd)
	cmdLine = append(cmdLine, modeFlags...)
	cmdLine = append(cmdLine, proj.CFlags...)
	for _, d := range proj.Defines {
		cmdLine = append(cmdLine, "-D"+d)
	}
	for _, inc := range proj.Includes {
		cmdLine = append(cmdLine, "-I", inc)
	}
	cmdLine = append(cmdLine, "-c", source, "-o", objPath)
	return cmdLine
}
