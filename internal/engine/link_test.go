package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dabozzhub/pbj/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLinkCmdLineOrdering(t *testing.T) {
	proj := &config.Project{
		OutputName: "game",
		BinDir:     "bin",
		LinkerCmd:  "g++",
		LdFlags:    []string{"-static", "-mwindows"},
		LibDirs:    []string{"vendor/lib"},
		Libs:       []string{"png", "z"},
		Archives:   []string{"vendor/libfoo.a", "vendor/bar.dll"},
	}

	cmdLine := linkCmdLine(proj, []string{"obj/a.o", "obj/b.o"})
	require.Equal(t, []string{
		"g++",
		"-static", "-mwindows",
		"obj/a.o", "obj/b.o",
		"-Lvendor/lib",
		"-lpng", "-lz",
		"vendor/libfoo.a", "vendor/bar.dll",
		"-o", filepath.Join("bin", "game"),
	}, cmdLine)
}

func TestLinkNeeded(t *testing.T) {
	chdirTemp(t)
	proj := &config.Project{OutputName: "out", BinDir: "bin"}

	obj := writeFile(t, filepath.Join("obj", "a.o"), "a")

	// output missing
	require.True(t, linkNeeded(proj, []string{obj}, false))

	// fresh output, nothing compiled
	writeFile(t, proj.OutputPath(), "bin")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(proj.OutputPath(), future, future))
	require.False(t, linkNeeded(proj, []string{obj}, false))

	// something compiled this run
	require.True(t, linkNeeded(proj, []string{obj}, true))

	// object newer than output
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(obj, later, later))
	require.True(t, linkNeeded(proj, []string{obj}, false))
}
