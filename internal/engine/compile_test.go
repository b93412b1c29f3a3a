package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeCompileTasks(t *testing.T, compiler string, sources map[string]string) []CompileTask {
	t.Helper()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic task order

	tasks := make([]CompileTask, 0, len(names))
	for _, name := range names {
		source := writeFile(t, name, sources[name])
		objPath := filepath.Join("obj", name+".o")
		tasks = append(tasks, CompileTask{
			Source:  source,
			ObjPath: objPath,
			CmdLine: []string{compiler, "-c", source, "-o", objPath},
		})
	}
	return tasks
}

func TestRunCompileTasksAllSucceed(t *testing.T) {
	chdirTemp(t)
	compiler := writeStubCompiler(t, "tools")
	tasks := makeCompileTasks(t, compiler, map[string]string{
		"a.cpp": "int a;\n",
		"b.cpp": "int b;\n",
		"c.cpp": "int c;\n",
	})

	var succeeded []string
	failedCount := RunCompileTasks(context.Background(), tasks, 2, false, func(source string) {
		succeeded = append(succeeded, source)
	})

	require.Zero(t, failedCount)
	require.ElementsMatch(t, []string{"a.cpp", "b.cpp", "c.cpp"}, succeeded)
	for _, task := range tasks {
		contents, err := os.ReadFile(task.ObjPath)
		require.NoError(t, err)
		require.FileExists(t, task.ObjPath)
		require.NotEmpty(t, contents)
	}
}

func TestRunCompileTasksFailureDoesNotStopSiblings(t *testing.T) {
	chdirTemp(t)
	compiler := writeStubCompiler(t, "tools")
	tasks := makeCompileTasks(t, compiler, map[string]string{
		"a.cpp": "SYNTAX_ERROR\n",
		"b.cpp": "int b;\n",
	})

	var succeeded []string
	failedCount := RunCompileTasks(context.Background(), tasks, 4, false, func(source string) {
		succeeded = append(succeeded, source)
	})

	require.Equal(t, 1, failedCount)
	require.Equal(t, []string{"b.cpp"}, succeeded)
	require.FileExists(t, filepath.Join("obj", "b.cpp.o"))
}

func TestRunCompileTasksParallelEquivalence(t *testing.T) {
	sources := map[string]string{
		"a.cpp": "int a;\n",
		"b.cpp": "int b;\n",
		"c.cpp": "int c;\n",
		"d.cpp": "int d;\n",
	}

	readObjs := func(tasks []CompileTask) map[string]string {
		objs := make(map[string]string, len(tasks))
		for _, task := range tasks {
			contents, err := os.ReadFile(task.ObjPath)
			require.NoError(t, err)
			objs[filepath.Base(task.ObjPath)] = string(contents)
		}
		return objs
	}

	chdirTemp(t)
	serial := makeCompileTasks(t, writeStubCompiler(t, "tools"), sources)
	require.Zero(t, RunCompileTasks(context.Background(), serial, 1, false, func(string) {}))
	serialObjs := readObjs(serial)

	chdirTemp(t)
	parallel := makeCompileTasks(t, writeStubCompiler(t, "tools"), sources)
	require.Zero(t, RunCompileTasks(context.Background(), parallel, 4, false, func(string) {}))

	require.Equal(t, serialObjs, readObjs(parallel))
}

func TestRunCompileTasksMissingCompiler(t *testing.T) {
	chdirTemp(t)
	tasks := makeCompileTasks(t, filepath.Join("tools", "no-such-cc"), map[string]string{
		"a.cpp": "int a;\n",
	})

	failedCount := RunCompileTasks(context.Background(), tasks, 1, false, func(string) {
		t.Fatal("onSuccess must not be called")
	})
	require.Equal(t, 1, failedCount)
}

func TestRunCompileTasksCancelledContext(t *testing.T) {
	chdirTemp(t)
	compiler := writeStubCompiler(t, "tools")
	tasks := makeCompileTasks(t, compiler, map[string]string{"a.cpp": "int a;\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failedCount := RunCompileTasks(ctx, tasks, 1, false, func(string) {})
	require.Equal(t, 1, failedCount)
}
