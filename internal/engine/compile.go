package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/dabozzhub/pbj/internal/common"
	"golang.org/x/sync/errgroup"
)

// compileTimeout bounds one compiler invocation; expiry counts as a failed compile.
const compileTimeout = 5 * time.Minute

// CompileTask is one source scheduled for recompilation.
type CompileTask struct {
	Source  string
	ObjPath string
	CmdLine []string // full argv including the compiler itself
}

// CompileResult is what a worker hands back to the coordinator.
// Workers never touch shared state; the coordinator is the sole hash-store writer.
type CompileResult struct {
	Source      string
	Success     bool
	Diagnostics string
}

// RunCompileTasks executes tasks in a bounded pool of `jobs` workers.
// Tasks are mutually independent; completion order shows only in the order of
// onSuccess calls. Each success is reported to onSuccess as it happens (the
// coordinator updates the hash store there), so a later failure in a sibling
// never discards earlier progress. After all tasks terminate, diagnostics for
// failed tasks are printed in the input order of the task list, keeping output
// stable across runs regardless of scheduling.
func RunCompileTasks(ctx context.Context, tasks []CompileTask, jobs int, verbose bool, onSuccess func(source string)) (failedCount int) {
	if jobs < 1 {
		jobs = 1
	}

	type indexedResult struct {
		index  int
		result CompileResult
	}

	results := make([]CompileResult, len(tasks))
	resultsCh := make(chan indexedResult)

	var pool errgroup.Group
	pool.SetLimit(jobs)
	go func() {
		for i, task := range tasks {
			i, task := i, task
			pool.Go(func() error {
				resultsCh <- indexedResult{i, runCompileTask(ctx, task, verbose)}
				return nil
			})
		}
		_ = pool.Wait()
		close(resultsCh)
	}()

	for r := range resultsCh {
		results[r.index] = r.result
		if r.result.Success {
			onSuccess(r.result.Source)
		} else {
			failedCount++
		}
	}

	for _, result := range results {
		if !result.Success {
			fmt.Printf("\n  [FAIL] %s\n%s\n", result.Source, result.Diagnostics)
		}
	}
	return failedCount
}

// runCompileTask launches one compiler child process with captured output and
// a wall-clock timeout. The object's parent directory is created on demand.
func runCompileTask(ctx context.Context, task CompileTask, verbose bool) CompileResult {
	if err := common.MkdirForFile(task.ObjPath); err != nil {
		return CompileResult{task.Source, false, err.Error()}
	}
	if verbose {
		fmt.Printf("  [CC] %s\n", task.Source)
	}

	taskCtx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	command := exec.CommandContext(taskCtx, task.CmdLine[0], task.CmdLine[1:]...)
	var ccStdout, ccStderr bytes.Buffer
	command.Stdout = &ccStdout
	command.Stderr = &ccStderr
	err := command.Run()

	if taskCtx.Err() == context.DeadlineExceeded {
		return CompileResult{task.Source, false, "compilation timed out"}
	}
	if err != nil {
		diagnostics := ccStderr.String()
		if diagnostics == "" {
			diagnostics = err.Error()
		}
		logPbj.Error("compile failed", task.Source, err)
		return CompileResult{task.Source, false, diagnostics}
	}
	return CompileResult{task.Source, true, ""}
}
