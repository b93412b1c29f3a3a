package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches bursts of filesystem events (editors save several times,
// git checkout touches hundreds of files) into one rebuild.
const watchDebounce = 300 * time.Millisecond

// Watch runs an initial build, then keeps rebuilding incrementally whenever a
// watched file changes, until ctx is cancelled. Consecutive builds share the
// in-memory scan cache, so unchanged headers are parsed once per session.
func (builder *Builder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range builder.watchRoots() {
		if err := addWatchesRecursively(watcher, root); err != nil {
			logPbj.Error("cannot watch", root, err)
		}
	}

	if err := builder.Build(ctx); err != nil {
		logPbj.Error("build failed, watching for changes", err)
	}
	fmt.Println("\nWatching for changes (Ctrl-C to stop)...")

	rebuildCh := make(chan struct{}, 1)
	var debounceMu sync.Mutex
	var debounceTimer *time.Timer
	scheduleRebuild := func() {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(watchDebounce, func() {
			select {
			case rebuildCh <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if builder.isEngineOwnedPath(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if stat, err := os.Stat(event.Name); err == nil && stat.IsDir() {
					_ = addWatchesRecursively(watcher, event.Name)
				}
			}
			scheduleRebuild()

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logPbj.Error("watcher error", watchErr)

		case <-rebuildCh:
			fmt.Println()
			if err := builder.Build(ctx); err != nil {
				logPbj.Error("build failed, watching for changes", err)
			}
			fmt.Println("\nWatching for changes (Ctrl-C to stop)...")
		}
	}
}

// watchRoots collects the directories worth watching: wherever sources,
// headers, scannable headers or resource descriptions live.
func (builder *Builder) watchRoots() []string {
	proj := builder.proj
	seen := make(map[string]bool)
	var roots []string

	addDir := func(dir string) {
		dir = filepath.Clean(dir)
		if dir == "" || seen[dir] {
			return
		}
		if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
			return
		}
		seen[dir] = true
		roots = append(roots, dir)
	}

	for _, source := range proj.Sources {
		addDir(filepath.Dir(source))
	}
	for _, dir := range proj.Includes {
		addDir(dir)
	}
	for _, dir := range proj.MetaScanDirs {
		addDir(dir)
	}
	for _, input := range proj.ResourceInputs {
		addDir(filepath.Dir(input))
	}
	return roots
}

// isEngineOwnedPath filters out events the build itself produces: anything
// under obj_dir or bin_dir, and the hash-store file (including its temp names).
func (builder *Builder) isEngineOwnedPath(p string) bool {
	if strings.HasPrefix(filepath.Base(p), CacheFileName) {
		return true
	}
	for _, owned := range []string{builder.proj.ObjDir, builder.proj.BinDir} {
		if rel, err := filepath.Rel(owned, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func addWatchesRecursively(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}
