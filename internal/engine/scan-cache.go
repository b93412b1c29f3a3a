package engine

import (
	"sync"
)

type scannedFileInfo struct {
	fileSize int64    // size at scan time
	fastHash uint64   // xxhash of contents, cheap equality check
	includes []string // quoted #include arguments of this file, in order of appearance
}

// ScanCache keeps per-file scan results in memory for the lifetime of a process.
// A single build benefits when many sources include the same headers; watch mode
// benefits across builds. Entries are validated against current file contents
// before reuse (see includes-parser), so a stale entry costs a re-parse, never
// a wrong dependency set.
type ScanCache struct {
	files map[string]*scannedFileInfo

	mu sync.RWMutex
}

func MakeScanCache() *ScanCache {
	return &ScanCache{
		files: make(map[string]*scannedFileInfo),
	}
}

func (cache *ScanCache) GetFileInfo(fileName string) (info *scannedFileInfo, exists bool) {
	cache.mu.RLock()
	info, exists = cache.files[fileName]
	cache.mu.RUnlock()
	return
}

func (cache *ScanCache) AddFileInfo(fileName string, fileSize int64, fastHash uint64, includes []string) {
	cache.mu.Lock()
	cache.files[fileName] = &scannedFileInfo{fileSize, fastHash, includes}
	cache.mu.Unlock()
}

func (cache *ScanCache) Count() int {
	cache.mu.RLock()
	count := len(cache.files)
	cache.mu.RUnlock()
	return count
}

func (cache *ScanCache) Clear() {
	cache.mu.Lock()
	cache.files = make(map[string]*scannedFileInfo)
	cache.mu.Unlock()
}
