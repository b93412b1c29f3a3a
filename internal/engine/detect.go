package engine

import (
	"os"

	"github.com/dabozzhub/pbj/internal/common"
)

// ChangeDetector decides which sources actually need recompiling. It combines
// the hash store (fingerprints at last successful compile), the header scanner
// (current transitive closure) and the filesystem (current fingerprints).
// One detector serves one build; its fingerprint memo must not outlive it.
type ChangeDetector struct {
	store       *HashStore
	scanCache   *ScanCache
	includeDirs []string

	hashMemo map[string]common.MD5 // current on-disk fingerprints, computed once per build
}

func MakeChangeDetector(store *HashStore, scanCache *ScanCache, includeDirs []string) *ChangeDetector {
	return &ChangeDetector{
		store:       store,
		scanCache:   scanCache,
		includeDirs: includeDirs,
		hashMemo:    make(map[string]common.MD5, 64),
	}
}

// currentHash returns the on-disk fingerprint of a file, absent (empty) for
// unreadable files. Memoized: shared headers are hashed once per build.
func (detector *ChangeDetector) currentHash(fileName string) common.MD5 {
	if h, exists := detector.hashMemo[fileName]; exists {
		return h
	}
	h, err := common.GetFileMD5(fileName)
	if err != nil {
		h = common.MD5{}
	}
	detector.hashMemo[fileName] = h
	return h
}

// NeedsRebuild reports whether source must be recompiled into objPath.
// True when the object is missing, the source changed (or is unreadable),
// or any header in the current transitive closure is new, changed or unreadable
// compared to what was recorded at the last successful compile.
func (detector *ChangeDetector) NeedsRebuild(source string, objPath string) bool {
	if _, err := os.Stat(objPath); err != nil {
		return true
	}

	currentHash := detector.currentHash(source)
	if currentHash.IsEmpty() {
		return true
	}
	storedHash, exists := detector.store.GetFileHash(source)
	if !exists || storedHash != currentHash {
		return true
	}

	storedDeps := detector.store.GetDeps(source)
	for _, header := range CollectDependentHeaders(detector.scanCache, source, detector.includeDirs) {
		headerHash := detector.currentHash(header)
		if headerHash.IsEmpty() {
			return true
		}
		if storedDeps[header] != headerHash {
			return true // changed, or a header the stored closure never saw
		}
	}

	return false
}

// RecordCompiled replaces the store entry for source after a successful compile:
// its current fingerprint plus a fresh snapshot of its header closure.
// Headers that vanished between compile and snapshot are simply left out;
// if such a header is back at the next build, it is new to the stored closure
// and forces a rebuild.
func (detector *ChangeDetector) RecordCompiled(source string) {
	detector.store.SetFileHash(source, detector.currentHash(source))

	headers := CollectDependentHeaders(detector.scanCache, source, detector.includeDirs)
	depHashes := make(map[string]common.MD5, len(headers))
	for _, header := range headers {
		if h := detector.currentHash(header); !h.IsEmpty() {
			depHashes[header] = h
		}
	}
	detector.store.SetDeps(source, depHashes)
}
