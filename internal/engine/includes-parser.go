package engine

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// includedArg describes an argument for an #include directive
type includedArg struct {
	insideStr string // inside quotes or angle brackets
	isQuote   bool   // #include "arg" or #include <arg> (!isQuote == isAngle)
}

// includesParser does the same work as `cxx -M` but without invoking a toolchain.
// It parses cpp/h files, finds #include "..." directives, resolves them against
// the project include path and keeps going recursively.
//
// Unlike a real preprocessor, it does nothing about #ifdef etc.: a header that is
// textually included behind any conditional is still reported. That can only
// over-report dependencies, never under-report them, which keeps incremental
// rebuilds correct at the cost of an occasional redundant recompile.
//
// Angle-bracket includes are ignored on purpose: the engine does not own the
// toolchain's view of system headers. If those change, the user runs `clean`.
type includesParser struct {
	includeDirs []string
	scanCache   *ScanCache

	visited map[string]bool   // resolved paths already processed in this walk
	headers []string          // dependent headers, in order of discovery
	resolve map[string]string // "<dir>\x00<arg>" -> resolved path, "" if nothing found
}

// CollectDependentHeaders returns the transitive set of local headers sourceFile
// depends on, resolved to absolute normalized paths. I/O problems on any file are
// treated as "no includes from this point": the change detector deals with
// unreadable files through their absent fingerprints.
func CollectDependentHeaders(scanCache *ScanCache, sourceFile string, includeDirs []string) []string {
	parser := includesParser{
		includeDirs: includeDirs,
		scanCache:   scanCache,
		visited:     make(map[string]bool, 20),
		headers:     make([]string, 0, 8),
		resolve:     make(map[string]string, 20),
	}

	absSource, err := filepath.Abs(sourceFile)
	if err != nil {
		return nil
	}
	parser.visited[absSource] = true
	parser.processFile(absSource)
	return parser.headers
}

// processFile scans one file and recurses into every newly discovered header.
func (parser *includesParser) processFile(fileName string) {
	for _, headerName := range parser.scanFileIncludes(fileName) {
		if parser.visited[headerName] {
			continue
		}
		parser.visited[headerName] = true
		parser.headers = append(parser.headers, headerName)
		parser.processFile(headerName)
	}
}

// scanFileIncludes returns the resolved direct includes of fileName.
// The quoted include arguments are memoized in the scan cache and revalidated
// by content hash, so repeated scans (many sources sharing one header,
// consecutive builds in watch mode) skip the parse but never trust stale
// contents. Resolution against the disk runs on every scan.
func (parser *includesParser) scanFileIncludes(fileName string) []string {
	buffer, err := os.ReadFile(fileName)
	if err != nil {
		return nil
	}

	fastHash := xxhash.Sum64(buffer)
	var quotedArgs []string
	if cached, exists := parser.scanCache.GetFileInfo(fileName); exists && cached.fileSize == int64(len(buffer)) && cached.fastHash == fastHash {
		quotedArgs = cached.includes
	} else {
		for _, arg := range collectIncludeStatementsInFile(buffer) {
			if arg.isQuote { // system includes are deliberately not tracked
				quotedArgs = append(quotedArgs, arg.insideStr)
			}
		}
		parser.scanCache.AddFileInfo(fileName, int64(len(buffer)), fastHash, quotedArgs)
	}

	includes := make([]string, 0, len(quotedArgs))
	for _, arg := range quotedArgs {
		if resolved := parser.resolveIncludedArg(fileName, arg); resolved != "" {
			includes = append(includes, resolved)
		}
	}
	return includes
}

// resolveIncludedArg locates #include "arg" on disk: the directory of the
// including file first, then every include dir in configured order. The first
// existing file wins. An unresolved include is silently dropped.
func (parser *includesParser) resolveIncludedArg(currentFileName string, arg string) string {
	currentDir := filepath.Dir(currentFileName)
	memoKey := currentDir + "\x00" + arg
	if resolved, exists := parser.resolve[memoKey]; exists {
		return resolved
	}

	resolved := ""
	if filepath.IsAbs(arg) { // #include "/abs/path" — the only candidate
		if isRegularFile(arg) {
			resolved = filepath.Clean(arg)
		}
	} else if candidate := filepath.Join(currentDir, arg); isRegularFile(candidate) {
		resolved = candidate
	} else {
		for _, dir := range parser.includeDirs {
			candidate := filepath.Join(dir, arg)
			if isRegularFile(candidate) {
				resolved, _ = filepath.Abs(candidate)
				break
			}
		}
	}

	parser.resolve[memoKey] = resolved
	return resolved
}

func isRegularFile(fileName string) bool {
	stat, err := os.Stat(fileName)
	return err == nil && stat.Mode().IsRegular()
}

// collectIncludeStatementsInFile finds all #include arguments in a buffer,
// in order of appearance. C and C++ style comments are respected, includes
// aren't found within them.
func collectIncludeStatementsInFile(buffer []byte) (includes []includedArg) {
	const (
		stateNone = iota
		stateAfterHash
		stateAfterInclude
		stateInsideQuoteBrackets
		stateInsideAngleBrackets
	)
	state := stateNone
	start := 0

	bufferSize := len(buffer)
	offset := 0
	for offset < bufferSize {
		c := buffer[offset]

		if state == stateNone && c == '/' && offset+1 < bufferSize {
			if buffer[offset+1] == '/' {
				next := bytes.IndexByte(buffer[offset:], '\n')
				if next == -1 {
					break
				}
				offset += next + 1
				continue
			}
			if buffer[offset+1] == '*' {
				end := bytes.Index(buffer[offset+2:], []byte("*/"))
				if end == -1 {
					break
				}
				offset += end + 4
				continue
			}
		}

		switch state {
		case stateNone:
			if c == '#' {
				state = stateAfterHash
			}

		case stateAfterHash:
			switch c {
			case ' ', '\t':
				break
			default:
				if bufferSize >= offset+7 && string(buffer[offset:offset+7]) == "include" {
					state = stateAfterInclude
					offset += 6
				} else {
					state = stateNone
				}
			}

		case stateAfterInclude:
			switch c {
			case ' ', '\t':
				break
			case '<':
				start = offset + 1
				state = stateInsideAngleBrackets
			case '"':
				start = offset + 1
				state = stateInsideQuoteBrackets
			default:
				state = stateNone // buggy code
			}

		case stateInsideAngleBrackets:
			switch c {
			case '\n':
				state = stateNone // buggy code
			case '>':
				includes = append(includes, includedArg{string(buffer[start:offset]), false})
				state = stateNone
			}

		case stateInsideQuoteBrackets:
			switch c {
			case '\n':
				state = stateNone // buggy code
			case '"':
				includes = append(includes, includedArg{string(buffer[start:offset]), true})
				state = stateNone
			}
		}

		offset++
	}

	return
}
