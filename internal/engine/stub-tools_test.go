package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Stub toolchain binaries for tests: tiny shell scripts with the argument
// conventions the engine assumes. The "compiler" copies the source into the
// object (failing when the source asks for it), the "linker" concatenates
// objects, the codegen tools write a marker line and count their invocations.

func writeToolScript(t *testing.T, fileName string, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(fileName), 0755))
	require.NoError(t, os.WriteFile(fileName, []byte("#!/bin/sh\n"+body), 0755))
	abs, err := filepath.Abs(fileName)
	require.NoError(t, err)
	return abs
}

func writeStubCompiler(t *testing.T, dir string) string {
	return writeToolScript(t, filepath.Join(dir, "cc.sh"), `
src=""; out=""; prev=""
for a in "$@"; do
  case "$prev" in
    -c) src="$a" ;;
    -o) out="$a" ;;
  esac
  prev="$a"
done
if grep -q SYNTAX_ERROR "$src" 2>/dev/null; then
  echo "error: bad syntax in $src" >&2
  exit 1
fi
cat "$src" > "$out"
exit 0
`)
}

func writeStubLinker(t *testing.T, dir string) string {
	return writeToolScript(t, filepath.Join(dir, "ld.sh"), `
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
: > "$out"
for a in "$@"; do
  case "$a" in
    *.o) cat "$a" >> "$out" ;;
  esac
done
exit 0
`)
}

// writeStubGenerator writes a codegen tool that appends to countFile on every
// invocation, so tests can assert incremental reuse.
func writeStubGenerator(t *testing.T, fileName string, countFile string, exitCode int) string {
	countAbs, err := filepath.Abs(countFile)
	require.NoError(t, err)
	body := `
echo run >> "` + countAbs + `"
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
`
	if exitCode == 0 {
		body += "echo '// generated' > \"$out\"\nexit 0\n"
	} else {
		body += "echo 'generator exploded' >&2\nexit 1\n"
	}
	return writeToolScript(t, fileName, body)
}

func countToolRuns(t *testing.T, countFile string) int {
	t.Helper()
	contents, err := os.ReadFile(countFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(contents), "run")
}
