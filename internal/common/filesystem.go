package common

import (
	"io"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

func MkdirForFile(fileName string) error {
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return err
	}
	return nil
}

func OpenTempFile(fullPath string) (f *os.File, err error) {
	fileNameTmp := fullPath + "." + strconv.Itoa(rand.Int())
	return os.OpenFile(fileNameTmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, os.ModePerm)
}

func ReplaceFileExt(fileName string, newExt string) string {
	oldExt := path.Ext(fileName)
	return fileName[0:len(fileName)-len(oldExt)] + newExt
}

// FlattenPath maps a relative file path to a single file name: separators become underscores.
// Distinct inputs keep distinct outputs as long as no path component itself contains
// an underscore-ambiguous separator, which the engine checks before dispatching.
func FlattenPath(fileName string) string {
	flat := strings.ReplaceAll(fileName, string(os.PathSeparator), "_")
	return strings.ReplaceAll(flat, "/", "_")
}

// CopyFile copies src to dst preserving the source modification time,
// so that mtime-gated re-copies keep working across runs.
func CopyFile(src string, dst string) error {
	stat, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := MkdirForFile(dst); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, stat.ModTime(), stat.ModTime())
}

// CopyDir copies srcDir recursively into dstDir (created if missing).
func CopyDir(srcDir string, dstDir string) error {
	return filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return CopyFile(p, target)
	})
}
