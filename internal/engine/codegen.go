package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dabozzhub/pbj/internal/common"
)

// metaMarkerRe matches the marker token that makes a header eligible for
// meta-object generation: the token alone on its own line.
var metaMarkerRe = regexp.MustCompile(`(?m)^[ \t]*Q_OBJECT[ \t]*\r?$`)

// runMetaGenerator scans the configured header directories for the meta marker
// and produces a companion .cpp per matching header via the meta tool.
// Outputs are cached under "meta:<header>" keys: a header is only re-fed to the
// tool when its fingerprint changed or its output vanished.
//
// A failing tool invocation is logged and that header is skipped for this build.
// Two distinct headers mapping to the same output basename are rejected hard,
// since their outputs would silently overwrite each other.
func (builder *Builder) runMetaGenerator(ctx context.Context) ([]string, error) {
	proj := builder.proj
	if proj.MetaTool == "" || len(proj.MetaScanDirs) == 0 {
		return nil, nil
	}

	metaDir := filepath.Join(proj.ObjDir, "meta")
	if err := os.MkdirAll(metaDir, os.ModePerm); err != nil {
		return nil, err
	}

	var headers []string
	for _, scanDir := range proj.MetaScanDirs {
		matches, err := doublestar.FilepathGlob(scanDir + "/**/*.{h,hpp}")
		if err != nil {
			logPbj.Error("bad meta scan dir", scanDir, err)
			continue
		}
		headers = append(headers, matches...)
	}

	generated := make([]string, 0, len(headers))
	outputOwner := make(map[string]string, len(headers))

	for _, header := range headers {
		contents, err := os.ReadFile(header)
		if err != nil {
			logPbj.Error("cannot read header for meta scan", header, err)
			continue
		}
		if !metaMarkerRe.Match(contents) {
			continue
		}

		base := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))
		outPath := filepath.Join(metaDir, "meta_"+base+".cpp")
		if owner, taken := outputOwner[outPath]; taken {
			return nil, fmt.Errorf("meta outputs collide: %q and %q both generate %q", owner, header, outPath)
		}
		outputOwner[outPath] = header

		headerHash := common.CalcBufferMD5(contents)
		cacheKey := "meta:" + header
		if cached, exists := builder.store.GetFileHash(cacheKey); exists && cached == headerHash {
			if _, err := os.Stat(outPath); err == nil {
				generated = append(generated, outPath)
				continue
			}
		}

		cmdLine := make([]string, 0, len(proj.Includes)*2+len(proj.Defines)+3)
		for _, inc := range proj.Includes {
			cmdLine = append(cmdLine, "-I", inc)
		}
		for _, d := range proj.Defines {
			cmdLine = append(cmdLine, "-D"+d)
		}
		cmdLine = append(cmdLine, header, "-o", outPath)

		if builder.verbose {
			fmt.Printf("  [MOC] %s\n", header)
		}
		exitCode, _, toolStderr := runChildProcess(ctx, proj.MetaTool, cmdLine)
		if exitCode != 0 {
			fmt.Printf("  [MOC FAIL] %s\n%s", header, toolStderr)
			logPbj.Error("meta tool failed for", header, "exit code", exitCode)
			continue
		}

		builder.store.SetFileHash(cacheKey, headerHash)
		generated = append(generated, outPath)
	}

	return generated, nil
}

// runResourceGenerator turns each listed resource description into a .cpp via
// the resource tool, with the same cache protocol under "rcc:<input>" keys.
func (builder *Builder) runResourceGenerator(ctx context.Context) ([]string, error) {
	proj := builder.proj
	if proj.ResourceTool == "" || len(proj.ResourceInputs) == 0 {
		return nil, nil
	}

	rccDir := filepath.Join(proj.ObjDir, "rcc")
	if err := os.MkdirAll(rccDir, os.ModePerm); err != nil {
		return nil, err
	}

	generated := make([]string, 0, len(proj.ResourceInputs))
	for _, input := range proj.ResourceInputs {
		inputHash, err := common.GetFileMD5(input)
		if err != nil {
			logPbj.Error("cannot read resource input", input, err)
			continue
		}

		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		outPath := filepath.Join(rccDir, "res_"+base+".cpp")

		cacheKey := "rcc:" + input
		if cached, exists := builder.store.GetFileHash(cacheKey); exists && cached == inputHash {
			if _, err := os.Stat(outPath); err == nil {
				generated = append(generated, outPath)
				continue
			}
		}

		if builder.verbose {
			fmt.Printf("  [RCC] %s\n", input)
		}
		exitCode, _, toolStderr := runChildProcess(ctx, proj.ResourceTool, []string{input, "-o", outPath})
		if exitCode != 0 {
			fmt.Printf("  [RCC FAIL] %s\n%s", input, toolStderr)
			logPbj.Error("resource tool failed for", input, "exit code", exitCode)
			continue
		}

		builder.store.SetFileHash(cacheKey, inputHash)
		generated = append(generated, outPath)
	}

	return generated, nil
}

// runChildProcess launches a tool with captured stdout/stderr and returns them
// along with the exit code. Launch errors (binary not found, interrupt) surface
// through stderr and a non-zero code: failures cross this boundary as values.
func runChildProcess(ctx context.Context, name string, cmdLine []string) (exitCode int, stdout []byte, stderr []byte) {
	command := exec.CommandContext(ctx, name, cmdLine...)
	var outBuf, errBuf bytes.Buffer
	command.Stdout = &outBuf
	command.Stderr = &errBuf
	err := command.Run()

	exitCode = -1
	if command.ProcessState != nil {
		exitCode = command.ProcessState.ExitCode()
	}
	stdout = outBuf.Bytes()
	stderr = errBuf.Bytes()
	if len(stderr) == 0 && err != nil {
		stderr = []byte(fmt.Sprintln(err))
	}
	return
}
