package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dabozzhub/pbj/internal/config"
	"github.com/stretchr/testify/require"
)

func TestMetaMarkerMatching(t *testing.T) {
	tests := []struct {
		contents string
		want     bool
	}{
		{"class W {\nQ_OBJECT\n};\n", true},
		{"class W {\n    Q_OBJECT\n};\n", true},
		{"class W {\n\tQ_OBJECT \t\n};\n", true},
		{"class W {\r\n  Q_OBJECT\r\n};\r\n", true},
		{"// Q_OBJECT mentioned in a comment\n", false},
		{"#define Q_OBJECT_LIKE Q_OBJECTX\n", false},
		{"class W {\nQ_OBJECT_FAKE\n};\n", false},
		{"plain header\n", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, metaMarkerRe.Match([]byte(tt.contents)), "contents: %q", tt.contents)
	}
}

func makeCodegenBuilder(t *testing.T, mutate func(p *config.Project)) *Builder {
	t.Helper()
	chdirTemp(t)
	proj := &config.Project{
		ProjectName: "demo",
		OutputName:  "out",
		ObjDir:      "obj",
		BinDir:      "bin",
		CompilerCmd: "unused",
		LinkerCmd:   "unused",
		Sources:     []string{"main.cpp"},
	}
	mutate(proj)
	return MakeBuilder(proj, TargetRelease, 1, false)
}

func TestMetaGeneratorProducesCompanionSources(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.MetaTool = writeStubGenerator(t, "tools/moc.sh", "moc.count", 0)
		p.MetaScanDirs = []string{"include"}
		p.Includes = []string{"include"}
	})
	writeFile(t, filepath.Join("include", "widget.h"), "class W {\n  Q_OBJECT\n};\n")
	writeFile(t, filepath.Join("include", "plain.h"), "struct P {};\n")

	generated, err := builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("obj", "meta", "meta_widget.cpp")}, generated)
	require.FileExists(t, generated[0])
	require.Equal(t, 1, countToolRuns(t, "moc.count"))

	// unchanged header: cached, the tool is not re-invoked
	generated, err = builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.Len(t, generated, 1)
	require.Equal(t, 1, countToolRuns(t, "moc.count"))

	// changed header: regenerated
	writeFile(t, filepath.Join("include", "widget.h"), "class W {\n  Q_OBJECT\n  void f();\n};\n")
	generated, err = builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.Len(t, generated, 1)
	require.Equal(t, 2, countToolRuns(t, "moc.count"))
}

func TestMetaGeneratorRegeneratesWhenOutputDeleted(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.MetaTool = writeStubGenerator(t, "tools/moc.sh", "moc.count", 0)
		p.MetaScanDirs = []string{"include"}
	})
	writeFile(t, filepath.Join("include", "widget.h"), "Q_OBJECT\n")

	generated, err := builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(generated[0]))

	_, err = builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.FileExists(t, generated[0])
	require.Equal(t, 2, countToolRuns(t, "moc.count"))
}

func TestMetaGeneratorRejectsBasenameCollision(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.MetaTool = writeStubGenerator(t, "tools/moc.sh", "moc.count", 0)
		p.MetaScanDirs = []string{"ui", "widgets"}
	})
	writeFile(t, filepath.Join("ui", "widget.h"), "Q_OBJECT\n")
	writeFile(t, filepath.Join("widgets", "widget.h"), "Q_OBJECT\n")

	_, err := builder.runMetaGenerator(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "collide")
}

func TestMetaGeneratorSkipsFailingHeader(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.MetaTool = writeStubGenerator(t, "tools/moc.sh", "moc.count", 1)
		p.MetaScanDirs = []string{"include"}
	})
	header := writeFile(t, filepath.Join("include", "widget.h"), "Q_OBJECT\n")

	generated, err := builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.Empty(t, generated)

	// no cache entry for the failed header: the next build retries it
	_, exists := builder.store.GetFileHash("meta:" + header)
	require.False(t, exists)
}

func TestResourceGeneratorCachesByInputFingerprint(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.ResourceTool = writeStubGenerator(t, "tools/rcc.sh", "rcc.count", 0)
		p.ResourceInputs = []string{"assets/icons.qrc"}
	})
	writeFile(t, filepath.Join("assets", "icons.qrc"), "<RCC><file>icon.png</file></RCC>\n")

	generated, err := builder.runResourceGenerator(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("obj", "rcc", "res_icons.cpp")}, generated)
	require.Equal(t, 1, countToolRuns(t, "rcc.count"))

	_, err = builder.runResourceGenerator(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, countToolRuns(t, "rcc.count"))

	writeFile(t, filepath.Join("assets", "icons.qrc"), "<RCC><file>icon2.png</file></RCC>\n")
	_, err = builder.runResourceGenerator(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, countToolRuns(t, "rcc.count"))
}

func TestResourceGeneratorSkipsMissingInput(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.ResourceTool = writeStubGenerator(t, "tools/rcc.sh", "rcc.count", 0)
		p.ResourceInputs = []string{"assets/gone.qrc"}
	})

	generated, err := builder.runResourceGenerator(context.Background())
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, 0, countToolRuns(t, "rcc.count"))
}

func TestGeneratorsDisabledWithoutTools(t *testing.T) {
	builder := makeCodegenBuilder(t, func(p *config.Project) {
		p.MetaScanDirs = []string{"include"}
		p.ResourceInputs = []string{"assets/icons.qrc"}
	})
	writeFile(t, filepath.Join("include", "widget.h"), "Q_OBJECT\n")

	generated, err := builder.runMetaGenerator(context.Background())
	require.NoError(t, err)
	require.Empty(t, generated)

	generated, err = builder.runResourceGenerator(context.Background())
	require.NoError(t, err)
	require.Empty(t, generated)
}
