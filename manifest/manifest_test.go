package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaguanLabs/transctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readManifest(t *testing.T, dir string) File {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var f File
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// fixture lays out a source, one output and a manifest recording both.
type fixture struct {
	dir    string
	source string
	output string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	fx := fixture{
		dir:    filepath.Join(root, ".transctl"),
		source: filepath.Join(root, "en", "index.html"),
		output: filepath.Join(root, "de", "index.html"),
	}
	writeFile(t, fx.source, "<p>Hello</p>")
	writeFile(t, fx.output, "<p>Hallo</p>")

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild([]transctl.OutputPair{{Input: fx.source, Output: fx.output}}, true))
	return fx
}

func TestLoad_Missing(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, m.Sources())
	assert.Empty(t, m.Bound())
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "{not json")

	_, err := Load(dir)

	var mErr *transctl.ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, filepath.Join(dir, FileName), mErr.Path)
}

func TestIsOutputValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, fx fixture)
		want   bool
	}{
		{
			name:   "unchanged source and output",
			mutate: func(t *testing.T, fx fixture) {},
			want:   true,
		},
		{
			name: "output edited",
			mutate: func(t *testing.T, fx fixture) {
				writeFile(t, fx.output, "<p>Guten Tag</p>")
			},
			want: false,
		},
		{
			name: "output deleted",
			mutate: func(t *testing.T, fx fixture) {
				require.NoError(t, os.Remove(fx.output))
			},
			want: false,
		},
		{
			name: "source edited",
			mutate: func(t *testing.T, fx fixture) {
				writeFile(t, fx.source, "<p>Hello there</p>")
			},
			want: false,
		},
		{
			name: "manifest purged",
			mutate: func(t *testing.T, fx fixture) {
				m, err := Load(fx.dir)
				require.NoError(t, err)
				require.NoError(t, m.Purge())
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			tt.mutate(t, fx)

			m, err := Load(fx.dir)
			require.NoError(t, err)
			require.NoError(t, m.BindSource(fx.source))
			assert.Equal(t, tt.want, m.IsOutputValid(fx.output))
		})
	}
}

func TestIsOutputValid_UnknownOutput(t *testing.T) {
	fx := newFixture(t)
	other := filepath.Join(filepath.Dir(fx.output), "..", "fr", "index.html")
	writeFile(t, other, "<p>Bonjour</p>")

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.BindSource(fx.source))
	assert.False(t, m.IsOutputValid(other))
}

func TestIsOutputValid_RequiresBind(t *testing.T) {
	fx := newFixture(t)

	m, err := Load(fx.dir)
	require.NoError(t, err)
	assert.False(t, m.IsOutputValid(fx.output))
}

func TestIsOutputValid_RelativePath(t *testing.T) {
	fx := newFixture(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, fx.output)
	require.NoError(t, err)

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.BindSource(fx.source))
	assert.True(t, m.IsOutputValid(rel))
}

func TestBindSource_Missing(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)

	err = m.BindSource(filepath.Join(t.TempDir(), "nope.html"))
	var mErr *transctl.ManifestError
	assert.True(t, errors.As(err, &mErr))
}

func TestBindSource_RenameSafe(t *testing.T) {
	fx := newFixture(t)
	renamed := filepath.Join(filepath.Dir(fx.source), "home.html")
	require.NoError(t, os.Rename(fx.source, renamed))

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.BindSource(renamed))
	assert.Equal(t, transctl.HashText("<p>Hello</p>"), m.Bound())
	assert.True(t, m.IsOutputValid(fx.output))
}

func TestRebuild_SkippedWithoutUpdate(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, m.Rebuild(nil, false))

	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(err), "nothing written when nothing changed")
}

func TestRebuild_AfterMarkUpdated(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".transctl")
	src := filepath.Join(root, "a.json")
	out := filepath.Join(root, "de", "a.json")
	writeFile(t, src, `{"a": "b"}`)
	writeFile(t, out, `{"a": "c"}`)

	m, err := Load(dir)
	require.NoError(t, err)
	m.MarkUpdated()
	assert.True(t, m.Updated())

	require.NoError(t, m.Rebuild([]transctl.OutputPair{{Input: src, Output: out}}, false))
	assert.False(t, m.Updated())

	f := readManifest(t, dir)
	assert.Equal(t, Version, f.Version)
	assert.Equal(t, map[string]Entry{
		transctl.HashText(`{"a": "b"}`): {Outputs: map[string]string{out: transctl.HashText(`{"a": "c"}`)}},
	}, f.Sources)
}

func TestRebuild_ReplacesWholeMapping(t *testing.T) {
	fx := newFixture(t)
	root := filepath.Dir(fx.dir)
	other := filepath.Join(root, "en", "about.html")
	otherOut := filepath.Join(root, "de", "about.html")
	writeFile(t, other, "<p>About</p>")
	writeFile(t, otherOut, "<p>Über</p>")

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild([]transctl.OutputPair{{Input: other, Output: otherOut}}, true))

	f := readManifest(t, fx.dir)
	require.Len(t, f.Sources, 1)
	assert.Contains(t, f.Sources, transctl.HashText("<p>About</p>"))
}

func TestRebuild_SkipsMissingFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".transctl")
	src := filepath.Join(root, "a.html")
	writeFile(t, src, "<p>a</p>")

	m, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild([]transctl.OutputPair{
		{Input: src, Output: filepath.Join(root, "de", "a.html")},
		{Input: filepath.Join(root, "gone.html"), Output: filepath.Join(root, "de", "gone.html")},
	}, true))

	f := readManifest(t, dir)
	require.Len(t, f.Sources, 1)
	assert.Empty(t, f.Sources[transctl.HashText("<p>a</p>")].Outputs)
}

func TestRebuild_IdenticalSourcesShareEntry(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".transctl")
	a := filepath.Join(root, "a.html")
	b := filepath.Join(root, "b.html")
	writeFile(t, a, "<p>same</p>")
	writeFile(t, b, "<p>same</p>")
	writeFile(t, filepath.Join(root, "de", "a.html"), "<p>gleich</p>")
	writeFile(t, filepath.Join(root, "de", "b.html"), "<p>gleich</p>")

	m, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild([]transctl.OutputPair{
		{Input: a, Output: filepath.Join(root, "de", "a.html")},
		{Input: b, Output: filepath.Join(root, "de", "b.html")},
	}, true))

	f := readManifest(t, dir)
	require.Len(t, f.Sources, 1)
	assert.Len(t, f.Sources[transctl.HashText("<p>same</p>")].Outputs, 2)
}

func TestRebuild_RefreshesBoundEntry(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".transctl")
	src := filepath.Join(root, "a.html")
	out := filepath.Join(root, "de", "a.html")
	writeFile(t, src, "<p>a</p>")

	m, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, m.BindSource(src))
	assert.False(t, m.IsOutputValid(out))

	writeFile(t, out, "<p>A</p>")
	m.MarkUpdated()
	require.NoError(t, m.Rebuild([]transctl.OutputPair{{Input: src, Output: out}}, false))
	assert.True(t, m.IsOutputValid(out))
}

func TestPurge(t *testing.T) {
	fx := newFixture(t)

	m, err := Load(fx.dir)
	require.NoError(t, err)
	require.NoError(t, m.Purge())

	f := readManifest(t, fx.dir)
	assert.Equal(t, Version, f.Version)
	assert.Empty(t, f.Sources)

	_, err = os.Stat(filepath.Join(fx.dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}
