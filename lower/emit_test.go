package lower

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/shgo/shell"
)

func TestEmit(t *testing.T) {
	b, err := Compile(context.Background(), "hello", []byte("echo hi\n"))
	require.NoError(t, err)

	prog := &shell.Program{
		Name:    "hello",
		Dialect: "bash",
		Main:    b,
		Units:   map[string]*shell.Block{"/lib.sh": {File: "/lib.sh"}},
		Embeds:  map[string][]byte{"/data.txt": []byte("abc")},
		Meta:    shell.Meta{Generator: "shgo test", Description: "says hi"},
		Options: shell.Options{Errexit: true},
	}

	files, err := Emit(prog)
	require.NoError(t, err)
	require.Len(t, files, 4)

	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "main", files[MainFile])

	decoded, err := shell.Load(files[ProgramFile])
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded.Name)
	assert.True(t, decoded.Options.Errexit)
	assert.Len(t, decoded.Main.Stmts, 1)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(files[ManifestFile], &m))
	assert.Equal(t, "hello", m.Name)
	assert.Equal(t, []string{"/lib.sh"}, m.Units)
	assert.Equal(t, map[string]int{"/data.txt": 3}, m.Embeds)

	assert.Contains(t, string(files[ModFile]), "module hello\n")
	assert.Contains(t, string(files[ModFile]), "require github.com/ardnew/shgo v")
}

func TestEmit_Empty(t *testing.T) {
	_, err := Emit(&shell.Program{})
	require.ErrorIs(t, err, ErrEmit)
}
