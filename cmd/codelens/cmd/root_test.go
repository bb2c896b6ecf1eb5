package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "index", "worker", "search"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSearchCmd_RequiresRepo(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"search", "login"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo")
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeFile(t, path, `{
		"repo": "myrepo",
		"branch": "main",
		"commit": "abc123",
		"files": [{"Path": "a.go", "Language": "go", "Source": "package a\n"}],
		"deleted": ["b.go"]
	}`)

	m, err := readManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "myrepo", m.Repo)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "a.go", m.Files[0].Path)
	assert.Equal(t, []string{"b.go"}, m.Deleted)
}

func TestReadManifest_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeFile(t, path, "{not json")

	_, err := readManifest(path)
	assert.Error(t, err)
}
