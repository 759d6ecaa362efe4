package confmerge

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/snapshottest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLines(t *testing.T) {
	got := MergeLines(
		[]string{"addnode=1.2.3.4", "listen=1"},
		[]string{"addnode=5.6.7.8"},
		"addnode")

	assert.Equal(t, []string{"listen=1", "addnode=5.6.7.8"}, got)
}

func TestMergeLinesKeepsDuplicates(t *testing.T) {
	got := MergeLines(
		[]string{"rpcport=1", "# addnode is not wanted"},
		[]string{"rpcport=2"},
		"addnode")

	assert.Equal(t, []string{"rpcport=1", "rpcport=2"}, got)
}

type mergeFiles struct {
	live, staged string
}

func newMergeFiles(t *testing.T, live, staged string) mergeFiles {
	dir := t.TempDir()
	f := mergeFiles{
		live:   filepath.Join(dir, "node.conf"),
		staged: filepath.Join(dir, "bootstrap", "node.conf"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.staged), 0755))
	if live != "" {
		require.NoError(t, ioutil.WriteFile(f.live, []byte(live), 0644))
	}
	if staged != "" {
		require.NoError(t, ioutil.WriteFile(f.staged, []byte(staged), 0644))
	}
	return f
}

func TestMergeNoStaged(t *testing.T) {
	f := newMergeFiles(t, "listen=1\n", "")
	m := NewMerger("addnode", common.NewTestEntry(t, "confmerge"))

	merged, err := m.Merge(f.live, f.staged)
	require.NoError(t, err)
	assert.False(t, merged)
	assert.Equal(t, "listen=1\n", snapshottest.ReadFile(t, f.live))

	if _, err := os.Stat(BackupPath(f.live)); !os.IsNotExist(err) {
		t.Fatalf("no backup expected")
	}
}

func TestMergeNoLive(t *testing.T) {
	f := newMergeFiles(t, "", "addnode=5.6.7.8\n")
	m := NewMerger("addnode", common.NewTestEntry(t, "confmerge"))

	merged, err := m.Merge(f.live, f.staged)
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, "addnode=5.6.7.8\n", snapshottest.ReadFile(t, f.live))
}

func TestMergeBoth(t *testing.T) {
	f := newMergeFiles(t, "addnode=1.2.3.4\nlisten=1\n", "addnode=5.6.7.8\n")
	require.NoError(t, ioutil.WriteFile(BackupPath(f.live), []byte("old backup\n"), 0644))

	m := NewMerger("addnode", common.NewTestEntry(t, "confmerge"))

	merged, err := m.Merge(f.live, f.staged)
	require.NoError(t, err)
	assert.True(t, merged)

	assert.Equal(t, "listen=1\naddnode=5.6.7.8\n", snapshottest.ReadFile(t, f.live))
	assert.Equal(t, "addnode=1.2.3.4\nlisten=1\n", snapshottest.ReadFile(t, BackupPath(f.live)))
}
