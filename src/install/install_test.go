package install

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/confmerge"
	"github.com/mosaicnetworks/chainboot/src/snapshottest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tree returns every file under dir with its content, keyed by slash
// separated relative path.
func tree(t *testing.T, dir string) map[string]string {
	res := make(map[string]string)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := ioutil.ReadFile(p)
		if err != nil {
			return err
		}
		res[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	require.NoError(t, err)
	return res
}

func newEntryFixture(t *testing.T, live, staged, backup string) Entry {
	dir := t.TempDir()
	e := NewEntry(dir, filepath.Join(dir, "bootstrap"), "blocks")

	for path, content := range map[string]string{e.Live: live, e.Staged: staged, e.Backup: backup} {
		if content == "" {
			continue
		}
		require.NoError(t, os.MkdirAll(path, 0755))
		require.NoError(t, ioutil.WriteFile(filepath.Join(path, "data"), []byte(content), 0644))
	}
	return e
}

func TestClassify(t *testing.T) {
	cases := []struct {
		live, staged, backup string
		want                 EntryState
	}{
		{"", "", "", Absent},
		{"", "new", "", StagedOnly},
		{"old", "", "", LiveOnly},
		{"old", "new", "", LiveAndStaged},
		{"old", "new", "older", LiveAndStaged},
		{"", "new", "old", BackupAndStaged},
		{"new", "", "old", LiveOnlyNew},
		{"", "", "old", BackupOnly},
	}

	for _, c := range cases {
		e := newEntryFixture(t, c.live, c.staged, c.backup)
		assert.Equal(t, c.want, Classify(e), "live=%q staged=%q backup=%q", c.live, c.staged, c.backup)
	}
}

func TestSwapKeepsOneBackupGeneration(t *testing.T) {
	e := newEntryFixture(t, "old", "new", "older")

	s, err := Swap(e)
	require.NoError(t, err)
	assert.Equal(t, LiveOnlyNew, s)

	assert.Equal(t, "new", snapshottest.ReadFile(t, filepath.Join(e.Live, "data")))
	assert.Equal(t, "old", snapshottest.ReadFile(t, filepath.Join(e.Backup, "data")))
	assert.False(t, exists(e.Staged))
}

func TestSwapFreshDataDir(t *testing.T) {
	e := newEntryFixture(t, "", "new", "")

	s, err := Swap(e)
	require.NoError(t, err)
	assert.Equal(t, LiveOnly, s)
	assert.Equal(t, "new", snapshottest.ReadFile(t, filepath.Join(e.Live, "data")))
	assert.False(t, exists(e.Backup))
}

func TestSwapIsIdempotent(t *testing.T) {
	once := newEntryFixture(t, "old", "new", "older")
	twice := newEntryFixture(t, "old", "new", "older")

	_, err := Swap(once)
	require.NoError(t, err)

	_, err = Swap(twice)
	require.NoError(t, err)
	s, err := Swap(twice)
	require.NoError(t, err)
	assert.Equal(t, LiveOnlyNew, s)

	assert.Equal(t, tree(t, filepath.Dir(once.Live)), tree(t, filepath.Dir(twice.Live)))
}

func TestSwapResumesAfterCrash(t *testing.T) {
	// crash after the live copy was moved to the backup
	e := newEntryFixture(t, "", "new", "old")
	require.Equal(t, BackupAndStaged, Classify(e))

	s, err := Swap(e)
	require.NoError(t, err)
	assert.Equal(t, LiveOnlyNew, s)
	assert.Equal(t, "new", snapshottest.ReadFile(t, filepath.Join(e.Live, "data")))
	assert.Equal(t, "old", snapshottest.ReadFile(t, filepath.Join(e.Backup, "data")))
}

func TestSwapLeavesLiveOnlyAlone(t *testing.T) {
	e := newEntryFixture(t, "new", "", "")

	s, err := Swap(e)
	require.NoError(t, err)
	assert.Equal(t, LiveOnly, s)
	assert.Equal(t, "new", snapshottest.ReadFile(t, filepath.Join(e.Live, "data")))
}

func newTestInstaller(t *testing.T, dataDir string) *Installer {
	return NewInstaller(dataDir,
		filepath.Join(dataDir, "bootstrap"),
		filepath.Join(dataDir, "bootstrap.zip"),
		[]string{"blocks", "chainstate"},
		filepath.Join(dataDir, "node.conf"),
		"node.conf",
		confmerge.NewMerger("addnode", common.NewTestEntry(t, "confmerge")),
		common.NewTestEntry(t, "install"))
}

func TestInstall(t *testing.T) {
	dataDir := t.TempDir()

	snapshottest.WriteTree(t, dataDir, snapshottest.Layout{
		"blocks/blk00000.dat": []byte("old blocks"),
		"chainstate/CURRENT":  []byte("old chainstate"),
		"node.conf":           []byte("addnode=1.2.3.4\nlisten=1\n"),
		"peers.dat":           []byte("peers"),
		"banlist.dat":         []byte("bans"),
		"bootstrap.zip":       []byte("PK"),
	})
	snapshottest.WriteTree(t, filepath.Join(dataDir, "bootstrap"), snapshottest.Layout{
		"blocks/blk00000.dat": []byte("new blocks"),
		"chainstate/CURRENT":  []byte("new chainstate"),
		"node.conf":           []byte("addnode=5.6.7.8\n"),
		"verified":            []byte("digest"),
	})

	var last int
	res, err := newTestInstaller(t, dataDir).Install(func(status string, pct int) {
		last = pct
	})
	require.NoError(t, err)

	assert.True(t, res.ConfigMerged)
	assert.Equal(t, LiveOnlyNew, res.States["blocks"])
	assert.Equal(t, LiveOnlyNew, res.States["chainstate"])
	assert.Equal(t, 100, last)

	assert.Equal(t, map[string]string{
		"blocks/blk00000.dat":     "new blocks",
		"blocks.bak/blk00000.dat": "old blocks",
		"chainstate/CURRENT":      "new chainstate",
		"chainstate.bak/CURRENT":  "old chainstate",
		"node.conf":               "listen=1\naddnode=5.6.7.8\n",
		"node.conf.bak":           "addnode=1.2.3.4\nlisten=1\n",
	}, tree(t, dataDir))
}

func TestInstallWithoutStaging(t *testing.T) {
	dataDir := t.TempDir()

	_, err := newTestInstaller(t, dataDir).Install(nil)
	if !common.Is(err, common.IOError) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestInstallResumesAfterCrash(t *testing.T) {
	dataDir := t.TempDir()

	// blocks swapped, chainstate moved to backup, then the process died
	snapshottest.WriteTree(t, dataDir, snapshottest.Layout{
		"blocks/blk00000.dat":     []byte("new blocks"),
		"blocks.bak/blk00000.dat": []byte("old blocks"),
		"chainstate.bak/CURRENT":  []byte("old chainstate"),
	})
	snapshottest.WriteTree(t, filepath.Join(dataDir, "bootstrap"), snapshottest.Layout{
		"chainstate/CURRENT": []byte("new chainstate"),
		"verified":           []byte("digest"),
	})

	res, err := newTestInstaller(t, dataDir).Install(nil)
	require.NoError(t, err)
	assert.False(t, res.ConfigMerged)

	assert.Equal(t, map[string]string{
		"blocks/blk00000.dat":     "new blocks",
		"blocks.bak/blk00000.dat": "old blocks",
		"chainstate/CURRENT":      "new chainstate",
		"chainstate.bak/CURRENT":  "old chainstate",
	}, tree(t, dataDir))
}
