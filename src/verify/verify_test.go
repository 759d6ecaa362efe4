package verify

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/snapshottest"
	"github.com/stretchr/testify/require"
)

func TestContainer(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.zip")
	snapshottest.WriteArchive(t, good, snapshottest.DefaultLayout(nil))
	require.NoError(t, Container(good))

	// Same well-formed content, wrong signature.
	content, err := ioutil.ReadFile(good)
	require.NoError(t, err)
	content[0], content[1] = 'Z', 'Z'
	bad := filepath.Join(dir, "bad.zip")
	require.NoError(t, ioutil.WriteFile(bad, content, 0644))

	err = Container(bad)
	require.True(t, common.Is(err, common.FormatError), "%v", err)
	require.Contains(t, err.Error(), bad)

	short := filepath.Join(dir, "short.zip")
	require.NoError(t, ioutil.WriteFile(short, []byte("P"), 0644))
	require.True(t, common.Is(Container(short), common.FormatError))

	require.True(t, common.Is(Container(filepath.Join(dir, "missing.zip")), common.IOError))
}

func TestCompletenessReportsFirstMissing(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "chainstate"), 0755))

	err := Completeness(dir, RequiredEntries)
	require.True(t, common.Is(err, common.FormatError))
	require.Contains(t, err.Error(), filepath.Join(dir, "blocks"))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "blocks"), 0755))
	require.NoError(t, Completeness(dir, RequiredEntries))
}

func TestIdentity(t *testing.T) {
	dir := t.TempDir()
	snapshottest.WriteTree(t, dir, snapshottest.DefaultLayout(nil))

	v := NewVerifier(snapshottest.Params(), nil, common.NewTestEntry(t, "verify"))
	require.NoError(t, v.Identity(dir))
}

func TestIdentityWrongMagic(t *testing.T) {
	dir := t.TempDir()
	layout := snapshottest.DefaultLayout(nil)
	layout["blocks/blk00000.dat"] = snapshottest.BlockFile(
		[4]byte{0x01, 0x02, 0x03, 0x04}, snapshottest.GenesisBlock())
	snapshottest.WriteTree(t, dir, layout)

	v := NewVerifier(snapshottest.Params(), nil, nil)
	err := v.Identity(dir)
	require.True(t, common.Is(err, common.IdentityError), "%v", err)
	require.Contains(t, err.Error(), "01020304")
}

func TestIdentityWrongGenesis(t *testing.T) {
	dir := t.TempDir()
	snapshottest.WriteTree(t, dir, snapshottest.DefaultLayout(nil))

	params := snapshottest.Params()
	other := chainhash.DoubleHashH([]byte("another network"))
	params.GenesisHash = &other

	// The required directories are all there, identity still fails.
	require.NoError(t, Completeness(dir, RequiredEntries))

	err := NewVerifier(params, nil, nil).Identity(dir)
	require.True(t, common.Is(err, common.IdentityError), "%v", err)
	require.Contains(t, err.Error(), other.String())
}

func TestIdentityCustomHeaderHash(t *testing.T) {
	dir := t.TempDir()
	snapshottest.WriteTree(t, dir, snapshottest.DefaultLayout(nil))

	header := snapshottest.GenesisBlock().Header
	hashHeader := func(h *wire.BlockHeader) chainhash.Hash {
		var buf bytes.Buffer
		require.NoError(t, h.Serialize(&buf))
		return chainhash.HashH(buf.Bytes())
	}

	params := snapshottest.Params()
	want := hashHeader(&header)
	params.HeaderHash = hashHeader

	// the default double SHA256 no longer matches
	require.Error(t, NewVerifier(params, nil, nil).Identity(dir))

	params.GenesisHash = &want
	require.NoError(t, NewVerifier(params, nil, nil).Identity(dir))
}

func TestIdentityBadRecordSize(t *testing.T) {
	dir := t.TempDir()
	content := snapshottest.BlockFile(snapshottest.Magic, snapshottest.GenesisBlock())
	// Record size 10, below a bare header.
	content[4], content[5], content[6], content[7] = 10, 0, 0, 0
	snapshottest.WriteTree(t, dir, snapshottest.Layout{
		"blocks/blk00000.dat": content,
		"chainstate/CURRENT":  []byte("x"),
	})

	err := NewVerifier(snapshottest.Params(), nil, nil).Identity(dir)
	require.True(t, common.Is(err, common.IdentityError), "%v", err)
	require.Contains(t, err.Error(), "invalid block size 10")
}

func TestIdentityTruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	snapshottest.WriteTree(t, dir, snapshottest.Layout{
		"blocks/blk00000.dat": snapshottest.Magic[:3],
	})

	err := NewVerifier(snapshottest.Params(), nil, nil).Identity(dir)
	require.True(t, common.Is(err, common.IdentityError), "%v", err)
}

func TestIdentityMissingParams(t *testing.T) {
	params := snapshottest.Params()
	params.GenesisHash = nil

	err := Identity(filepath.Join(t.TempDir(), FirstBlockFile), params)
	require.True(t, common.Is(err, common.ConfigurationError), "%v", err)
}

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, ioutil.WriteFile(path, []byte("abc"), 0644))

	d, err := Digest(path)
	require.NoError(t, err)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)

	require.NoError(t, CheckDigest(path, d))
	require.True(t, common.Is(CheckDigest(path, "00"), common.IdentityError))
}
