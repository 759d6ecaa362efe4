// Package snapshottest builds synthetic snapshots for tests: a genesis block,
// matching network parameters, and zip archives laid out like the official
// ones.
package snapshottest

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/klauspost/compress/zip"
	"github.com/mosaicnetworks/chainboot/src/chainparams"
)

// Magic is the message start of the test network.
var Magic = [chainparams.MessageStartSize]byte{0xfa, 0xbf, 0xb5, 0xda}

// GenesisBlock returns a deterministic single-transaction block.
func GenesisBlock() *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  []byte("snapshot test genesis"),
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(10*1e8, []byte{0x51}))

	merkle := coinbase.TxHash()
	header := wire.NewBlockHeader(1, &chainhash.Hash{}, &merkle, 0x1e0ffff0, 2546225)
	header.Timestamp = time.Unix(1545392792, 0)

	block := wire.NewMsgBlock(header)
	block.AddTransaction(coinbase)
	return block
}

// Params returns network parameters whose identity is GenesisBlock and Magic.
func Params() *chainparams.Params {
	hash := GenesisBlock().BlockHash()
	return &chainparams.Params{
		Name:           "unittest",
		MessageStart:   Magic,
		GenesisHash:    &hash,
		BootstrapURL:   "",
		ChainSize:      1024,
		ConfigFileName: "node.conf",
	}
}

// BlockFile returns the content of a block file holding block, framed with
// magic and the record size.
func BlockFile(magic [chainparams.MessageStartSize]byte, block *wire.MsgBlock) []byte {
	var rec bytes.Buffer
	if err := block.Serialize(&rec); err != nil {
		panic(err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(rec.Len()))
	buf.Write(rec.Bytes())
	return buf.Bytes()
}

// Layout describes the content of a snapshot, as relative paths to file
// contents. Directories are implied by the paths.
type Layout map[string][]byte

// DefaultLayout is a complete snapshot of the test network. conf, when not
// nil, is added as the node configuration file.
func DefaultLayout(conf []byte) Layout {
	l := Layout{
		"blocks/blk00000.dat": BlockFile(Magic, GenesisBlock()),
		"blocks/index/CURRENT": []byte("MANIFEST-000002\n"),
		"chainstate/CURRENT":   []byte("MANIFEST-000004\n"),
	}
	if conf != nil {
		l["node.conf"] = conf
	}
	return l
}

// WriteArchive writes layout as a zip archive at path.
func WriteArchive(t testing.TB, path string, layout Layout) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range layout {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

// WriteTree writes layout as plain files under dir.
func WriteTree(t testing.TB, dir string, layout Layout) {
	t.Helper()

	for name, content := range layout {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("err: %v", err)
		}
		if err := ioutil.WriteFile(p, content, 0644); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

// ReadFile returns the content of a file, failing the test if it cannot be
// read.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return string(b)
}
