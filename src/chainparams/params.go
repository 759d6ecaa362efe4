// Package chainparams holds the static network table a node is bootstrapped
// against: the message start bytes that prefix every record in the block
// files, the hash of the genesis block, where the official snapshot lives and
// how large the chain is expected to be.
package chainparams

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MessageStartSize is the length of the network magic.
	MessageStartSize = 4

	gigabyte = 1000 * 1000 * 1000
)

// Params defines a network by its identity and snapshot source.
type Params struct {
	// Name is the short network name used on the command line.
	Name string

	// MessageStart is the magic written in front of every record of the
	// block files.
	MessageStart [MessageStartSize]byte

	// GenesisHash is the hash of the first block of the chain.
	GenesisHash *chainhash.Hash

	// BootstrapURL is the location of the official snapshot archive.
	BootstrapURL string

	// ChainSize is the expected size in bytes of the full chain data.
	ChainSize uint64

	// ConfigFileName is the name of the node configuration file, both in the
	// data directory and in the snapshot archive.
	ConfigFileName string

	// HeaderHash, if set, replaces the double SHA256 of the block header
	// for chains with a different proof of work hash.
	HeaderHash func(h *wire.BlockHeader) chainhash.Hash
}

// MainNetParams ...
var MainNetParams = Params{
	Name:           "main",
	MessageStart:   [MessageStartSize]byte{0x4c, 0xaf, 0x2c, 0xe9},
	GenesisHash:    newHashFromStr("e2aacf31ce196903e00157a50d207d04a152176b4eb83ecbb0b75b0c9455d1fd"),
	BootstrapURL:   "https://bs.scryptachain.org/latest.zip",
	ChainSize:      1 * gigabyte,
	ConfigFileName: "galilel.conf",
}

// TestNetParams ...
var TestNetParams = Params{
	Name:           "test",
	MessageStart:   [MessageStartSize]byte{0x45, 0x76, 0x65, 0xba},
	GenesisHash:    newHashFromStr("d07464ddcf6a6d7e7f48de12d9e824bc1a874965d5f52b300d9962ca489bb8e3"),
	BootstrapURL:   "https://galilel.org/bootstrap/v3/testnet",
	ChainSize:      1 * gigabyte,
	ConfigFileName: "galilel.conf",
}

// RegressionNetParams has no published genesis hash nor snapshot: a regtest
// chain is local to one machine.
var RegressionNetParams = Params{
	Name:           "regtest",
	MessageStart:   [MessageStartSize]byte{0xa1, 0xcf, 0x7e, 0xac},
	ChainSize:      1 * gigabyte,
	ConfigFileName: "galilel.conf",
}

var registered = []*Params{
	&MainNetParams,
	&TestNetParams,
	&RegressionNetParams,
}

// ByName looks up the parameters of a network. The aliases "mainnet" and
// "testnet" are accepted as well.
func ByName(name string) (*Params, error) {
	n := strings.TrimSuffix(strings.ToLower(name), "net")
	for _, p := range registered {
		if p.Name == n {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// Identity checks that the parameters are complete enough to decide whether a
// snapshot belongs to this network.
func (p *Params) Identity() error {
	if p.GenesisHash == nil {
		return fmt.Errorf("network %s has no genesis hash", p.Name)
	}
	var zero [MessageStartSize]byte
	if p.MessageStart == zero {
		return fmt.Errorf("network %s has no message start", p.Name)
	}
	return nil
}

// BlockHash returns the hash identifying the block with header h.
func (p *Params) BlockHash(h *wire.BlockHeader) chainhash.Hash {
	if p.HeaderHash != nil {
		return p.HeaderHash(h)
	}
	return h.BlockHash()
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash. It only differs from the one available in chainhash in
// that it panics on an error since it will only (and must only) be called
// with hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) *chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return hash
}
