// Package verify decides whether a snapshot can be trusted.
//
// A snapshot goes through three checks before it is marked as verified:
//
//  1. Container: the archive starts with the zip signature.
//  2. Completeness: once extracted, every required entry is present.
//  3. Identity: the first record of the first block file carries the
//     network magic, and that record is the genesis block of the network.
//
// Only then is a digest of the whole archive computed for the marker.
package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/wire"
	"github.com/mosaicnetworks/chainboot/src/chainparams"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/sirupsen/logrus"
)

const (
	// MinRecordSize is the size of a bare block header.
	MinRecordSize = 80

	// MaxRecordSize is the largest block a record may hold.
	MaxRecordSize = 2000000

	// FirstBlockFile is the name of the block file holding the genesis
	// block.
	FirstBlockFile = "blk00000.dat"

	recordHeaderSize = chainparams.MessageStartSize + 4
)

// ZipSignature is the local file header signature every zip archive starts
// with.
var ZipSignature = []byte{'P', 'K'}

// RequiredEntries lists the top-level entries of a snapshot, in installation
// order. The first one holds the block files.
var RequiredEntries = []string{"blocks", "chainstate"}

// Verifier runs the checks of a snapshot against one network.
type Verifier struct {
	params  *chainparams.Params
	entries []string
	logger  *logrus.Entry
}

// NewVerifier ...
func NewVerifier(params *chainparams.Params, entries []string, logger *logrus.Entry) *Verifier {
	if len(entries) == 0 {
		entries = RequiredEntries
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Verifier{
		params:  params,
		entries: entries,
		logger:  logger,
	}
}

// Entries returns the required top-level entries.
func (v *Verifier) Entries() []string {
	return v.entries
}

// Container checks that path is a zip archive.
func (v *Verifier) Container(path string) error {
	return Container(path)
}

// Completeness checks that every required entry exists under stagingDir.
func (v *Verifier) Completeness(stagingDir string) error {
	return Completeness(stagingDir, v.entries)
}

// Identity checks that the snapshot staged in stagingDir belongs to the
// network of the Verifier.
func (v *Verifier) Identity(stagingDir string) error {
	path := filepath.Join(stagingDir, v.entries[0], FirstBlockFile)

	err := Identity(path, v.params)
	if err == nil {
		v.logger.WithFields(logrus.Fields{
			"network": v.params.Name,
			"genesis": v.params.GenesisHash,
		}).Debug("Snapshot belongs to network")
	}

	return err
}

// Container checks that the file at path starts with the zip signature.
func Container(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return common.WrapError(common.IOError, err, "failed to open path %s", path)
	}
	defer f.Close()

	sig := make([]byte, len(ZipSignature))
	if _, err := io.ReadFull(f, sig); err != nil || !bytes.Equal(sig, ZipSignature) {
		return common.NewError(common.FormatError, "file %s is not a valid .zip archive", path)
	}

	return nil
}

// Completeness checks that every entry exists under dir. The first missing
// entry is reported.
func Completeness(dir string, entries []string) error {
	for _, e := range entries {
		p := filepath.Join(dir, e)
		if _, err := os.Stat(p); err != nil {
			return common.NewError(common.FormatError, "verification failed, %s does not exist", p)
		}
	}
	return nil
}

// Identity reads the first record of the block file at path and checks it
// against the magic and genesis hash of params.
func Identity(path string, params *chainparams.Params) error {
	if params == nil {
		return common.NewError(common.ConfigurationError, "network parameters are not selected")
	}

	if err := params.Identity(); err != nil {
		return common.WrapError(common.ConfigurationError, err, "cannot verify network")
	}

	f, err := os.Open(path)
	if err != nil {
		return common.WrapError(common.IdentityError, err, "failed to open file: %s", path)
	}
	defer f.Close()

	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return common.WrapError(common.IdentityError, err, "cannot read record header of %s", path)
	}

	magic := header[:chainparams.MessageStartSize]
	if !bytes.Equal(magic, params.MessageStart[:]) {
		return common.NewError(common.IdentityError,
			"invalid magic number %x in the file: %s, expected %x",
			magic, path, params.MessageStart[:])
	}

	size := binary.LittleEndian.Uint32(header[chainparams.MessageStartSize:])
	if size < MinRecordSize || size > MaxRecordSize {
		return common.NewError(common.IdentityError, "invalid block size %d in the file: %s", size, path)
	}

	record := make([]byte, size)
	if _, err := io.ReadFull(f, record); err != nil {
		return common.WrapError(common.IdentityError, err, "deserialize or I/O error in %s", path)
	}

	var block wire.MsgBlock
	if err := block.Deserialize(bytes.NewReader(record)); err != nil {
		return common.WrapError(common.IdentityError, err, "deserialize or I/O error in %s", path)
	}

	hash := params.BlockHash(&block.Header)
	if !hash.IsEqual(params.GenesisHash) {
		return common.NewError(common.IdentityError,
			"block hash %s does not match genesis block hash %s", hash, params.GenesisHash)
	}

	return nil
}

// Digest returns the hex encoded SHA256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", common.WrapError(common.IOError, err, "failed to open path %s", path)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", common.WrapError(common.IOError, err, "failed to read %s", path)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CheckDigest compares the digest of the file at path with want.
func CheckDigest(path, want string) error {
	got, err := Digest(path)
	if err != nil {
		return err
	}
	if got != want {
		return common.NewError(common.IdentityError,
			"digest of %s is %s, expected %s", path, got, want)
	}
	return nil
}
