package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mosaicnetworks/chainboot/src/chainparams"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames inside the data directory.
const (
	// DefaultStagingDir is the name of the folder a snapshot is extracted
	// into before it is installed.
	DefaultStagingDir = "bootstrap"

	// DefaultArchiveFile is the name under which a downloaded snapshot is
	// saved.
	DefaultArchiveFile = "bootstrap.zip"

	// DefaultMarkerFile is the name of the file, inside the staging folder,
	// whose presence means the staged snapshot passed verification.
	DefaultMarkerFile = "verified"

	// DefaultJournalDir is the name of the folder holding the Badger database
	// of past runs.
	DefaultJournalDir = "bootstrap.journal"
)

// Default configuration values.
const (
	DefaultLogLevel          = "info"
	DefaultNetwork           = "main"
	DefaultExcludedDirective = "addnode"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultReverifyDigest    = false
	DefaultJournal           = true
	DefaultNoService         = true
)

// Config contains all the configuration properties of the bootstrapper.
type Config struct {
	// DataDir is the network specific data directory of the node. It holds
	// the live chain data that a bootstrap replaces.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every info and debug line.
	LogFile string `mapstructure:"log-file"`

	// Network selects the entry of the network table (main, test, regtest).
	Network string `mapstructure:"network"`

	// BootstrapURL overrides the snapshot location of the network table.
	BootstrapURL string `mapstructure:"url"`

	// ConfigFile is the path of the live node configuration file. Defaults
	// to the network's configuration file name inside DataDir.
	ConfigFile string `mapstructure:"conf"`

	// ChainSize overrides the expected full-chain size of the network table.
	// Twice this amount of free space is required to run.
	ChainSize uint64 `mapstructure:"chain-size"`

	// ExcludedDirective is the keyword of the configuration lines dropped
	// from the live configuration when a staged one is merged in.
	ExcludedDirective string `mapstructure:"exclude-directive"`

	// ReverifyDigest makes installation re-hash the archive, when it is still
	// around, and compare it with the digest recorded at verification time.
	ReverifyDigest bool `mapstructure:"reverify"`

	// Journal enables the on-disk history of runs.
	Journal bool `mapstructure:"journal"`

	// NoService disables the HTTP status service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP status service.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		Network:           DefaultNetwork,
		ExcludedDirective: DefaultExcludedDirective,
		ReverifyDigest:    DefaultReverifyDigest,
		Journal:           DefaultJournal,
		NoService:         DefaultNoService,
		ServiceAddr:       DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values, rooted in
// dataDir, and a special logger for debugging tests.
func NewTestConfig(t testing.TB, dataDir string, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.DataDir = dataDir
	config.Journal = false
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Validate checks the parts of the configuration without which nothing can
// run: an existing data directory and a known network whose identity is
// complete.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return common.NewError(common.ConfigurationError, "data directory is not set")
	}

	fi, err := os.Stat(c.DataDir)
	if err != nil {
		return common.WrapError(common.ConfigurationError, err, "data directory %s is not usable", c.DataDir)
	}

	if !fi.IsDir() {
		return common.NewError(common.ConfigurationError, "data directory %s is not a directory", c.DataDir)
	}

	p, err := c.Params()
	if err != nil {
		return err
	}

	if err := p.Identity(); err != nil {
		return common.WrapError(common.ConfigurationError, err, "network parameters are incomplete")
	}

	return nil
}

// Params returns the network table entry selected by Network.
func (c *Config) Params() (*chainparams.Params, error) {
	p, err := chainparams.ByName(c.Network)
	if err != nil {
		return nil, common.WrapError(common.ConfigurationError, err, "network parameters are not selected")
	}
	return p, nil
}

// SnapshotURL returns the configured snapshot location, falling back on the
// network parameters p.
func (c *Config) SnapshotURL(p *chainparams.Params) string {
	if c.BootstrapURL != "" {
		return c.BootstrapURL
	}
	return p.BootstrapURL
}

// RequiredSpace returns the free space, in bytes, a run needs: twice the
// expected size of the chain.
func (c *Config) RequiredSpace(p *chainparams.Params) uint64 {
	size := c.ChainSize
	if size == 0 {
		size = p.ChainSize
	}
	return 2 * size
}

// StagingDir returns the full path of the staging folder.
func (c *Config) StagingDir() string {
	return filepath.Join(c.DataDir, DefaultStagingDir)
}

// ArchivePath returns the full path a downloaded snapshot is saved to.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, DefaultArchiveFile)
}

// MarkerPath returns the full path of the verified marker.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.StagingDir(), DefaultMarkerFile)
}

// JournalDir returns the full path of the journal database.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, DefaultJournalDir)
}

// LiveConfigPath returns the path of the configuration file the node reads.
func (c *Config) LiveConfigPath(p *chainparams.Params) string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	name := p.ConfigFileName
	if name == "" {
		name = "node.conf"
	}
	return filepath.Join(c.DataDir, name)
}
