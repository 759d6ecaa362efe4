package commands

import (
	"os"

	"github.com/mosaicnetworks/chainboot/src/bootstrap"
	"github.com/mosaicnetworks/chainboot/src/config"
	"github.com/mosaicnetworks/chainboot/src/journal"
	"github.com/mosaicnetworks/chainboot/src/service"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	_config = NewDefaultCLIConfig()
)

func init() {
	flags := RootCmd.PersistentFlags()

	flags.String("datadir", _config.Bootstrap.DataDir, "Data directory of the node")
	flags.String("log", _config.Bootstrap.LogLevel, "debug, info, warn, error, fatal, panic")
	flags.String("log-file", _config.Bootstrap.LogFile, "Also write info and debug logs to this file")

	// Network
	flags.String("network", _config.Bootstrap.Network, "main, test or regtest")
	flags.String("url", _config.Bootstrap.BootstrapURL, "Override the snapshot URL of the network")
	flags.String("conf", _config.Bootstrap.ConfigFile, "Node configuration file (default <datadir>/<network conf>)")
	flags.Uint64("chain-size", _config.Bootstrap.ChainSize, "Override the expected chain size in bytes")

	// Install
	flags.String("exclude-directive", _config.Bootstrap.ExcludedDirective, "Configuration lines dropped when merging")
	flags.Bool("reverify", _config.Bootstrap.ReverifyDigest, "Re-check the archive digest before installing")

	// Journal and service
	flags.Bool("journal", _config.Bootstrap.Journal, "Record runs in the data directory")
	flags.Bool("no-service", _config.Bootstrap.NoService, "Do not serve the HTTP status API")
	flags.StringP("service-listen", "s", _config.Bootstrap.ServiceAddr, "Listen IP:Port for HTTP service")
}

//RootCmd is the root command for chainboot
var RootCmd = &cobra.Command{
	Use:               "chainboot",
	Short:             "Bootstrap a node from a chain snapshot",
	TraverseChildren:  true,
	PersistentPreRunE: loadConfig,
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	_config.Bootstrap.SetLogger(newLogger())

	_config.Bootstrap.Logger().WithFields(logrus.Fields{
		"DataDir":           _config.Bootstrap.DataDir,
		"LogLevel":          _config.Bootstrap.LogLevel,
		"LogFile":           _config.Bootstrap.LogFile,
		"Network":           _config.Bootstrap.Network,
		"BootstrapURL":      _config.Bootstrap.BootstrapURL,
		"ConfigFile":        _config.Bootstrap.ConfigFile,
		"ChainSize":         _config.Bootstrap.ChainSize,
		"ExcludedDirective": _config.Bootstrap.ExcludedDirective,
		"ReverifyDigest":    _config.Bootstrap.ReverifyDigest,
		"Journal":           _config.Bootstrap.Journal,
		"NoService":         _config.Bootstrap.NoService,
		"ServiceAddr":       _config.Bootstrap.ServiceAddr,
		"Mode":              _config.Mode,
		"File":              _config.File,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/chainboot.toml (.json, .yaml also work)
	viper.SetConfigName("chainboot")               // name of config file (without extension)
	viper.AddConfigPath(_config.Bootstrap.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Bootstrap.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Bootstrap.Logger().Debugf("No config file found in: %s", _config.Bootstrap.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(_config.Bootstrap.LogLevel)
	logger.Formatter = new(prefixed.TextFormatter)

	if _config.Bootstrap.LogFile == "" {
		return logger
	}

	f, err := os.OpenFile(_config.Bootstrap.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.Infof("Failed to open %s file, using default stderr", _config.Bootstrap.LogFile)
		return logger
	}
	f.Close()

	pathMap := lfshook.PathMap{
		logrus.InfoLevel:  _config.Bootstrap.LogFile,
		logrus.DebugLevel: _config.Bootstrap.LogFile,
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}

/*******************************************************************************
* ORCHESTRATOR
*******************************************************************************/

// session is an orchestrator with the journal and service attached to it for
// the duration of a command.
type session struct {
	orchestrator *bootstrap.Orchestrator
	journal      *journal.Journal
}

func openSession() (*session, error) {
	conf := &_config.Bootstrap
	logger := conf.Logger()

	s := &session{}
	deps := bootstrap.Deps{}

	if conf.Journal {
		j, err := journal.Open(conf.JournalDir(), logger.WithField("component", "journal"))
		if err != nil {
			logger.WithError(err).Warn("Journal disabled")
		} else {
			s.journal = j
			deps.Journal = j
		}
	}

	o, err := bootstrap.NewAppContext().NewOrchestrator(conf, deps)
	if err != nil {
		s.close()
		return nil, err
	}
	s.orchestrator = o

	if !conf.NoService {
		var history service.History
		if s.journal != nil {
			history = s.journal
		}
		srv := service.NewService(conf.ServiceAddr, o, history, logger.WithField("component", "service"))
		go srv.Serve()
	}

	return s, nil
}

func (s *session) close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			_config.Bootstrap.Logger().WithError(err).Warn("Closing journal")
		}
	}
}
