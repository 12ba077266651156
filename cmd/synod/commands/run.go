package commands

import (
	"github.com/mosaicnetworks/synod/src/dummy"
	"github.com/mosaicnetworks/synod/src/synod"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Synod node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runSynod,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSynod(cmd *cobra.Command, args []string) error {
	_config.Synod.Proxy = dummy.NewInmemDummyClient(_config.Synod.Logger())

	engine := synod.NewSynod(&_config.Synod)

	if err := engine.Init(); err != nil {
		_config.Synod.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Synod.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Synod.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write info and debug logs to this file")

	// Cluster
	cmd.Flags().IntP("id", "i", _config.Synod.ID, "ID of this node, its line number in the cluster file")
	cmd.Flags().String("cluster", _config.Synod.ClusterFile, "Cluster hosts file")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Synod.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Synod.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().String("store", _config.Synod.Store, "Database backend (inmem, badger, bolt)")
	cmd.Flags().String("db", _config.Synod.DatabaseDir, "Database directory")
	cmd.Flags().Int("checkpoint", _config.Synod.Checkpoint, "Number of log writes between snapshots, 0 to disable")

	// Protocol
	cmd.Flags().DurationP("timeout", "t", _config.Synod.RoundTimeout, "Timeout of each phase of a consensus round")
	cmd.Flags().Duration("poll", _config.Synod.PollInterval, "Max interval between quorum checks")
	cmd.Flags().Duration("hole-interval", _config.Synod.HoleInterval, "Time between hole-filling passes")
	cmd.Flags().Duration("gc-interval", _config.Synod.GCInterval, "Time between message buffer collections")
	cmd.Flags().Duration("submit-retry", _config.Synod.SubmitRetry, "Delay before retrying a failed submission")
	cmd.Flags().Int("workers", _config.Synod.Workers, "Max concurrent message handlers per role")
	cmd.Flags().Int("buffer", _config.Synod.BufferSize, "Size of the transport receive queues")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db or --cluster, this will
	// update the default paths to be inside the new datadir
	_config.Synod.SetDataDir(_config.Synod.DataDir)

	_config.Synod.SetLogger(newLogger(_config.Synod.LogLevel, _config.LogFile))

	logFields := logrus.Fields{
		"synod.DataDir":      _config.Synod.DataDir,
		"synod.ID":           _config.Synod.ID,
		"synod.ClusterFile":  _config.Synod.ClusterFile,
		"synod.ServiceAddr":  _config.Synod.ServiceAddr,
		"synod.NoService":    _config.Synod.NoService,
		"synod.Store":        _config.Synod.Store,
		"synod.LogLevel":     _config.Synod.LogLevel,
		"synod.RoundTimeout": _config.Synod.RoundTimeout,
		"synod.PollInterval": _config.Synod.PollInterval,
		"synod.HoleInterval": _config.Synod.HoleInterval,
		"synod.GCInterval":   _config.Synod.GCInterval,
		"synod.SubmitRetry":  _config.Synod.SubmitRetry,
		"synod.Workers":      _config.Synod.Workers,
		"synod.BufferSize":   _config.Synod.BufferSize,
		"LogFile":            _config.LogFile,
	}

	if _config.Synod.Store != "inmem" {
		logFields["synod.DatabaseDir"] = _config.Synod.DatabaseDir
		logFields["synod.Checkpoint"] = _config.Synod.Checkpoint
	}

	_config.Synod.Logger().WithFields(logFields).Debug("RUN")

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

	// look for config file in [datadir]/synod.toml (.json, .yaml also work)
	viper.SetConfigName("synod")
	viper.AddConfigPath(_config.Synod.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Synod.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Synod.Logger().Debugf("No config file found in: %s", _config.Synod.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
