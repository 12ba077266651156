package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/proxy"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultClusterFile is the default name of the hosts file describing the
	// cluster.
	DefaultClusterFile = "hosts.txt"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultBoltDir is the default name of the folder containing the Bolt
	// database file
	DefaultBoltDir = "bolt_db"
)

// Store backends.
const (
	InmemStore  = "inmem"
	BadgerStore = "badger"
	BoltStore   = "bolt"
)

// Default configuration values.
const (
	DefaultLogLevel     = "debug"
	DefaultID           = 1
	DefaultServiceAddr  = "127.0.0.1:8000"
	DefaultRoundTimeout = 2 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultHoleInterval = 5 * time.Second
	DefaultGCInterval   = 1 * time.Second
	DefaultCheckpoint   = 5
	DefaultWorkers      = 20
	DefaultSubmitRetry  = 10 * time.Second
	DefaultStore        = BadgerStore
	DefaultBufferSize   = 1024
)

// Config contains all the configuration properties of a Synod node.
type Config struct {
	// DataDir is the top-level directory containing Synod configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// ID is the ID of this node in the cluster file. IDs start at 1.
	ID int `mapstructure:"id"`

	// ClusterFile is the path of the hosts file. It defaults to hosts.txt in
	// the DataDir.
	ClusterFile string `mapstructure:"cluster"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package.
	ServiceAddr string `mapstructure:"service-listen"`

	// RoundTimeout bounds each phase of a consensus round. It is also the age
	// after which buffered responses are discarded.
	RoundTimeout time.Duration `mapstructure:"timeout"`

	// PollInterval is the longest a waiting round goes without re-checking
	// its quorum. Rounds are normally woken as soon as a response arrives.
	PollInterval time.Duration `mapstructure:"poll"`

	// HoleInterval is the period of the background hole-filling loop.
	HoleInterval time.Duration `mapstructure:"hole-interval"`

	// GCInterval is the period of the message buffer garbage collector.
	GCInterval time.Duration `mapstructure:"gc-interval"`

	// Checkpoint is the number of log writes between two snapshots of the
	// application views. 0 disables snapshots.
	Checkpoint int `mapstructure:"checkpoint"`

	// Workers is the maximum number of messages each role processes
	// concurrently. Messages received above this limit are dropped, like a
	// lost datagram.
	Workers int `mapstructure:"workers"`

	// SubmitRetry is the delay before a submitted event that failed to commit
	// is proposed again.
	SubmitRetry time.Duration `mapstructure:"submit-retry"`

	// Store selects the database backend: inmem, badger, or bolt.
	Store string `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// BufferSize is the capacity of each transport's consumer channel.
	BufferSize int `mapstructure:"buffer"`

	// Proxy is the application proxy that enables Synod to communicate with
	// the application.
	Proxy proxy.AppProxy

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		ID:           DefaultID,
		ClusterFile:  DefaultClusterPath(),
		ServiceAddr:  DefaultServiceAddr,
		RoundTimeout: DefaultRoundTimeout,
		PollInterval: DefaultPollInterval,
		HoleInterval: DefaultHoleInterval,
		GCInterval:   DefaultGCInterval,
		Checkpoint:   DefaultCheckpoint,
		Workers:      DefaultWorkers,
		SubmitRetry:  DefaultSubmitRetry,
		Store:        DefaultStore,
		DatabaseDir:  DefaultDatabaseDir(),
		BufferSize:   DefaultBufferSize,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Timeouts are shortened and the store is kept in
// memory.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.RoundTimeout = 300 * time.Millisecond
	config.PollInterval = 10 * time.Millisecond
	config.HoleInterval = 200 * time.Millisecond
	config.GCInterval = 100 * time.Millisecond
	config.SubmitRetry = 100 * time.Millisecond
	config.Store = InmemStore
	config.NoService = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level Synod directory, and updates the database
// directory and cluster file if they are currently set to their default
// values. If they are not currently the default, it means the user has
// explicitely set them to something else, so avoid changing them again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
	if c.ClusterFile == DefaultClusterPath() {
		c.ClusterFile = filepath.Join(dataDir, DefaultClusterFile)
	}
}

// BoltDir returns the directory of the Bolt database. It is DatabaseDir,
// unless DatabaseDir still names the default Badger folder, in which case the
// Bolt database goes next to it.
func (c *Config) BoltDir() string {
	if filepath.Base(c.DatabaseDir) == DefaultBadgerFile {
		return filepath.Join(filepath.Dir(c.DatabaseDir), DefaultBoltDir)
	}
	return c.DatabaseDir
}

// SetLogger replaces the logger built from LogLevel.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Logger returns a formatted logrus Entry, with prefix set to "synod".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "synod")
}

// DefaultClusterPath returns the default path of the cluster file.
func DefaultClusterPath() string {
	return filepath.Join(DefaultDataDir(), DefaultClusterFile)
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Synod config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Synod")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Synod")
		} else {
			return filepath.Join(home, ".synod")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
