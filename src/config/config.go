package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sectornet/routing/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database with the persisted section state
	DefaultBadgerFile = "section_db"
)

// Default configuration values.
const (
	DefaultLogLevel = "debug"

	// DefaultElderSize is the target number of elders per section.
	DefaultElderSize = 7

	// DefaultRecommendedSectionSize is the number of members a section aims
	// for. A split is only allowed if both halves would reach this size.
	DefaultRecommendedSectionSize = 60

	// DefaultMinSectionSize is the size under which a section seeks to merge
	// with its sibling.
	DefaultMinSectionSize = 10

	// DefaultByzantineTolerance is the assumed maximum number of Byzantine
	// members in any delivery group, used to size the group. This is
	// deliberately a separate knob from the 2/3 membership-change quorum.
	DefaultByzantineTolerance = 2

	// DefaultRelocationAgeThreshold is the age above which a member becomes a
	// relocation candidate.
	DefaultRelocationAgeThreshold = 5

	// DefaultUnresponsiveWindow is the number of recent churn rounds over
	// which vote participation is tracked.
	DefaultUnresponsiveWindow = 20

	// DefaultUnresponsiveThreshold is the number of missed votes within the
	// window after which a member is flagged unresponsive.
	DefaultUnresponsiveThreshold = 5

	DefaultVoteExpiry         = 30 * time.Second
	DefaultBootstrapTimeout   = 20 * time.Second
	DefaultRelocationInterval = 1 * time.Minute

	// DefaultFilterWindow is how long a message identifier is remembered for
	// duplicate suppression.
	DefaultFilterWindow = 10 * time.Minute

	// DefaultCacheSize bounds the in-memory caches (message filter, proposal
	// index).
	DefaultCacheSize = 10000

	DefaultStore = false
)

// Config contains all the configuration properties of a routing node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates log output to a file via a logrus hook.
	LogFile string `mapstructure:"log-file"`

	// ElderSize is the target number of elders per section.
	ElderSize int `mapstructure:"elder-size"`

	// RecommendedSectionSize is the split threshold; see DefaultRecommendedSectionSize.
	RecommendedSectionSize int `mapstructure:"section-size"`

	// MinSectionSize is the merge threshold.
	MinSectionSize int `mapstructure:"min-section-size"`

	// ByzantineTolerance is the assumed maximum number of Byzantine members in
	// any delivery group.
	ByzantineTolerance int `mapstructure:"byzantine-tolerance"`

	// RelocationAgeThreshold is the age above which members become relocation
	// candidates.
	RelocationAgeThreshold uint8 `mapstructure:"relocation-age"`

	// UnresponsiveWindow and UnresponsiveThreshold control when a member is
	// flagged unresponsive; see the corresponding defaults.
	UnresponsiveWindow    int `mapstructure:"unresponsive-window"`
	UnresponsiveThreshold int `mapstructure:"unresponsive-threshold"`

	// VoteExpiry is how long a proposal stays open before expiring without
	// quorum.
	VoteExpiry time.Duration `mapstructure:"vote-expiry"`

	// BootstrapTimeout is the timeout of the initial join.
	BootstrapTimeout time.Duration `mapstructure:"bootstrap-timeout"`

	// RelocationInterval is the period of the relocation re-check timer.
	RelocationInterval time.Duration `mapstructure:"relocation-interval"`

	// FilterWindow is how long the message filter remembers an identifier.
	FilterWindow time.Duration `mapstructure:"filter-window"`

	// CacheSize bounds the in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Store activates persistent storage of the section and its proof chain.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns the default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:                DefaultDataDir(),
		LogLevel:               DefaultLogLevel,
		ElderSize:              DefaultElderSize,
		RecommendedSectionSize: DefaultRecommendedSectionSize,
		MinSectionSize:         DefaultMinSectionSize,
		ByzantineTolerance:     DefaultByzantineTolerance,
		RelocationAgeThreshold: DefaultRelocationAgeThreshold,
		UnresponsiveWindow:     DefaultUnresponsiveWindow,
		UnresponsiveThreshold:  DefaultUnresponsiveThreshold,
		VoteExpiry:             DefaultVoteExpiry,
		BootstrapTimeout:       DefaultBootstrapTimeout,
		RelocationInterval:     DefaultRelocationInterval,
		FilterWindow:           DefaultFilterWindow,
		CacheSize:              DefaultCacheSize,
		Store:                  DefaultStore,
		DatabaseDir:            DefaultDatabaseDir(),
	}
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level data directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "routing".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range logrus.AllLevels {
				pathMap[l] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(prefixed.TextFormatter)))
		}
	}
	return c.logger.WithField("prefix", "routing")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Routing")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Routing")
		} else {
			return filepath.Join(home, ".routing")
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

// LogLevel parses a logrus level name.
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
