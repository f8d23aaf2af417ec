package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sectornet/routing/src/routing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a routing node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runRouting,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runRouting(cmd *cobra.Command, args []string) error {
	engine := routing.NewRouting(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Duplicate log output to file")

	// Section sizing
	cmd.Flags().Int("elder-size", _config.ElderSize, "Target number of elders per section")
	cmd.Flags().Int("section-size", _config.RecommendedSectionSize, "Recommended section size, split threshold")
	cmd.Flags().Int("min-section-size", _config.MinSectionSize, "Merge threshold")
	cmd.Flags().Int("byzantine-tolerance", _config.ByzantineTolerance, "Assumed max Byzantine members per delivery group")

	// Relocation
	cmd.Flags().Uint8("relocation-age", _config.RelocationAgeThreshold, "Age above which members become relocation candidates")
	cmd.Flags().Int("unresponsive-window", _config.UnresponsiveWindow, "Churn rounds over which vote participation is tracked")
	cmd.Flags().Int("unresponsive-threshold", _config.UnresponsiveThreshold, "Missed votes before a member is flagged unresponsive")
	cmd.Flags().Duration("relocation-interval", _config.RelocationInterval, "Period of the relocation re-check timer")

	// Timers
	cmd.Flags().DurationP("vote-expiry", "v", _config.VoteExpiry, "Time before an open proposal expires")
	cmd.Flags().DurationP("bootstrap-timeout", "b", _config.BootstrapTimeout, "Timeout of the initial join")
	cmd.Flags().Duration("filter-window", _config.FilterWindow, "Duplicate suppression window")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in in-memory caches")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":                _config.DataDir,
		"LogLevel":               _config.LogLevel,
		"ElderSize":              _config.ElderSize,
		"RecommendedSectionSize": _config.RecommendedSectionSize,
		"MinSectionSize":         _config.MinSectionSize,
		"ByzantineTolerance":     _config.ByzantineTolerance,
		"RelocationAgeThreshold": _config.RelocationAgeThreshold,
		"UnresponsiveWindow":     _config.UnresponsiveWindow,
		"UnresponsiveThreshold":  _config.UnresponsiveThreshold,
		"VoteExpiry":             _config.VoteExpiry,
		"RelocationInterval":     _config.RelocationInterval,
		"FilterWindow":           _config.FilterWindow,
		"CacheSize":              _config.CacheSize,
		"Store":                  _config.Store,
		"DatabaseDir":            _config.DatabaseDir,
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

	// look for config file in [datadir]/routing.toml (.json, .yaml also work)
	viper.SetConfigName("routing")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
