/*
Copyright © 2020 MARLIN TEAM <info@marlin.pro>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"logcount/logger"
	"logcount/version"
)

const defaultConfigFile = "/etc/logcount/config.yaml"

var cfgFile string
var logLevel string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "logcount",
	Short:   "logcount counts log events by source and severity for Prometheus",
	Long:    "logcount tails rotating log files, classifies every new line against a per-source grammar and exports the running counts as Prometheus metrics",
	Version: version.RootCmdVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfig(); err != nil {
			return err
		}
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	SilenceUsage: true,
	RunE:         RunExporter,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+defaultConfigFile+")")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: trace, debug, info, warn, error")

	RootCmd.AddCommand(scanCmd, sourcesCmd, migrateCmd)
}

// readConfig reads in config file and ENV variables if set.
func readConfig() error {
	setDefaults()
	viper.SetEnvPrefix("logcount")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	explicit := cfgFile != ""
	if explicit {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(defaultConfigFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read config %s: %w", viper.ConfigFileUsed(), err)
		}
		log.Debug("No config file found, using built-in sources")
		return nil
	}

	if viper.IsSet("config_version") {
		if onDisk := viper.GetInt("config_version"); onDisk != version.CfgVersion {
			return fmt.Errorf("cannot use config file %s: config_version is %d, this build expects %d", viper.ConfigFileUsed(), onDisk, version.CfgVersion)
		}
	}
	return nil
}

func setupLogging() error {
	cfg := logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		Output: viper.GetString("log.output"),
		File:   viper.GetString("log.file"),
	}
	if logLevel != "" {
		cfg.Level = logLevel
	}
	return logger.Initialize(cfg)
}
