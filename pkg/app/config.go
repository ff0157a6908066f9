package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFlagName = "config"
	envPrefix      = "DFLEET"
)

func addConfigFlag(name string, fs *pflag.FlagSet) {
	fs.StringP(configFlagName, "c", "", fmt.Sprintf("Read configuration from this file (yaml, json or toml). "+
		"Without it %s.yaml is looked up in the working directory and $HOME/.driverfleet.", name))
}

// loadConfig merges, from lowest to highest precedence, flag defaults, the config file,
// DFLEET_* environment variables and explicitly set flags, then decodes the result into the
// options. Flag "catalog.base-url" maps to env DFLEET_CATALOG_BASE_URL.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	if !a.noConfig {
		path, _ := flags.GetString(configFlagName)
		if path != "" {
			v.SetConfigFile(path)
		} else {
			v.SetConfigName(a.name)
			v.AddConfigPath(".")
			v.AddConfigPath("$HOME/.driverfleet")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if path != "" || !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}
