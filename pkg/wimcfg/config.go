// Package wimcfg loads extraction/update default configuration through
// spf13/viper, following internal/disk/dmg.go's LoadDMGConfig shape
// (viper.SetConfigName/AddConfigPath/SetEnvPrefix/AutomaticEnv) but for the
// WIM core's own tunables instead of DMG device discovery.
package wimcfg

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/openwim/wimcore/internal/wimtypes"
)

// Config holds default behavior for extraction and update commands. Any
// field may be overridden per call by the caller; these are only the
// defaults wired in by the CLI.
type Config struct {
	CaseSensitive  bool   `mapstructure:"case_sensitive"`
	Rpfix          bool   `mapstructure:"rpfix"`
	StrictSymlinks bool   `mapstructure:"strict_symlinks"`
	StrictACLs     bool   `mapstructure:"strict_acls"`
	WindowsNames   bool   `mapstructure:"windows_names"`
	VolumeNTPath   string `mapstructure:"volume_nt_path"`
	MaxOpenFiles   int    `mapstructure:"max_open_files"`
}

// Load reads wim-config.yaml from the usual search path and environment,
// falling back to defaults when no file is present, exactly as
// LoadDMGConfig tolerates a missing apfs-config.yaml.
func Load() (*Config, error) {
	viper.SetConfigName("wim-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../..")
	viper.AddConfigPath("$HOME/.wim")
	viper.AddConfigPath("/etc/wim")

	viper.SetDefault("case_sensitive", false)
	viper.SetDefault("rpfix", true)
	viper.SetDefault("strict_symlinks", false)
	viper.SetDefault("strict_acls", false)
	viper.SetDefault("windows_names", true)
	viper.SetDefault("volume_nt_path", "")
	viper.SetDefault("max_open_files", wimtypes.MaxOpenFiles)

	viper.SetEnvPrefix("WIM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		CaseSensitive:  viper.GetBool("case_sensitive"),
		Rpfix:          viper.GetBool("rpfix"),
		StrictSymlinks: viper.GetBool("strict_symlinks"),
		StrictACLs:     viper.GetBool("strict_acls"),
		WindowsNames:   viper.GetBool("windows_names"),
		VolumeNTPath:   viper.GetString("volume_nt_path"),
		MaxOpenFiles:   viper.GetInt("max_open_files"),
	}
	return cfg, nil
}

// CaseSensitivity maps the config's boolean to the core's
// wimtypes.CaseSensitivityType.
func (c *Config) CaseSensitivity() wimtypes.CaseSensitivityType {
	if c.CaseSensitive {
		return wimtypes.CaseSensitive
	}
	return wimtypes.CaseInsensitive
}
