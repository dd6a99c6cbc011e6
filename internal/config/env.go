package config

import (
	"os"
	"strconv"
)

type envVar struct {
	name  string
	desc  string
	apply func(*Config, string)
}

var supportedEnvVars = []envVar{
	{
		// Only here for documentation purposes.  Does not override any values in the config as this environment variable
		// points to where the config should be loaded.  It is handled prior to loading the config.
		name:  "ADPLAY_CONFIG_PATH",
		desc:  "Sets the path to the config file.  Default: OS-specific config directory",
		apply: func(c *Config, s string) {}, // Special case, no-op
	},
	{
		name:  "ADPLAY_CONFIG_PLAYER_PATH",
		desc:  "Sets the path to the mpv binary.  Default: mpv",
		apply: func(c *Config, s string) { c.Player.Path = s },
	},
	{
		name:  "ADPLAY_CONFIG_PLAYER_ARGS",
		desc:  "Sets extra arguments passed to mpv.  Default: None",
		apply: func(c *Config, s string) { c.Player.Args = s },
	},
	{
		name:  "ADPLAY_CONFIG_PLAYER_SOCKET_PATH",
		desc:  "Sets the base path of the mpv IPC sockets.  Default: XDG_RUNTIME_DIR or the temp dir",
		apply: func(c *Config, s string) { c.Player.SocketPath = s },
	},
	{
		name:  "ADPLAY_CONFIG_ADS_PRE_ROLL_TAG",
		desc:  "Sets the pre-roll VAST tag URL, or `off`.  Default: IMA skippable pre-roll sample",
		apply: func(c *Config, s string) { c.Ads.PreRollTag = s },
	},
	{
		name:  "ADPLAY_CONFIG_ADS_MID_ROLL_TAG",
		desc:  "Sets the mid-roll VAST tag URL, or `off`.  Default: IMA linear sample",
		apply: func(c *Config, s string) { c.Ads.MidRollTag = s },
	},
	{
		name:  "ADPLAY_CONFIG_ADS_POST_ROLL_TAG",
		desc:  "Sets the post-roll VAST tag URL, or `off`.  Default: IMA linear sample",
		apply: func(c *Config, s string) { c.Ads.PostRollTag = s },
	},
	{
		name: "ADPLAY_CONFIG_ADS_MID_ROLL_FRACTION",
		desc: "Sets the fraction of the content at which the mid-roll plays.  Default: 0.5",
		apply: func(c *Config, s string) {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				c.Ads.MidRollFraction = v
			}
		},
	},
	{
		name: "ADPLAY_CONFIG_CONTROLS_SKIP_STEP_SECONDS",
		desc: "Sets how far the skip forward/backward controls jump.  Default: 10",
		apply: func(c *Config, s string) {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				c.Controls.SkipStepSeconds = v
			}
		},
	},
	{
		name: "ADPLAY_CONFIG_CONTROLS_SEEK_SETTLE_MILLIS",
		desc: "Sets how long to wait for mpv to acknowledge a seek before restoring playback.  Default: 100",
		apply: func(c *Config, s string) {
			if v, err := strconv.Atoi(s); err == nil {
				c.Controls.SeekSettleMillis = v
			}
		},
	},
	{
		name:  "ADPLAY_CONFIG_METRICS_LISTEN_ADDRESS",
		desc:  "Serves prometheus metrics on this address, e.g. `:9464`.  Default: disabled",
		apply: func(c *Config, s string) { c.Metrics.ListenAddress = s },
	},
	{
		name:  "ADPLAY_CONFIG_LOGGING_LEVEL",
		desc:  "Sets the logging level.  One of: trace, debug, info, warn, error.  Default: info",
		apply: func(c *Config, s string) { c.Logging.Level = s },
	},
	{
		name:  "ADPLAY_CONFIG_LOGGING_FILE_PATH",
		desc:  "Sets the logging file path.  Default: OS-specific",
		apply: func(c *Config, s string) { c.Logging.FilePath = s },
	},
}

func applyEnvVarOverrides(c *Config) {
	for _, envVar := range supportedEnvVars {
		if value := os.Getenv(envVar.name); value != "" {
			envVar.apply(c, value)
		}
	}
}

// EnvVarHelp returns the supported environment variables and their descriptions, in declaration order
func EnvVarHelp() [][2]string {
	help := make([][2]string, 0, len(supportedEnvVars))
	for _, envVar := range supportedEnvVars {
		help = append(help, [2]string{envVar.name, envVar.desc})
	}
	return help
}
