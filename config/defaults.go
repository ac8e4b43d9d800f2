package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures the default values for all settings.
func SetDefaults(v *viper.Viper) {
	// Communication defaults. Message instruments overwhelmingly use \n
	// terminated commands; serial links default to 9600 baud.
	v.SetDefault("comm.common.read_termination", "\n")
	v.SetDefault("comm.common.write_termination", "\n")
	v.SetDefault("comm.common.timeout_ms", 2000)
	v.SetDefault("comm.asrl.baud_rate", 9600)

	// Monitor server defaults
	v.SetDefault("monitor.port", DefaultMonitorPort)
	v.SetDefault("monitor.poll_interval_ms", DefaultMonitorPollInterval)
	v.SetDefault("monitor.allowed_origins", []string{
		"http://localhost",
		"http://127.0.0.1",
	})
}
