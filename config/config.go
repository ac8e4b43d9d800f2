package config

import "fmt"

// Config is the process configuration: communication defaults per
// interface type, instrument aliases and the feature monitor settings.
type Config struct {
	Comm    CommConfig       `mapstructure:"comm"`
	Aliases map[string]Alias `mapstructure:"aliases"`
	Monitor MonitorConfig    `mapstructure:"monitor"`
}

// CommConfig holds the communication settings applied when a driver
// opens a connection. The common layer applies to every interface type
// and is overridden field by field by the interface-specific layers.
type CommConfig struct {
	Common CommSettings `mapstructure:"common"`
	TCPIP  CommSettings `mapstructure:"tcpip"`
	ASRL   CommSettings `mapstructure:"asrl"`
	USB    CommSettings `mapstructure:"usb"`
	GPIB   CommSettings `mapstructure:"gpib"`
}

// CommSettings are the tunables of a message-based connection. Zero
// values mean "not set here, look at the next layer".
type CommSettings struct {
	ReadTermination  string `mapstructure:"read_termination" toml:"read_termination,omitempty"`
	WriteTermination string `mapstructure:"write_termination" toml:"write_termination,omitempty"`
	TimeoutMS        int    `mapstructure:"timeout_ms" toml:"timeout_ms,omitempty"`
	BaudRate         int    `mapstructure:"baud_rate" toml:"baud_rate,omitempty"` // serial only
	PaceMS           int    `mapstructure:"pace_ms" toml:"pace_ms,omitempty"`     // minimum delay between commands
}

// Merge returns s with unset fields filled from over... in order: the
// first layer that sets a field wins after s.
func (s CommSettings) Merge(over ...CommSettings) CommSettings {
	for _, o := range over {
		if s.ReadTermination == "" {
			s.ReadTermination = o.ReadTermination
		}
		if s.WriteTermination == "" {
			s.WriteTermination = o.WriteTermination
		}
		if s.TimeoutMS == 0 {
			s.TimeoutMS = o.TimeoutMS
		}
		if s.BaudRate == 0 {
			s.BaudRate = o.BaudRate
		}
		if s.PaceMS == 0 {
			s.PaceMS = o.PaceMS
		}
	}
	return s
}

// ForInterface returns the settings for one interface type, the common
// layer filled in underneath.
func (c CommConfig) ForInterface(iface string) CommSettings {
	var layer CommSettings
	switch iface {
	case "TCPIP":
		layer = c.TCPIP
	case "ASRL":
		layer = c.ASRL
	case "USB":
		layer = c.USB
	case "GPIB":
		layer = c.GPIB
	}
	return layer.Merge(c.Common)
}

// Alias maps a human name to a resource name plus per-instrument
// settings, so scripts say "fungen" instead of "TCPIP::192.168.0.1::INSTR".
type Alias struct {
	Resource string       `mapstructure:"resource" toml:"resource"`
	Driver   string       `mapstructure:"driver" toml:"driver,omitempty"`
	Settings CommSettings `mapstructure:"settings" toml:"settings,omitempty"`
}

// MonitorConfig configures the feature monitor server.
type MonitorConfig struct {
	Port           int      `mapstructure:"port"`
	PollIntervalMS int      `mapstructure:"poll_interval_ms"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Monitor server constants.
const (
	DefaultMonitorPort         = 8471
	DefaultMonitorPollInterval = 1000 // ms
)

// GetMonitorPort returns the monitor port, falling back to the default.
func (c *Config) GetMonitorPort() int {
	if c.Monitor.Port == 0 {
		return DefaultMonitorPort
	}
	return c.Monitor.Port
}

// GetMonitorPollInterval returns the poll interval in ms, falling back
// to the default.
func (c *Config) GetMonitorPollInterval() int {
	if c.Monitor.PollIntervalMS == 0 {
		return DefaultMonitorPollInterval
	}
	return c.Monitor.PollIntervalMS
}

// GetAlias resolves an instrument alias.
func (c *Config) GetAlias(name string) (Alias, bool) {
	a, ok := c.Aliases[name]
	return a, ok
}

// String returns a short description of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Aliases: %d, Monitor: {Port: %d}}",
		len(c.Aliases), c.GetMonitorPort())
}
