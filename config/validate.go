package config

import "github.com/LabPy/lantz-core/errors"

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	// Monitor port: 0 = use default, negative = invalid
	if c.Monitor.Port < 0 {
		return errors.Newf("monitor.port must be >= 0, got %d", c.Monitor.Port)
	}
	if c.Monitor.Port > 65535 {
		return errors.Newf("monitor.port must be <= 65535, got %d", c.Monitor.Port)
	}
	if c.Monitor.PollIntervalMS < 0 {
		return errors.Newf("monitor.poll_interval_ms must be >= 0, got %d", c.Monitor.PollIntervalMS)
	}

	for _, layer := range []struct {
		name string
		s    CommSettings
	}{
		{"comm.common", c.Comm.Common},
		{"comm.tcpip", c.Comm.TCPIP},
		{"comm.asrl", c.Comm.ASRL},
		{"comm.usb", c.Comm.USB},
		{"comm.gpib", c.Comm.GPIB},
	} {
		if layer.s.TimeoutMS < 0 {
			return errors.Newf("%s.timeout_ms must be >= 0, got %d", layer.name, layer.s.TimeoutMS)
		}
		if layer.s.BaudRate < 0 {
			return errors.Newf("%s.baud_rate must be >= 0, got %d", layer.name, layer.s.BaudRate)
		}
		if layer.s.PaceMS < 0 {
			return errors.Newf("%s.pace_ms must be >= 0, got %d", layer.name, layer.s.PaceMS)
		}
	}

	for name, alias := range c.Aliases {
		if alias.Resource == "" {
			return errors.Newf("alias %q has no resource name", name)
		}
	}

	return nil
}
