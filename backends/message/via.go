package message

import (
	"fmt"
	"time"

	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/driver"
	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/resource"
)

// ViaTCP opens a driver on a TCPIP SOCKET resource. The instance is
// registered under the canonical resource name, so opening the same
// address twice returns the same driver.
func ViaTCP(name, host string, port int, defaults Defaults,
	user config.CommSettings, opts ...Option) (*Driver, error) {

	rname := resource.TCPIPSocket(host, port)
	return open(name, rname, defaults, user, func(s config.CommSettings) Transport {
		return NewTCPTransport(fmt.Sprintf("%s:%d", host, port), timeoutOf(s))
	}, opts...)
}

// ViaSerial opens a driver on an ASRL resource.
func ViaSerial(name string, board int, defaults Defaults,
	user config.CommSettings, opts ...Option) (*Driver, error) {

	rname := resource.ASRLInstr(board)
	return open(name, rname, defaults, user, func(s config.CommSettings) Transport {
		return NewSerialTransport(SerialPortName(board), s.BaudRate, timeoutOf(s))
	}, opts...)
}

// ViaUSB opens a driver on a USBTMC resource. Talking USBTMC needs a
// byte pipe to the device (typically a /dev/usbtmc* file exposed by the
// operating system), so the transport is supplied by the caller; the
// helper resolves settings and registers the driver under the canonical
// USB resource name.
func ViaUSB(name, manufacturerID, modelCode, serialNumber string, t Transport,
	defaults Defaults, user config.CommSettings, opts ...Option) (*Driver, error) {

	rname := resource.USBInstr(manufacturerID, modelCode, serialNumber)
	return open(name, rname, defaults, user, func(config.CommSettings) Transport {
		return t
	}, opts...)
}

// ViaWebSocket opens a driver on a websocket endpoint. Websocket
// gateways have no VISA interface type; the TCPIP settings layers apply
// and the url itself is the registry key.
func ViaWebSocket(name, url string, defaults Defaults,
	user config.CommSettings, opts ...Option) (*Driver, error) {

	site := siteComm()
	settings, err := defaults.Resolve(resource.TCPIP, resource.Socket, site, user)
	if err != nil {
		return nil, err
	}

	return register(url, func() (driver.Driver, error) {
		t := NewWebSocketTransport(url, timeoutOf(settings))
		return New(name, url, t, settings, opts...), nil
	})
}

// ViaResource opens a driver from a resource name string, dispatching
// on its interface type. Aliases from the configuration are resolved
// first.
func ViaResource(name, resourceName string, defaults Defaults,
	user config.CommSettings, opts ...Option) (*Driver, error) {

	if cfg, err := config.Load(); err == nil {
		if alias, ok := cfg.GetAlias(resourceName); ok {
			resourceName = alias.Resource
			user = user.Merge(alias.Settings)
		}
	}

	rname, err := resource.Parse(resourceName)
	if err != nil {
		return nil, err
	}

	switch rname.Interface {
	case resource.TCPIP:
		if rname.Class != resource.Socket {
			return nil, errors.Wrapf(errors.ErrInterfaceNotSupported,
				"TCPIP %s resources need a VXI-11 stack", rname.Class)
		}
		return ViaTCP(name, rname.Host, rname.Port, defaults, user, opts...)
	case resource.ASRL:
		return ViaSerial(name, rname.Board, defaults, user, opts...)
	default:
		return nil, errors.Wrapf(errors.ErrInterfaceNotSupported,
			"cannot open %s resources from a resource name alone", rname.Interface)
	}
}

func open(name string, rname resource.Name, defaults Defaults,
	user config.CommSettings, mk func(config.CommSettings) Transport,
	opts ...Option) (*Driver, error) {

	settings, err := defaults.Resolve(rname.Interface, rname.Class, siteComm(), user)
	if err != nil {
		return nil, err
	}

	canonical := rname.String()
	return register(canonical, func() (driver.Driver, error) {
		return New(name, canonical, mk(settings), settings, opts...), nil
	})
}

func register(id string, build func() (driver.Driver, error)) (*Driver, error) {
	d, _, err := driver.Open(id, build)
	if err != nil {
		return nil, err
	}
	md, ok := d.(*Driver)
	if !ok {
		return nil, errors.Newf("resource %s is already open as %T", id, d)
	}
	return md, nil
}

func siteComm() config.CommConfig {
	if cfg, err := config.Load(); err == nil {
		return cfg.Comm
	}
	return config.CommConfig{}
}

func timeoutOf(s config.CommSettings) time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}
