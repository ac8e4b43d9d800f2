// Package resource parses and assembles VISA-style resource names, the
// addresses instruments are identified by ("TCPIP::192.168.0.1::INSTR",
// "ASRL2::INSTR", "GPIB0::9::INSTR"...). The canonical form of a name is
// used as the key under which driver instances are registered, so two
// spellings of the same address share one connection.
package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LabPy/lantz-core/errors"
)

// InterfaceType identifies the physical interface of a resource.
type InterfaceType string

const (
	TCPIP InterfaceType = "TCPIP"
	ASRL  InterfaceType = "ASRL"
	USB   InterfaceType = "USB"
	GPIB  InterfaceType = "GPIB"
)

// Class identifies the resource class of an interface.
type Class string

const (
	Instr  Class = "INSTR"
	Socket Class = "SOCKET"
	Raw    Class = "RAW"
)

// DefaultLANDevice is the LAN device name of a TCPIP INSTR resource when
// none is given.
const DefaultLANDevice = "inst0"

// Name is a parsed resource name. Only the fields of the name's
// interface type are meaningful.
type Name struct {
	Interface InterfaceType
	Class     Class
	Board     int

	// TCPIP
	Host      string
	LANDevice string // INSTR, defaults to inst0
	Port      int    // SOCKET

	// USB
	ManufacturerID string
	ModelCode      string
	SerialNumber   string
	USBInterface   int

	// GPIB
	PrimaryAddress   int
	SecondaryAddress int // -1 when absent
}

// Parse reads a VISA resource name. The resource class may be omitted
// and defaults to INSTR.
func Parse(s string) (Name, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) == 0 || parts[0] == "" {
		return Name{}, errors.Newf("empty resource name %q", s)
	}

	iface, board, err := parseHeader(parts[0])
	if err != nil {
		return Name{}, errors.Wrapf(err, "parsing resource name %q", s)
	}

	class := Instr
	body := parts[1:]
	if len(body) > 0 {
		switch Class(strings.ToUpper(body[len(body)-1])) {
		case Instr:
			class, body = Instr, body[:len(body)-1]
		case Socket:
			class, body = Socket, body[:len(body)-1]
		case Raw:
			class, body = Raw, body[:len(body)-1]
		}
	}

	n := Name{Interface: iface, Class: class, Board: board, SecondaryAddress: -1}
	if err := n.parseBody(body); err != nil {
		return Name{}, errors.Wrapf(err, "parsing resource name %q", s)
	}
	return n, nil
}

func parseHeader(head string) (InterfaceType, int, error) {
	i := 0
	for i < len(head) && !isDigit(head[i]) {
		i++
	}
	iface := InterfaceType(strings.ToUpper(head[:i]))
	switch iface {
	case TCPIP, ASRL, USB, GPIB:
	default:
		return "", 0, errors.Newf("unknown interface type %q", head[:i])
	}

	board := 0
	if i < len(head) {
		b, err := strconv.Atoi(head[i:])
		if err != nil {
			return "", 0, errors.Newf("invalid board number %q", head[i:])
		}
		board = b
	}
	return iface, board, nil
}

func (n *Name) parseBody(body []string) error {
	switch n.Interface {
	case TCPIP:
		return n.parseTCPIP(body)
	case ASRL:
		if n.Class != Instr {
			return errors.Newf("ASRL resources have no %s class", n.Class)
		}
		if len(body) != 0 {
			return errors.Newf("unexpected fields %v for an ASRL resource", body)
		}
		return nil
	case USB:
		return n.parseUSB(body)
	case GPIB:
		return n.parseGPIB(body)
	}
	return nil
}

func (n *Name) parseTCPIP(body []string) error {
	if len(body) == 0 {
		return errors.New("a TCPIP resource needs a host address")
	}
	n.Host = body[0]
	switch n.Class {
	case Instr:
		n.LANDevice = DefaultLANDevice
		if len(body) > 2 {
			return errors.Newf("unexpected fields %v for a TCPIP INSTR resource", body[2:])
		}
		if len(body) == 2 {
			n.LANDevice = body[1]
		}
	case Socket:
		if len(body) != 2 {
			return errors.New("a TCPIP SOCKET resource needs a host address and a port")
		}
		port, err := strconv.Atoi(body[1])
		if err != nil {
			return errors.Newf("invalid port %q", body[1])
		}
		n.Port = port
	default:
		return errors.Newf("TCPIP resources have no %s class", n.Class)
	}
	return nil
}

func (n *Name) parseUSB(body []string) error {
	if n.Class != Instr && n.Class != Raw {
		return errors.Newf("USB resources have no %s class", n.Class)
	}
	if len(body) < 3 || len(body) > 4 {
		return errors.New("a USB resource needs manufacturer id, model code and serial number")
	}
	n.ManufacturerID, n.ModelCode, n.SerialNumber = body[0], body[1], body[2]
	if len(body) == 4 {
		ifc, err := strconv.Atoi(body[3])
		if err != nil {
			return errors.Newf("invalid USB interface number %q", body[3])
		}
		n.USBInterface = ifc
	}
	return nil
}

func (n *Name) parseGPIB(body []string) error {
	if n.Class != Instr {
		return errors.Newf("GPIB resources have no %s class", n.Class)
	}
	if len(body) < 1 || len(body) > 2 {
		return errors.New("a GPIB resource needs a primary address")
	}
	addr, err := strconv.Atoi(body[0])
	if err != nil {
		return errors.Newf("invalid GPIB address %q", body[0])
	}
	n.PrimaryAddress = addr
	if len(body) == 2 {
		sec, err := strconv.Atoi(body[1])
		if err != nil {
			return errors.Newf("invalid GPIB secondary address %q", body[1])
		}
		n.SecondaryAddress = sec
	}
	return nil
}

// String assembles the canonical form of the name.
func (n Name) String() string {
	switch n.Interface {
	case TCPIP:
		if n.Class == Socket {
			return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", n.Board, n.Host, n.Port)
		}
		dev := n.LANDevice
		if dev == "" {
			dev = DefaultLANDevice
		}
		return fmt.Sprintf("TCPIP%d::%s::%s::INSTR", n.Board, n.Host, dev)
	case ASRL:
		return fmt.Sprintf("ASRL%d::INSTR", n.Board)
	case USB:
		return fmt.Sprintf("USB%d::%s::%s::%s::%d::%s", n.Board,
			n.ManufacturerID, n.ModelCode, n.SerialNumber, n.USBInterface, n.Class)
	case GPIB:
		if n.SecondaryAddress >= 0 {
			return fmt.Sprintf("GPIB%d::%d::%d::INSTR", n.Board,
				n.PrimaryAddress, n.SecondaryAddress)
		}
		return fmt.Sprintf("GPIB%d::%d::INSTR", n.Board, n.PrimaryAddress)
	}
	return ""
}

// Canonical normalizes a resource name for use as a registry key. Names
// that do not parse are returned unchanged, so aliases configured by the
// user still work as keys.
func Canonical(s string) string {
	n, err := Parse(s)
	if err != nil {
		return s
	}
	return n.String()
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
