package message

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/LabPy/lantz-core/errors"
)

// SerialTransport talks to an instrument over an RS232 line, the wire
// behind ASRL resources.
type SerialTransport struct {
	portName string
	baudRate int
	timeout  time.Duration

	mu   sync.Mutex
	port serial.Port
}

// NewSerialTransport builds a transport for the serial port with the
// given number ("ASRL2" opens /dev/ttyUSB2 style device names via
// SerialPortName).
func NewSerialTransport(portName string, baudRate int, timeout time.Duration) *SerialTransport {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &SerialTransport{portName: portName, baudRate: baudRate, timeout: timeout}
}

// SerialPortName maps an ASRL board number to the platform device name.
func SerialPortName(board int) string {
	return fmt.Sprintf("/dev/ttyUSB%d", board)
}

// Open opens the serial port.
func (t *SerialTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}

	mode := &serial.Mode{BaudRate: t.baudRate}
	port, err := serial.Open(t.portName, mode)
	if err != nil {
		return errors.Wrapf(err, "opening serial port %s", t.portName)
	}
	if t.timeout > 0 {
		if err := port.SetReadTimeout(t.timeout); err != nil {
			port.Close()
			return errors.Wrap(err, "setting read timeout")
		}
	}
	t.port = port
	return nil
}

// Close closes the serial port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

func (t *SerialTransport) opened() (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, errors.ErrNotConnected
	}
	return t.port, nil
}

// Write sends p over the line.
func (t *SerialTransport) Write(ctx context.Context, p []byte) error {
	port, err := t.opened()
	if err != nil {
		return err
	}
	_, err = port.Write(p)
	return err
}

// Read fills p with available bytes. The library reports a timeout as a
// zero-byte read; it is surfaced as a timeout error so retries kick in.
func (t *SerialTransport) Read(ctx context.Context, p []byte) (int, error) {
	port, err := t.opened()
	if err != nil {
		return 0, err
	}
	n, err := port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, errors.Wrapf(errors.ErrTimeout, "reading from %s", t.portName)
	}
	return n, nil
}
