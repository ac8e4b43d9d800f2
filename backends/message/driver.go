package message

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/driver"
	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/feature"
)

// settleDelay is how long Clear waits after flushing the instrument
// queues, so pending answers to corrupted commands have drained.
const settleDelay = 300 * time.Millisecond

// DefaultStatusByte names the bits of the IEEE 488.2 status byte.
var DefaultStatusByte = feature.BitNames{
	"0", "1", "2", "3",
	"Message available",
	"Event status",
	"Request",
	"7",
}

// Driver talks to an instrument through text commands over a Transport.
// Concrete instrument drivers embed it, register their features and
// bind themselves:
//
//	type FunGen struct {
//	    *message.Driver
//	}
//
//	d, err := message.ViaTCP("fungen", "192.168.0.1", 50000, defaults, nil)
//	fg := &FunGen{Driver: d}
//	fg.Bind(fg)
type Driver struct {
	*driver.Core

	resourceName string
	transport    Transport
	settings     config.CommSettings
	statusByte   feature.BitNames

	limiter  *rate.Limiter
	timeout  time.Duration
	coreOpts []driver.CoreOption

	connected atomic.Bool
	pending   []byte
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithStatusByte overrides the meaning of the status byte bits.
func WithStatusByte(names feature.BitNames) Option {
	return func(d *Driver) { d.statusByte = names }
}

// WithCoreOptions passes options through to the embedded core.
func WithCoreOptions(opts ...driver.CoreOption) Option {
	return func(d *Driver) { d.coreOpts = append(d.coreOpts, opts...) }
}

// New builds a message driver on an explicit transport. resourceName is
// the canonical resource name the driver is registered under, settings
// the fully resolved communication settings (see Defaults.Resolve).
func New(name, resourceName string, t Transport, settings config.CommSettings,
	opts ...Option) *Driver {

	d := &Driver{
		resourceName: resourceName,
		transport:    t,
		settings:     settings,
		statusByte:   DefaultStatusByte,
		timeout:      time.Duration(settings.TimeoutMS) * time.Millisecond,
	}
	if settings.PaceMS > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Duration(settings.PaceMS)*time.Millisecond), 1)
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Core = driver.NewCore(name, d.coreOpts...)
	d.Bind(d)
	return d
}

// ResourceName returns the canonical resource name of the connection.
func (d *Driver) ResourceName() string { return d.resourceName }

// Settings returns the resolved communication settings.
func (d *Driver) Settings() config.CommSettings { return d.settings }

// Initialize opens the connection to the instrument.
func (d *Driver) Initialize(ctx context.Context) error {
	if err := d.transport.Open(ctx); err != nil {
		return errors.Wrapf(err, "initializing %s", d.Name())
	}
	d.connected.Store(true)
	return nil
}

// Finalize closes the connection.
func (d *Driver) Finalize() error {
	d.connected.Store(false)
	return d.transport.Close()
}

// Connected reports whether the connection is open.
func (d *Driver) Connected() bool { return d.connected.Load() }

// Write sends a command, taking the driver lock.
func (d *Driver) Write(ctx context.Context, cmd string) error {
	ctx, cancel := d.withDeadline(ctx)
	defer cancel()
	d.Lock()
	defer d.Unlock()
	return d.write(ctx, cmd)
}

// Query sends a command and reads one answer, taking the driver lock.
func (d *Driver) Query(ctx context.Context, cmd string) (string, error) {
	ctx, cancel := d.withDeadline(ctx)
	defer cancel()
	d.Lock()
	defer d.Unlock()
	return d.query(ctx, cmd)
}

// withDeadline applies the configured timeout when the caller set no
// deadline of its own.
func (d *Driver) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return ctx, func() {}
}

// write assumes the driver lock is held.
func (d *Driver) write(ctx context.Context, cmd string) error {
	if !d.connected.Load() {
		return errors.Wrapf(errors.ErrNotConnected, "writing to %s", d.Name())
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return d.transport.Write(ctx, []byte(cmd+d.settings.WriteTermination))
}

// query assumes the driver lock is held.
func (d *Driver) query(ctx context.Context, cmd string) (string, error) {
	if err := d.write(ctx, cmd); err != nil {
		return "", err
	}
	return d.readLine(ctx)
}

// readLine reads bytes until the read termination. Bytes arriving after
// the termination are kept for the next read.
func (d *Driver) readLine(ctx context.Context) (string, error) {
	term := d.settings.ReadTermination
	if term == "" {
		term = "\n"
	}

	buf := d.pending
	d.pending = nil
	read := make([]byte, 512)
	for {
		if i := strings.Index(string(buf), term); i >= 0 {
			d.pending = append(d.pending, buf[i+len(term):]...)
			return string(buf[:i]), nil
		}
		n, err := d.transport.Read(ctx, read)
		if n > 0 {
			buf = append(buf, read[:n]...)
		}
		if err != nil {
			d.pending = buf
			return "", errors.Wrapf(err, "reading from %s", d.Name())
		}
	}
}

// Clear flushes the instrument output queue, then waits for the
// instrument to settle. Used after reopening a suspicious connection so
// corrupted answers do not leak into the next query.
func (d *Driver) Clear(ctx context.Context) error {
	d.pending = nil
	drain := make([]byte, 512)
	for {
		drainCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		n, err := d.transport.Read(drainCtx, drain)
		cancel()
		if err != nil || n == 0 {
			break
		}
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ReopenConnection implements feature.Host: the retry machinery calls
// it when a communication error looks transient. The connection is
// closed, reopened and cleared.
func (d *Driver) ReopenConnection(ctx context.Context) error {
	if err := d.Finalize(); err != nil {
		return errors.Wrapf(err, "closing %s", d.Name())
	}
	if err := d.Initialize(ctx); err != nil {
		return err
	}
	return d.Clear(ctx)
}

// DefaultGetFeature implements feature.Host: the value of a feature is
// read by sending its getter command and returning the raw answer.
func (d *Driver) DefaultGetFeature(ctx context.Context, f *feature.Feature, cmd string) (string, error) {
	return d.query(ctx, cmd)
}

// DefaultSetFeature implements feature.Host: the setter command is
// formatted with the value and sent.
func (d *Driver) DefaultSetFeature(ctx context.Context, f *feature.Feature, cmd string, value any) (string, error) {
	return "", d.write(ctx, FormatCommand(cmd, value))
}

// FormatCommand fills the value into a setter command. Commands without
// a format verb are sent as is, so parameterless commands ("*RST") work
// as setters too.
func FormatCommand(cmd string, value any) string {
	if strings.Contains(cmd, "%") {
		return fmt.Sprintf(cmd, value)
	}
	return cmd
}

// ReadStatusByte queries the IEEE 488.2 status byte and decodes it
// against the driver's bit names.
func (d *Driver) ReadStatusByte(ctx context.Context) (map[string]bool, error) {
	raw, err := d.Query(ctx, "*STB?")
	if err != nil {
		return nil, errors.Wrapf(err, "reading status byte of %s", d.Name())
	}
	b, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Newf("unexpected status byte answer %q", raw)
	}
	return ByteToNames(byte(b), d.statusByte), nil
}

// ByteToNames decodes a byte into a map keyed by bit name.
func ByteToNames(b byte, names feature.BitNames) map[string]bool {
	out := make(map[string]bool, 8)
	for i, name := range names {
		out[name] = b&(1<<i) != 0
	}
	return out
}
