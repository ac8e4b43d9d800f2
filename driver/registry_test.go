package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LabPy/lantz-core/errors"
)

type stubDriver struct {
	name      string
	connected bool
}

func (d *stubDriver) Initialize(ctx context.Context) error {
	d.connected = true
	return nil
}

func (d *stubDriver) Finalize() error {
	d.connected = false
	return nil
}

func (d *stubDriver) Connected() bool { return d.connected }

func TestRegistryOpenReuses(t *testing.T) {
	r := NewRegistry()
	builds := 0
	build := func() (Driver, error) {
		builds++
		return &stubDriver{name: "fungen"}, nil
	}

	d1, reused, err := r.Open("TCPIP::192.168.0.1::INSTR", build)
	require.NoError(t, err)
	assert.False(t, reused)

	d2, reused, err := r.Open("TCPIP::192.168.0.1::INSTR", build)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Same(t, d1, d2)
	assert.Equal(t, 1, builds)

	d3, reused, err := r.Open("TCPIP::192.168.0.2::INSTR", build)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotSame(t, d1, d3)
	assert.Equal(t, 2, builds)

	assert.ElementsMatch(t,
		[]string{"TCPIP::192.168.0.1::INSTR", "TCPIP::192.168.0.2::INSTR"},
		r.Registered())
}

func TestRegistryOpenBuildError(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Open("GPIB::9::INSTR", func() (Driver, error) {
		return nil, errors.New("no such board")
	})
	require.Error(t, err)
	assert.Empty(t, r.Registered())
}

func TestRegistryRelease(t *testing.T) {
	r := NewRegistry()
	d1, _, err := r.Open("ASRL2::INSTR", func() (Driver, error) {
		return &stubDriver{name: "fungen"}, nil
	})
	require.NoError(t, err)

	released := r.Release("ASRL2::INSTR")
	assert.Same(t, d1, released)
	assert.Empty(t, r.Registered())

	assert.Nil(t, r.Release("ASRL2::INSTR"))

	// A released id builds a fresh instance.
	d2, reused, err := r.Open("ASRL2::INSTR", func() (Driver, error) {
		return &stubDriver{name: "fungen"}, nil
	})
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotSame(t, d1, d2)
}
