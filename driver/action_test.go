package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/internal/util"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/unit"
)

func TestActionUnitConversion(t *testing.T) {
	a := NewAction("set_frequency", Arg("frequency", ArgUnit("MHz")))

	out, err := a.Validate(context.Background(), nil, unit.Q(1.5, "GHz"))
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, out[0].(float64), 1e-9)

	// Bare numbers are taken to be in the declared unit.
	out, err = a.Validate(context.Background(), nil, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out[0])

	out, err = a.Validate(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out[0])

	_, err = a.Validate(context.Background(), nil, "fast")
	require.Error(t, err)

	_, err = a.Validate(context.Background(), nil, unit.Q(1.0, "V"))
	require.Error(t, err)
}

func TestActionValues(t *testing.T) {
	a := NewAction("set_mode", Arg("mode", ArgValues("SIN", "SQU", "RAMP")))

	out, err := a.Validate(context.Background(), nil, "SQU")
	require.NoError(t, err)
	assert.Equal(t, []any{"SQU"}, out)

	_, err = a.Validate(context.Background(), nil, "TRI")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLimit)
}

func TestActionLimits(t *testing.T) {
	lim, err := limits.NewFloat(util.Ptr(0.0), util.Ptr(10.0), 0, "V")
	require.NoError(t, err)
	a := NewAction("set_voltage", Arg("voltage", ArgUnit("V"), ArgLimits(lim)))

	out, err := a.Validate(context.Background(), nil, unit.Q(2000, "mV"))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out[0].(float64), 1e-9)

	_, err = a.Validate(context.Background(), nil, 12.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLimit)
}

func TestActionNamedLimits(t *testing.T) {
	d := newFakeInstr("fungen")
	d.RegisterLimits("voltage", func(ctx context.Context) (limits.Validator, error) {
		lim, err := limits.NewFloat(util.Ptr(-5.0), util.Ptr(5.0), 0, "V")
		return lim, err
	})
	a := NewAction("set_offset", Arg("offset", ArgNamedLimits("voltage")))

	out, err := a.Validate(context.Background(), d, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0}, out)

	_, err = a.Validate(context.Background(), d, 7.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLimit)
}

func TestActionNamedLimitsNoHost(t *testing.T) {
	a := NewAction("set_offset", Arg("offset", ArgNamedLimits("voltage")))
	_, err := a.Validate(context.Background(), nil, 1.0)
	require.Error(t, err)
}

func TestActionArity(t *testing.T) {
	a := NewAction("configure", Arg("mode"), Arg("rate"))
	assert.Equal(t, "configure", a.Name())

	_, err := a.Validate(context.Background(), nil, "SIN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 2 arguments, got 1")
}

func TestActionMultipleArgs(t *testing.T) {
	lim, err := limits.NewFloat(util.Ptr(0.0), util.Ptr(100.0), 0, "Hz")
	require.NoError(t, err)
	a := NewAction("configure",
		Arg("mode", ArgValues("SIN", "SQU")),
		Arg("rate", ArgUnit("Hz"), ArgLimits(lim)))

	out, err := a.Validate(context.Background(), nil, "SIN", unit.Q(0.05, "kHz"))
	require.NoError(t, err)
	assert.Equal(t, "SIN", out[0])
	assert.InDelta(t, 50.0, out[1].(float64), 1e-9)
}
