package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/internal/util"
	"github.com/LabPy/lantz-core/limits"
)

func TestStrTrimsTermination(t *testing.T) {
	h := newTestHost()
	h.answers["*IDN?"] = "LabPy,fungen,0,1.0\r\n"
	f := Str("idn", Getter("*IDN?"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "LabPy,fungen,0,1.0", v)
}

func TestIntCast(t *testing.T) {
	h := newTestHost()
	h.answers["AVG?"] = " 16\n"
	f := Int("averages", Getter("AVG?"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 16, v)
}

func TestIntCastFailure(t *testing.T) {
	h := newTestHost()
	h.answers["AVG?"] = "many"
	f := Int("averages", Getter("AVG?"))

	_, err := f.Get(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "averages")
}

func TestIntValues(t *testing.T) {
	h := newTestHost()
	f := Int("span", Setter("SPAN %d"), Values(1, 10, 100))

	require.NoError(t, f.Set(context.Background(), h, 10))

	err := f.Set(context.Background(), h, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed values")
}

func TestFloatLimitsOption(t *testing.T) {
	lim, err := limits.NewFloat(util.Ptr(0.0), util.Ptr(10.0), 0.5, "")
	require.NoError(t, err)

	h := newTestHost()
	f := Float("voltage", Setter("VOLT %v"), Limits(lim))

	require.NoError(t, f.Set(context.Background(), h, 2.5))

	err = f.Set(context.Background(), h, 2.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLimit))
}

func TestBoolDefaultCast(t *testing.T) {
	h := newTestHost()
	h.answers["OUTP?"] = "1"
	f := Bool("output", Getter("OUTP?"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	h2 := newTestHost()
	h2.answers["OUTP?"] = "OFF\n"
	v, err = f.Get(context.Background(), h2)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestBoolMapping(t *testing.T) {
	h := newTestHost()
	h.answers["OUTP?"] = "ON"
	f := Bool("output", Getter("OUTP?"), Setter("OUTP %s"),
		Mapping(map[any]string{true: "ON", false: "OFF"}))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.NoError(t, f.Set(context.Background(), h, false))
	require.Len(t, h.writes, 1)
	assert.Equal(t, "OUTP %s=OFF", h.writes[0])
}

func TestBoolAliases(t *testing.T) {
	h := newTestHost()
	f := Bool("output", Setter("OUTP %s"),
		Mapping(map[any]string{true: "ON", false: "OFF"}),
		Aliases(map[any]bool{"on": true, "off": false, 1: true, 0: false}))

	require.NoError(t, f.Set(context.Background(), h, "on"))
	assert.Equal(t, "OUTP %s=ON", h.writes[0])

	require.NoError(t, f.Set(context.Background(), h, 0))
	assert.Equal(t, "OUTP %s=OFF", h.writes[1])

	err := f.Set(context.Background(), h, "maybe")
	require.Error(t, err)
}

func TestAsymmetricMapping(t *testing.T) {
	// The instrument expects "CMD ON" but answers "1".
	h := newTestHost()
	h.answers["OUTP?"] = "1"
	f := Bool("output", Getter("OUTP?"), Setter("OUTP %s"),
		MappingPairs(
			map[any]string{true: "ON", false: "OFF"},
			map[string]any{"1": true, "0": false},
		))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	// Setting the value the get just cached sends nothing.
	require.NoError(t, f.Set(context.Background(), h, true))
	assert.Empty(t, h.writes)

	require.NoError(t, f.Set(context.Background(), h, false))
	require.Len(t, h.writes, 1)
	assert.Equal(t, "OUTP %s=OFF", h.writes[0])
}

func TestMappingUnknownAnswer(t *testing.T) {
	h := newTestHost()
	h.answers["OUTP?"] = "MAYBE"
	f := Bool("output", Getter("OUTP?"),
		Mapping(map[any]string{true: "ON", false: "OFF"}))

	_, err := f.Get(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mapping")
}

func TestRegisterDecode(t *testing.T) {
	h := newTestHost()
	h.answers["*STB?"] = "48"
	f := Register("status_byte", BitNames{
		"", "", "", "", "message available", "event status", "request", "",
	}, Getter("*STB?"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)

	m, ok := v.(map[string]bool)
	require.True(t, ok)
	assert.Equal(t, map[string]bool{
		"message available": true,
		"event status":      true,
		"request":           false,
	}, m)
}

func TestRegisterDecodeExtractedAnswer(t *testing.T) {
	h := newTestHost()
	h.answers["*STB?"] = "STB 48"
	f := Register("status_byte", BitNames{
		"", "", "", "", "message available", "event status", "request", "",
	}, Getter("*STB?"), Extract("STB {}"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)

	m, ok := v.(map[string]bool)
	require.True(t, ok)
	assert.True(t, m["message available"])
	assert.True(t, m["event status"])
	assert.False(t, m["request"])
}

func TestRegisterEncode(t *testing.T) {
	h := newTestHost()
	f := Register("enable", BitNames{
		"a", "b", "c", "d", "e", "f", "g", "h",
	}, Setter("*SRE %d"))

	require.NoError(t, f.Set(context.Background(), h,
		map[string]bool{"a": true, "c": true, "h": true}))
	require.Len(t, h.writes, 1)
	assert.Equal(t, "*SRE %d=133", h.writes[0])
}

func TestRegisterEncodeUnknownBit(t *testing.T) {
	h := newTestHost()
	f := Register("enable", BitNames{"a", "", "", "", "", "", "", ""},
		Setter("*SRE %d"))

	err := f.Set(context.Background(), h, map[string]bool{"nope": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bit named")
}

func TestExtractOption(t *testing.T) {
	h := newTestHost()
	h.answers["FREQ?"] = "FREQ 1.5 HZ"
	f := Float("frequency", Getter("FREQ?"), Extract("FREQ {} HZ"))

	v, err := f.Get(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestExtractMismatch(t *testing.T) {
	h := newTestHost()
	h.answers["FREQ?"] = "VOLT 1.5 V"
	f := Float("frequency", Getter("FREQ?"), Extract("FREQ {} HZ"))

	_, err := f.Get(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}
