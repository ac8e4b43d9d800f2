package driver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/feature"
	"github.com/LabPy/lantz-core/internal/util"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/unit"
)

// fakeInstr is a driver talking to an in-memory instrument: queries are
// answered from a map, writes are logged.
type fakeInstr struct {
	*Core
	answers map[string]string
	writes  []string
}

func newFakeInstr(name string, opts ...CoreOption) *fakeInstr {
	d := &fakeInstr{
		Core:    NewCore(name, opts...),
		answers: make(map[string]string),
	}
	d.Bind(d)
	return d
}

func (d *fakeInstr) DefaultGetFeature(ctx context.Context, f *feature.Feature, cmd string) (string, error) {
	ans, ok := d.answers[cmd]
	if !ok {
		return "", errors.Wrapf(errors.ErrInvalidCommand, "no answer for %q", cmd)
	}
	return ans, nil
}

func (d *fakeInstr) DefaultSetFeature(ctx context.Context, f *feature.Feature, cmd string, value any) (string, error) {
	line := fmt.Sprintf(cmd, value)
	d.writes = append(d.writes, line)
	return "", nil
}

func TestCoreGetSetFeat(t *testing.T) {
	d := newFakeInstr("fungen")
	d.AddFeature(feature.Float("amplitude",
		feature.Getter("VOLT?"), feature.Setter("VOLT %v")))
	d.answers["VOLT?"] = "1.5\r\n"

	v, err := d.GetFeat(context.Background(), "amplitude")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	require.NoError(t, d.SetFeat(context.Background(), "amplitude", 2.0))
	assert.Equal(t, []string{"VOLT 2"}, d.writes)
}

func TestCoreUnknownFeature(t *testing.T) {
	d := newFakeInstr("fungen")

	_, err := d.GetFeat(context.Background(), "amplitude")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no feature "amplitude"`)

	err = d.SetFeat(context.Background(), "amplitude", 1.0)
	require.Error(t, err)
}

func TestCoreFeatures(t *testing.T) {
	d := newFakeInstr("fungen")
	d.AddFeature(feature.Float("amplitude", feature.Getter("VOLT?")))
	d.AddFeature(feature.Str("mode", feature.Getter("MODE?")))

	assert.ElementsMatch(t, []string{"amplitude", "mode"}, d.Features())
}

func TestCoreCacheSnapshot(t *testing.T) {
	d := newFakeInstr("fungen")
	d.AddFeature(feature.Float("amplitude",
		feature.Getter("VOLT?"), feature.Setter("VOLT %v")))
	d.answers["VOLT?"] = "1.5"

	_, err := d.GetFeat(context.Background(), "amplitude")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"amplitude": 1.5}, d.CheckCache())

	d.DropCache("amplitude")
	assert.Empty(t, d.CheckCache())
}

func TestCoreWithoutCaching(t *testing.T) {
	d := newFakeInstr("fungen", WithoutCaching())
	d.AddFeature(feature.Float("amplitude", feature.Getter("VOLT?")))
	d.answers["VOLT?"] = "1.5"

	_, err := d.GetFeat(context.Background(), "amplitude")
	require.NoError(t, err)
	assert.Empty(t, d.CheckCache())
}

func TestCoreLimits(t *testing.T) {
	d := newFakeInstr("fungen")
	calls := 0
	d.RegisterLimits("voltage", func(ctx context.Context) (limits.Validator, error) {
		calls++
		lim, err := limits.NewFloat(util.Ptr(0.0), util.Ptr(10.0), 0.1, "V")
		return lim, err
	})

	v, err := d.Limits(context.Background(), "voltage")
	require.NoError(t, err)
	require.NoError(t, v.Check("amplitude", 5.0))
	require.Error(t, v.Check("amplitude", 11.0))

	// Cached until dropped.
	_, err = d.Limits(context.Background(), "voltage")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	d.DropLimits("voltage")
	_, err = d.Limits(context.Background(), "voltage")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	assert.Equal(t, []string{"voltage"}, d.DeclaredLimits())

	_, err = d.Limits(context.Background(), "current")
	require.Error(t, err)
}

func TestCoreDefaultsNotSupported(t *testing.T) {
	c := NewCore("bare")
	_, err := c.DefaultGetFeature(context.Background(), nil, "VOLT?")
	assert.ErrorIs(t, err, errors.ErrNotSupported)
	_, err = c.DefaultSetFeature(context.Background(), nil, "VOLT %v", 1.0)
	assert.ErrorIs(t, err, errors.ErrNotSupported)
	assert.ErrorIs(t, c.ReopenConnection(context.Background()), errors.ErrNotSupported)
	assert.NoError(t, c.CheckOperation(context.Background(), nil, 1.0, 1.0, ""))
}

func TestSubsystemPipesToParent(t *testing.T) {
	d := newFakeInstr("fungen")
	out := NewSubsystem("output", d)
	out.AddFeature(feature.Bool("enabled",
		feature.Getter("OUTP?"), feature.Setter("OUTP %v")))
	d.AddSubsystem("output", out)
	d.answers["OUTP?"] = "1"

	ss, err := d.Subsystem("output")
	require.NoError(t, err)
	v, err := ss.GetFeat(context.Background(), "enabled")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.NoError(t, ss.SetFeat(context.Background(), "enabled", false))
	assert.Equal(t, []string{"OUTP false"}, d.writes)

	assert.Same(t, feature.Host(d), ss.Parent())
	assert.True(t, ss.UseCache())

	_, err = d.Subsystem("input")
	require.Error(t, err)
}

func TestSubsystemCacheIsolated(t *testing.T) {
	d := newFakeInstr("fungen")
	out := NewSubsystem("output", d)
	out.AddFeature(feature.Bool("enabled", feature.Getter("OUTP?")))
	d.AddSubsystem("output", out)
	d.answers["OUTP?"] = "ON"

	_, err := out.GetFeat(context.Background(), "enabled")
	require.NoError(t, err)

	snap := d.CheckCache()
	assert.Equal(t, map[string]any{"enabled": true}, snap["output"])

	// Dotted names reach into the subsystem.
	d.DropCache("output.enabled")
	assert.Empty(t, out.CheckCache())
}

func TestChannelSubstitutesID(t *testing.T) {
	d := newFakeInstr("scope")
	cc := NewChannelContainer("input", d, StaticChannels(1, 2), func(ch *Channel) {
		ch.AddFeature(feature.Float("scale",
			feature.Getter("CHAN{ch}:SCAL?"), feature.Setter("CHAN{ch}:SCAL %v")))
	})
	d.AddChannels("input", cc)
	d.answers["CHAN2:SCAL?"] = "0.5"

	ch := cc.Channel(2)
	v, err := ch.GetFeat(context.Background(), "scale")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 2, ch.ID())

	require.NoError(t, ch.SetFeat(context.Background(), "scale", 1.0))
	assert.Equal(t, []string{"CHAN2:SCAL 1"}, d.writes)
}

func TestChannelContainerReuse(t *testing.T) {
	d := newFakeInstr("scope")
	built := 0
	cc := NewChannelContainer("input", d, StaticChannels(1, 2), func(ch *Channel) {
		built++
	})

	ch := cc.Channel(1)
	assert.Same(t, ch, cc.Channel(1))
	assert.Equal(t, 1, built)

	ids, err := cc.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, ids)
}

func TestChannelContainerForEach(t *testing.T) {
	d := newFakeInstr("scope")
	cc := NewChannelContainer("input", d, StaticChannels(1, 2, 3), nil)

	var seen []any
	err := cc.ForEach(context.Background(), func(ch *Channel) error {
		seen = append(seen, ch.ID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, seen)

	err = cc.ForEach(context.Background(), func(ch *Channel) error {
		return errors.New("boom")
	})
	require.Error(t, err)
}

func TestChannelContainerNoAvailable(t *testing.T) {
	cc := NewChannelContainer("input", newFakeInstr("scope"), nil, nil)
	_, err := cc.Available(context.Background())
	require.Error(t, err)
}

func TestClearCacheRecurses(t *testing.T) {
	d := newFakeInstr("scope")
	out := NewSubsystem("output", d)
	out.AddFeature(feature.Bool("enabled", feature.Getter("OUTP?")))
	d.AddSubsystem("output", out)
	cc := NewChannelContainer("input", d, StaticChannels(1), func(ch *Channel) {
		ch.AddFeature(feature.Float("scale", feature.Getter("CHAN{ch}:SCAL?")))
	})
	d.AddChannels("input", cc)
	d.AddFeature(feature.Str("mode", feature.Getter("MODE?")))
	d.answers["OUTP?"] = "1"
	d.answers["CHAN1:SCAL?"] = "0.5"
	d.answers["MODE?"] = "SIN"

	ctx := context.Background()
	_, err := d.GetFeat(ctx, "mode")
	require.NoError(t, err)
	_, err = out.GetFeat(ctx, "enabled")
	require.NoError(t, err)
	_, err = cc.Channel(1).GetFeat(ctx, "scale")
	require.NoError(t, err)

	snap := d.CheckCache()
	assert.Equal(t, "SIN", snap["mode"])
	assert.Equal(t, map[any]any{1: map[string]any{"scale": 0.5}}, snap["input"])

	d.ClearCache()
	assert.Empty(t, out.CheckCache())
	assert.Empty(t, cc.Channel(1).CheckCache())
	assert.Equal(t, map[string]any{}, d.CheckCache()["output"])
}

func TestFeatureWithUnitThroughCore(t *testing.T) {
	d := newFakeInstr("fungen")
	d.AddFeature(feature.Float("frequency",
		feature.Getter("FREQ?"), feature.Setter("FREQ %v"), feature.Unit("GHz")))
	d.answers["FREQ?"] = "1.5"

	v, err := d.GetFeat(context.Background(), "frequency")
	require.NoError(t, err)
	q, ok := v.(unit.Quantity)
	require.True(t, ok)
	assert.InDelta(t, 1.5, q.Value, 1e-12)
}
