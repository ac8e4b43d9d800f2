package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendRune(r string) PostGetFunc {
	return func(ctx context.Context, h Host, value any) (any, error) {
		return value.(string) + r, nil
	}
}

func runChain(t *testing.T, c *composer[PostGetFunc]) string {
	t.Helper()
	var v any = ""
	for _, fn := range c.funcs {
		var err error
		v, err = fn(context.Background(), nil, v)
		require.NoError(t, err)
	}
	return v.(string)
}

func TestComposerOrdering(t *testing.T) {
	c := &composer[PostGetFunc]{}

	require.NoError(t, c.add("b", appendRune("b"), Append()))
	require.NoError(t, c.add("d", appendRune("d"), Append()))
	require.NoError(t, c.add("a", appendRune("a"), Prepend()))
	require.NoError(t, c.add("c", appendRune("c"), Before("d")))
	require.NoError(t, c.add("e", appendRune("e"), After("d")))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, c.Names())
	assert.Equal(t, "abcde", runChain(t, c))
}

func TestComposerReplaceKeepsPosition(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.NoError(t, c.add("a", appendRune("a"), Append()))
	require.NoError(t, c.add("b", appendRune("b"), Append()))
	require.NoError(t, c.add("c", appendRune("c"), Append()))

	require.NoError(t, c.add("b", appendRune("X"), Replace()))

	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
	assert.Equal(t, "aXc", runChain(t, c))
}

func TestComposerReplaceMissing(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.Error(t, c.add("ghost", appendRune("x"), Replace()))
}

func TestComposerReAddMoves(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.NoError(t, c.add("a", appendRune("a"), Append()))
	require.NoError(t, c.add("b", appendRune("b"), Append()))

	// Re-adding "a" with Append moves it to the end.
	require.NoError(t, c.add("a", appendRune("a"), Append()))
	assert.Equal(t, []string{"b", "a"}, c.Names())
}

func TestComposerRemove(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.NoError(t, c.add("a", appendRune("a"), Append()))
	require.NoError(t, c.add("b", appendRune("b"), Append()))

	require.NoError(t, c.remove("a"))
	assert.Equal(t, []string{"b"}, c.Names())
	require.Error(t, c.remove("a"))
}

func TestComposerMissingAnchor(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.Error(t, c.add("a", appendRune("a"), Before("ghost")))
	require.Error(t, c.add("a", appendRune("a"), After("ghost")))
}

func TestComposerCloneIndependent(t *testing.T) {
	c := &composer[PostGetFunc]{}
	require.NoError(t, c.add("a", appendRune("a"), Append()))

	clone := c.clone()
	require.NoError(t, clone.add("b", appendRune("b"), Append()))

	assert.Equal(t, []string{"a"}, c.Names())
	assert.Equal(t, []string{"a", "b"}, clone.Names())
}

func TestFeatureHookIntrospection(t *testing.T) {
	f := Float("frequency", Getter("FREQ?"), Setter("FREQ %v"),
		Unit("Hz"), Extract("FREQ {} HZ"))

	assert.Equal(t, []string{"extract", "cast"}, f.PostGetHooks())
	assert.Equal(t, []string{"convert"}, f.PreSetHooks())
}

func TestFeatureConvertBeforeValidate(t *testing.T) {
	lim := mustFloatLimits(t, 0, 10)
	f := Float("voltage", Setter("VOLT %v"), Unit("V"), Limits(lim))

	assert.Equal(t, []string{"convert", "validate"}, f.PreSetHooks())
}
