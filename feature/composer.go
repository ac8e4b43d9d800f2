package feature

import (
	"github.com/LabPy/lantz-core/errors"
)

// Position describes where a named hook is inserted in a composer chain.
type Position struct {
	kind   positionKind
	anchor string
}

type positionKind int

const (
	posAppend positionKind = iota
	posPrepend
	posBefore
	posAfter
	posReplace
)

// Append inserts the hook at the end of the chain.
func Append() Position { return Position{kind: posAppend} }

// Prepend inserts the hook at the start of the chain.
func Prepend() Position { return Position{kind: posPrepend} }

// Before inserts the hook just before the hook named anchor.
func Before(anchor string) Position { return Position{kind: posBefore, anchor: anchor} }

// After inserts the hook just after the hook named anchor.
func After(anchor string) Position { return Position{kind: posAfter, anchor: anchor} }

// Replace swaps the hook carrying the same name, keeping its position.
func Replace() Position { return Position{kind: posReplace} }

// composer holds an ordered chain of named hooks. Order is the execution
// order; names let drivers splice their own hooks relative to the ones the
// feature options installed.
type composer[F any] struct {
	names []string
	funcs []F
}

func (c *composer[F]) index(name string) int {
	for i, n := range c.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (c *composer[F]) add(name string, fn F, pos Position) error {
	if i := c.index(name); i >= 0 {
		if pos.kind == posReplace {
			c.funcs[i] = fn
			return nil
		}
		// Re-adding under the same name moves the hook.
		c.removeAt(i)
	} else if pos.kind == posReplace {
		return errors.Newf("no hook named %q to replace", name)
	}

	switch pos.kind {
	case posAppend, posReplace:
		c.names = append(c.names, name)
		c.funcs = append(c.funcs, fn)
	case posPrepend:
		c.insert(0, name, fn)
	case posBefore:
		i := c.index(pos.anchor)
		if i < 0 {
			return errors.Newf("no hook named %q to anchor on", pos.anchor)
		}
		c.insert(i, name, fn)
	case posAfter:
		i := c.index(pos.anchor)
		if i < 0 {
			return errors.Newf("no hook named %q to anchor on", pos.anchor)
		}
		c.insert(i+1, name, fn)
	}
	return nil
}

func (c *composer[F]) insert(i int, name string, fn F) {
	c.names = append(c.names, "")
	copy(c.names[i+1:], c.names[i:])
	c.names[i] = name

	var zero F
	c.funcs = append(c.funcs, zero)
	copy(c.funcs[i+1:], c.funcs[i:])
	c.funcs[i] = fn
}

func (c *composer[F]) remove(name string) error {
	i := c.index(name)
	if i < 0 {
		return errors.Newf("no hook named %q to remove", name)
	}
	c.removeAt(i)
	return nil
}

func (c *composer[F]) removeAt(i int) {
	c.names = append(c.names[:i], c.names[i+1:]...)
	c.funcs = append(c.funcs[:i], c.funcs[i+1:]...)
}

// Names returns the hook names in execution order.
func (c *composer[F]) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *composer[F]) clone() *composer[F] {
	return &composer[F]{
		names: append([]string(nil), c.names...),
		funcs: append([]F(nil), c.funcs...),
	}
}
