// Package unit provides the quantity and unit handling used by features and
// limits. Drivers declare the unit a feature is expressed in ("mV", "GHz",
// "um/s") and values convert automatically between commensurable units.
//
// Conversion is only possible between units declared in the same Registry,
// so an application should use a single registry. SetRegistry allows
// installing a custom one before any driver is created; afterwards the
// registry is fixed.
package unit

import (
	"strconv"
	"strings"

	"github.com/LabPy/lantz-core/errors"
)

// dimension indices into the exponent vector.
const (
	dimLength  = iota // metre
	dimMass           // kilogram
	dimTime           // second
	dimCurrent        // ampere
	dimTemp           // kelvin
	dimAmount         // mole
	dimLum            // candela
	numDims
)

// Dims is the exponent vector of the seven SI base dimensions.
type Dims [numDims]int8

func (d Dims) mul(o Dims) Dims {
	var r Dims
	for i := range d {
		r[i] = d[i] + o[i]
	}
	return r
}

func (d Dims) div(o Dims) Dims {
	var r Dims
	for i := range d {
		r[i] = d[i] - o[i]
	}
	return r
}

func (d Dims) pow(n int) Dims {
	var r Dims
	for i := range d {
		r[i] = d[i] * int8(n)
	}
	return r
}

// Unit is a parsed unit expression: a scale factor relative to the coherent
// SI unit of its dimensions, plus the original expression for display.
type Unit struct {
	Expr  string
	Scale float64
	Dims  Dims
}

// Dimensionless is the neutral unit.
var Dimensionless = Unit{Expr: "", Scale: 1}

// Compatible reports whether two units share the same dimensions.
func (u Unit) Compatible(o Unit) bool {
	return u.Dims == o.Dims
}

// String returns the original unit expression.
func (u Unit) String() string { return u.Expr }

// Quantity is a scalar value tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q builds a quantity from a value and a unit expression parsed with the
// process registry. It panics on an invalid expression and is intended for
// driver declarations and tests.
func Q(value float64, expr string) Quantity {
	return Quantity{Value: value, Unit: MustParse(expr)}
}

// To converts the quantity to the target unit.
func (q Quantity) To(target Unit) (Quantity, error) {
	if !q.Unit.Compatible(target) {
		return Quantity{}, errors.Newf("cannot convert %q to %q: incompatible dimensions",
			q.Unit.Expr, target.Expr)
	}
	factor := q.Unit.Scale / target.Scale
	return Quantity{Value: q.Value * factor, Unit: target}, nil
}

// MagnitudeIn returns the bare value of the quantity expressed in the target
// unit.
func (q Quantity) MagnitudeIn(target Unit) (float64, error) {
	c, err := q.To(target)
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// String renders the quantity as "<value> <unit>".
func (q Quantity) String() string {
	s := strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit.Expr == "" {
		return s
	}
	return s + " " + q.Unit.Expr
}

// Parse parses a unit expression with the process registry.
func Parse(expr string) (Unit, error) {
	return GetRegistry().Parse(expr)
}

// MustParse parses a unit expression and panics on error. Use in driver
// declarations where the expression is a literal.
func MustParse(expr string) Unit {
	u, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// parseExpr parses "mV", "um/s", "m/s^2", "V*A" against a symbol table.
func parseExpr(expr string, symbols map[string]Unit) (Unit, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Dimensionless, nil
	}

	result := Unit{Expr: trimmed, Scale: 1}
	divide := false
	token := strings.Builder{}

	apply := func(tok string, div bool) error {
		if tok == "" {
			return errors.Newf("invalid unit expression %q", expr)
		}
		u, err := resolveToken(tok, symbols)
		if err != nil {
			return err
		}
		if div {
			result.Scale /= u.Scale
			result.Dims = result.Dims.div(u.Dims)
		} else {
			result.Scale *= u.Scale
			result.Dims = result.Dims.mul(u.Dims)
		}
		return nil
	}

	for _, r := range trimmed {
		switch r {
		case '*', '.':
			if err := apply(token.String(), divide); err != nil {
				return Unit{}, err
			}
			token.Reset()
			divide = false
		case '/':
			if err := apply(token.String(), divide); err != nil {
				return Unit{}, err
			}
			token.Reset()
			divide = true
		case ' ':
			// Ignored between tokens.
		default:
			token.WriteRune(r)
		}
	}
	if err := apply(token.String(), divide); err != nil {
		return Unit{}, err
	}

	return result, nil
}

// resolveToken resolves "[prefix]symbol[^exp]" into a unit.
func resolveToken(tok string, symbols map[string]Unit) (Unit, error) {
	exp := 1
	if i := strings.IndexByte(tok, '^'); i >= 0 {
		n, err := strconv.Atoi(tok[i+1:])
		if err != nil {
			return Unit{}, errors.Newf("invalid exponent in unit token %q", tok)
		}
		exp = n
		tok = tok[:i]
	}

	base, prefixScale, err := splitPrefix(tok, symbols)
	if err != nil {
		return Unit{}, err
	}

	scale := base.Scale * prefixScale
	u := Unit{Scale: 1}
	for i := 0; i < exp; i++ {
		u.Scale *= scale
		u.Dims = u.Dims.mul(base.Dims)
	}
	if exp < 0 {
		u.Scale = 1
		u.Dims = Dims{}
		for i := 0; i > exp; i-- {
			u.Scale /= scale
			u.Dims = u.Dims.div(base.Dims)
		}
	}
	return u, nil
}

// splitPrefix interprets the token as an SI prefix plus a known symbol.
// Exact symbol matches win over prefixed interpretations so that "min"
// is minutes, not milli-inches. Prefixes are tried in a fixed
// longest-first order, so a token with two valid splits always resolves
// the same way.
func splitPrefix(tok string, symbols map[string]Unit) (Unit, float64, error) {
	if u, ok := symbols[tok]; ok {
		return u, 1, nil
	}
	for _, p := range siPrefixes {
		if strings.HasPrefix(tok, p.symbol) {
			if u, ok := symbols[tok[len(p.symbol):]]; ok {
				return u, p.scale, nil
			}
		}
	}
	return Unit{}, 0, errors.Newf("unknown unit %q", tok)
}

var siPrefixes = []struct {
	symbol string
	scale  float64
}{
	{"da", 1e1},
	{"Y", 1e24}, {"Z", 1e21}, {"E", 1e18}, {"P", 1e15}, {"T", 1e12},
	{"G", 1e9}, {"M", 1e6}, {"k", 1e3}, {"h", 1e2},
	{"d", 1e-1}, {"c", 1e-2}, {"m", 1e-3}, {"u", 1e-6}, {"µ", 1e-6},
	{"n", 1e-9}, {"p", 1e-12}, {"f", 1e-15}, {"a", 1e-18}, {"z", 1e-21}, {"y", 1e-24},
}
