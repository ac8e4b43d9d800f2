// Package limits provides the validators used to check feature values and
// action arguments before they reach an instrument.
//
// A validator carries optional minimum, maximum and step constraints. Float
// validators may also carry a unit so that quantities convert before
// comparison.
package limits

import (
	"math"
	"strconv"
	"strings"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/unit"
)

// stepTolerance absorbs float rounding when checking step alignment.
const stepTolerance = 1e-9

// Validator is the interface shared by all limits validators.
type Validator interface {
	// Check validates value for the named target, returning a descriptive
	// error wrapping errors.ErrLimit on failure.
	Check(name string, value any) error
}

// IntLimits validates integer values against min/max/step constraints.
type IntLimits struct {
	Min  *int
	Max  *int
	Step int
}

// NewInt builds an integer validator. At least one bound must be provided.
func NewInt(min, max *int, step int) (*IntLimits, error) {
	if min == nil && max == nil {
		return nil, errors.New("an int limits validator needs a min or a max")
	}
	return &IntLimits{Min: min, Max: max, Step: step}, nil
}

// Validate reports whether the value satisfies the constraints.
func (l *IntLimits) Validate(value int) bool {
	if l.Min != nil {
		if value < *l.Min {
			return false
		}
		if l.Step > 0 && (value-*l.Min)%l.Step != 0 {
			return false
		}
	}
	if l.Max != nil {
		if value > *l.Max {
			return false
		}
		if l.Min == nil && l.Step > 0 && (*l.Max-value)%l.Step != 0 {
			return false
		}
	}
	return true
}

// Check implements Validator.
func (l *IntLimits) Check(name string, value any) error {
	v, ok := value.(int)
	if !ok {
		return errors.Newf("limits for %s expect an int, got %T", name, value)
	}
	if l.Validate(v) {
		return nil
	}
	return limitsError(name, strconv.Itoa(v), describeInt(l))
}

// FloatLimits validates float values against min/max/step constraints,
// optionally expressed in a unit.
type FloatLimits struct {
	Min  *float64
	Max  *float64
	Step float64
	Unit unit.Unit
}

// NewFloat builds a float validator. At least one bound must be provided.
// The unit expression may be empty for bare floats.
func NewFloat(min, max *float64, step float64, unitExpr string) (*FloatLimits, error) {
	if min == nil && max == nil {
		return nil, errors.New("a float limits validator needs a min or a max")
	}
	l := &FloatLimits{Min: min, Max: max, Step: step}
	if unitExpr != "" {
		u, err := unit.Parse(unitExpr)
		if err != nil {
			return nil, err
		}
		l.Unit = u
	}
	return l, nil
}

// Validate reports whether the value satisfies the constraints. The value is
// assumed to already be expressed in the validator unit.
func (l *FloatLimits) Validate(value float64) bool {
	if l.Min != nil {
		if value < *l.Min {
			return false
		}
		if l.Step > 0 && !onStep(value-*l.Min, l.Step) {
			return false
		}
	}
	if l.Max != nil {
		if value > *l.Max {
			return false
		}
		if l.Min == nil && l.Step > 0 && !onStep(*l.Max-value, l.Step) {
			return false
		}
	}
	return true
}

// ValidateQuantity converts the quantity to the validator unit and validates
// the magnitude.
func (l *FloatLimits) ValidateQuantity(q unit.Quantity) (bool, error) {
	v, err := q.MagnitudeIn(l.Unit)
	if err != nil {
		return false, err
	}
	return l.Validate(v), nil
}

// Check implements Validator. Accepted value types are float64 and
// unit.Quantity.
func (l *FloatLimits) Check(name string, value any) error {
	switch v := value.(type) {
	case float64:
		if l.Validate(v) {
			return nil
		}
		return limitsError(name, strconv.FormatFloat(v, 'g', -1, 64), describeFloat(l))
	case unit.Quantity:
		ok, err := l.ValidateQuantity(v)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return limitsError(name, v.String(), describeFloat(l))
	default:
		return errors.Newf("limits for %s expect a float or quantity, got %T", name, value)
	}
}

// onStep checks that delta is an integer multiple of step, within tolerance
// on the fractional part of the ratio.
func onStep(delta, step float64) bool {
	ratio := math.Round(math.Abs(delta/step)*1e9) / 1e9
	_, frac := math.Modf(ratio)
	return frac < stepTolerance || frac > 1-stepTolerance
}

// limitsError builds the user-facing out-of-limits error.
func limitsError(name, value, constraints string) error {
	return errors.Wrapf(errors.ErrLimit,
		"the provided value %s is out of bounds for %s (%s)", value, name, constraints)
}

func describeInt(l *IntLimits) string {
	parts := []string{}
	if l.Min != nil {
		parts = append(parts, "min "+strconv.Itoa(*l.Min))
	}
	if l.Max != nil {
		parts = append(parts, "max "+strconv.Itoa(*l.Max))
	}
	if l.Step > 0 {
		parts = append(parts, "step "+strconv.Itoa(l.Step))
	}
	return strings.Join(parts, ", ")
}

func describeFloat(l *FloatLimits) string {
	parts := []string{}
	fmtF := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	if l.Min != nil {
		parts = append(parts, "min "+fmtF(*l.Min))
	}
	if l.Max != nil {
		parts = append(parts, "max "+fmtF(*l.Max))
	}
	if l.Step > 0 {
		parts = append(parts, "step "+fmtF(l.Step))
	}
	if l.Unit.Expr != "" {
		parts = append(parts, "unit "+l.Unit.Expr)
	}
	return strings.Join(parts, ", ")
}
