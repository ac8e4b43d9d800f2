package driver

import (
	"context"
	"reflect"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/unit"
)

// ArgSpec describes the validation applied to one argument of an Action.
type ArgSpec struct {
	name     string
	unitExpr string
	hasUnit  bool
	allowed  []any
	limits   limits.Validator
	limitsID string
}

// ArgOption configures a single action argument.
type ArgOption func(*ArgSpec)

// ArgUnit declares the unit the argument is expressed in. Quantities are
// converted to it before any further validation; bare floats are assumed
// to already be in it.
func ArgUnit(expr string) ArgOption {
	return func(s *ArgSpec) {
		s.unitExpr = expr
		s.hasUnit = true
	}
}

// ArgValues restricts the argument to a discrete set of values.
func ArgValues(values ...any) ArgOption {
	return func(s *ArgSpec) { s.allowed = values }
}

// ArgLimits validates the argument against v.
func ArgLimits(v limits.Validator) ArgOption {
	return func(s *ArgSpec) { s.limits = v }
}

// ArgNamedLimits validates the argument against the limits registered on
// the host under id, resolved at call time.
func ArgNamedLimits(id string) ArgOption {
	return func(s *ArgSpec) { s.limitsID = id }
}

// Arg describes one positional argument of an Action.
func Arg(name string, opts ...ArgOption) ArgSpec {
	s := ArgSpec{name: name}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Action validates and normalizes the arguments of a driver method
// before the method body talks to the instrument. The method declares
// one Action and runs its arguments through Validate at the top.
type Action struct {
	name string
	args []ArgSpec
}

// NewAction builds an action named name with one spec per argument.
func NewAction(name string, args ...ArgSpec) *Action {
	return &Action{name: name, args: args}
}

// Name returns the action name.
func (a *Action) Name() string { return a.name }

// Validate checks args against the declared specs and returns the
// normalized values: quantities converted to the declared unit and
// collapsed to their magnitude. h supplies named limits; it may be nil
// when no argument uses ArgNamedLimits.
func (a *Action) Validate(ctx context.Context, h Limiter, args ...any) ([]any, error) {
	if len(args) != len(a.args) {
		return nil, errors.Newf("%s takes %d arguments, got %d", a.name, len(a.args), len(args))
	}

	out := make([]any, len(args))
	for i, spec := range a.args {
		v, err := a.validateArg(ctx, h, spec, args[i])
		if err != nil {
			return nil, errors.Wrapf(err, "validating argument %s of %s", spec.name, a.name)
		}
		out[i] = v
	}
	return out, nil
}

// Limiter resolves named limits at call time. *Core implements it.
type Limiter interface {
	Limits(ctx context.Context, id string) (limits.Validator, error)
}

func (a *Action) validateArg(ctx context.Context, h Limiter, spec ArgSpec, value any) (any, error) {
	if spec.hasUnit {
		v, err := toMagnitude(value, spec.unitExpr)
		if err != nil {
			return nil, err
		}
		value = v
	}

	if spec.allowed != nil {
		ok := false
		for _, allowed := range spec.allowed {
			if reflect.DeepEqual(value, allowed) {
				ok = true
				break
			}
		}
		if !ok {
			return nil, errors.Wrapf(errors.ErrLimit, "%v is not an allowed value for %s", value, spec.name)
		}
	}

	lv := spec.limits
	if lv == nil && spec.limitsID != "" {
		if h == nil {
			return nil, errors.Newf("no host to resolve limits %q", spec.limitsID)
		}
		resolved, err := h.Limits(ctx, spec.limitsID)
		if err != nil {
			return nil, err
		}
		lv = resolved
	}
	if lv != nil {
		if err := lv.Check(spec.name, value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// toMagnitude converts value to the magnitude in the unit named by expr.
func toMagnitude(value any, expr string) (any, error) {
	switch v := value.(type) {
	case unit.Quantity:
		u, err := unit.GetRegistry().Parse(expr)
		if err != nil {
			return nil, err
		}
		return v.MagnitudeIn(u)
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return nil, errors.Newf("cannot express %T in %s", value, expr)
	}
}
