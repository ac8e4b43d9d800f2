package feature

import (
	"context"
	"strconv"
	"strings"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/unit"
)

// Mapping declares a translation between user values and the tokens the
// instrument understands. The reverse mapping is derived by inversion; use
// MappingPairs for asymmetric instruments (command ON, answer 1).
func Mapping(m map[any]string) Option {
	inverse := make(map[string]any, len(m))
	for k, v := range m {
		inverse[v] = k
	}
	return MappingPairs(m, inverse)
}

// MappingPairs declares an asymmetric mapping: toInstr translates user
// values into command tokens, fromInstr translates answers back.
func MappingPairs(toInstr map[any]string, fromInstr map[string]any) Option {
	return func(f *Feature) {
		f.mapping = toInstr
		f.inverse = fromInstr
		f.postGet.add("reverse_map", func(ctx context.Context, h Host, value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, errors.Newf("mapping expects a string answer, got %T", value)
			}
			s = strings.TrimSpace(s)
			user, ok := fromInstr[s]
			if !ok {
				return nil, errors.Newf("instrument answer %q has no mapping for %s", s, f.name)
			}
			return user, nil
		}, Append())
		f.preSet.add("map", func(ctx context.Context, h Host, value any) (any, error) {
			token, ok := toInstr[value]
			if !ok {
				return nil, errors.Newf("value %v has no mapping for %s", value, f.name)
			}
			return token, nil
		}, Append())
	}
}

// Values restricts the accepted set values to an enumeration.
func Values(values ...any) Option {
	return func(f *Feature) {
		f.allowed = values
		f.preSet.add("validate", func(ctx context.Context, h Host, value any) (any, error) {
			for _, v := range values {
				if v == value {
					return value, nil
				}
			}
			return nil, errors.Newf("allowed values for %s are %v, %v not allowed",
				f.name, values, value)
		}, Append())
	}
}

// Limits validates set values against a validator known at declaration
// time.
func Limits(v limits.Validator) Option {
	return func(f *Feature) {
		f.limitsVal = v
		f.preSet.add("validate", func(ctx context.Context, h Host, value any) (any, error) {
			if err := v.Check(f.name, value); err != nil {
				return nil, err
			}
			return value, nil
		}, Append())
	}
}

// NamedLimits validates set values against a validator computed by the
// host at set time, so it can depend on the instrument state.
func NamedLimits(id string) Option {
	return func(f *Feature) {
		f.limitsID = id
		f.preSet.add("validate", func(ctx context.Context, h Host, value any) (any, error) {
			v, err := h.Limits(ctx, id)
			if err != nil {
				return nil, err
			}
			if err := v.Check(f.name, value); err != nil {
				return nil, err
			}
			return value, nil
		}, Append())
	}
}

// Str builds a feature whose value is a string, optionally mapped or
// enumerated.
func Str(name string, opts ...Option) *Feature {
	f := New(name, opts...)
	f.postGet.add("cast", func(ctx context.Context, h Host, value any) (any, error) {
		if s, ok := value.(string); ok {
			return strings.TrimRight(s, "\r\n"), nil
		}
		return value, nil
	}, Append())
	return f
}

// Int builds a feature whose value is an int. Answers are cast after
// extraction and mapping; enumeration or limits validate writes.
func Int(name string, opts ...Option) *Feature {
	f := New(name, opts...)
	f.postGet.add("cast", func(ctx context.Context, h Host, value any) (any, error) {
		switch v := value.(type) {
		case int:
			return v, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, errors.Wrapf(err, "casting answer for %s to int", f.name)
			}
			return n, nil
		default:
			return nil, errors.Newf("cannot cast %T answer for %s to int", value, f.name)
		}
	}, Append())
	return f
}

// Unit declares the unit a Float feature is expressed in. Reads return
// unit.Quantity in that unit; writes accept unit.Quantity (converted
// before validation) or bare floats (assumed already in the unit).
func Unit(expr string) Option {
	return func(f *Feature) {
		f.unit = unit.MustParse(expr)
		f.hasUnit = true
	}
}

// Float builds a feature whose value is a float or, when Unit is given, a
// unit.Quantity. The conversion hook runs before validation so limits see
// magnitudes in the declared unit.
func Float(name string, opts ...Option) *Feature {
	f := New(name, opts...)

	if f.hasUnit {
		convert := func(ctx context.Context, h Host, value any) (any, error) {
			if q, ok := value.(unit.Quantity); ok {
				m, err := q.MagnitudeIn(f.unit)
				if err != nil {
					return nil, err
				}
				return m, nil
			}
			return value, nil
		}
		if f.preSet.index("validate") >= 0 {
			f.preSet.add("convert", convert, Before("validate"))
		} else {
			f.preSet.add("convert", convert, Prepend())
		}
	}

	f.postGet.add("cast", func(ctx context.Context, h Host, value any) (any, error) {
		var fv float64
		switch v := value.(type) {
		case float64:
			fv = v
		case string:
			var err error
			fv, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "casting answer for %s to float", f.name)
			}
		default:
			return nil, errors.Newf("cannot cast %T answer for %s to float", value, f.name)
		}
		if f.hasUnit {
			return unit.Quantity{Value: fv, Unit: f.unit}, nil
		}
		return fv, nil
	}, Append())
	return f
}

// Aliases extends a Bool feature with extra accepted set values ("on",
// 1...) resolving to true or false before the mapping applies.
func Aliases(aliases map[any]bool) Option {
	return func(f *Feature) {
		f.preSet.add("aliases", func(ctx context.Context, h Host, value any) (any, error) {
			if b, ok := value.(bool); ok {
				return b, nil
			}
			if b, ok := aliases[value]; ok {
				return b, nil
			}
			return nil, errors.Newf("value %v is not a bool or a declared alias for %s",
				value, f.name)
		}, Prepend())
	}
}

// Bool builds a boolean feature. The mapping translates true/false to the
// instrument tokens; without one, "1"/"0" and "ON"/"OFF" answers are
// recognized.
func Bool(name string, opts ...Option) *Feature {
	f := New(name, opts...)
	if f.inverse == nil {
		f.postGet.add("cast", func(ctx context.Context, h Host, value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				if b, isBool := value.(bool); isBool {
					return b, nil
				}
				return nil, errors.Newf("cannot cast %T answer for %s to bool", value, f.name)
			}
			switch strings.ToUpper(strings.TrimSpace(s)) {
			case "1", "ON", "TRUE":
				return true, nil
			case "0", "OFF", "FALSE":
				return false, nil
			}
			return nil, errors.Newf("cannot cast answer %q for %s to bool", s, f.name)
		}, Append())
	}
	return f
}

// BitNames names the bits of a Register feature. Use an empty string to
// skip a bit. Exactly 8 names are required.
type BitNames [8]string

// Register builds a feature decoding an 8-bit status byte into a
// map[string]bool keyed by bit name, and encoding such maps back.
func Register(name string, names BitNames, opts ...Option) *Feature {
	f := New(name, opts...)

	f.postGet.add("byte_to_map", func(ctx context.Context, h Host, value any) (any, error) {
		var b int
		switch v := value.(type) {
		case int:
			b = v
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, errors.Wrapf(err, "casting answer for %s to a status byte", f.name)
			}
			b = n
		default:
			return nil, errors.Newf("cannot cast %T answer for %s to a status byte", value, f.name)
		}
		out := make(map[string]bool)
		for i, n := range names {
			if n == "" {
				continue
			}
			out[n] = b&(1<<i) != 0
		}
		return out, nil
	}, Append())

	f.preSet.add("map_to_byte", func(ctx context.Context, h Host, value any) (any, error) {
		m, ok := value.(map[string]bool)
		if !ok {
			return nil, errors.Newf("register %s expects a map[string]bool, got %T", f.name, value)
		}
		b := 0
		for k, set := range m {
			if !set {
				continue
			}
			i := bitIndex(names, k)
			if i < 0 {
				return nil, errors.Newf("register %s has no bit named %q", f.name, k)
			}
			b |= 1 << i
		}
		return b, nil
	}, Append())

	return f
}

func bitIndex(names BitNames, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
