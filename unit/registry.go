package unit

import (
	"sync"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/logger"
)

// Registry maps unit symbols to their definitions. A registry is safe for
// concurrent use once built; Define is not safe to call concurrently with
// Parse.
type Registry struct {
	symbols map[string]Unit
}

var (
	processRegistry *Registry
	registryMu      sync.Mutex
)

// SetRegistry installs the registry used by lantz-core. Conversion can only
// happen between units of the same registry, so this should be called before
// any driver is created. It can only be called once.
func SetRegistry(r *Registry) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if processRegistry != nil {
		return errors.New("the unit registry cannot be changed once set")
	}
	processRegistry = r
	return nil
}

// GetRegistry returns the registry in use, creating the default one if
// SetRegistry was never called.
func GetRegistry() *Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if processRegistry == nil {
		logger.Debugw("creating default unit registry")
		processRegistry = NewRegistry()
	}
	return processRegistry
}

// NewRegistry builds a registry pre-loaded with the SI base and derived
// units commonly found in instrument interfaces.
func NewRegistry() *Registry {
	r := &Registry{symbols: make(map[string]Unit)}

	base := func(sym string, dim int) {
		var d Dims
		d[dim] = 1
		r.symbols[sym] = Unit{Scale: 1, Dims: d}
	}
	base("m", dimLength)
	base("g", dimMass) // scale fixed below: SI coherent unit is kg
	base("s", dimTime)
	base("A", dimCurrent)
	base("K", dimTemp)
	base("mol", dimAmount)
	base("cd", dimLum)

	g := r.symbols["g"]
	g.Scale = 1e-3
	r.symbols["g"] = g

	derived := func(sym string, scale float64, expr string) {
		u, err := parseExpr(expr, r.symbols)
		if err != nil {
			panic(err)
		}
		u.Scale *= scale
		r.symbols[sym] = u
	}
	derived("Hz", 1, "s^-1")
	derived("N", 1, "kg*m/s^2")
	derived("Pa", 1, "N/m^2")
	derived("J", 1, "N*m")
	derived("W", 1, "J/s")
	derived("C", 1, "A*s")
	derived("V", 1, "W/A")
	derived("ohm", 1, "V/A")
	derived("Ohm", 1, "V/A")
	derived("Ω", 1, "V/A")
	derived("F", 1, "C/V")
	derived("T", 1, "V*s/m^2")
	derived("H", 1, "V*s/A")
	derived("min", 60, "s")
	derived("hr", 3600, "s")
	derived("L", 1e-3, "m^3")
	derived("bar", 1e5, "Pa")

	return r
}

// Define adds a unit symbol equal to factor times an existing expression,
// e.g. Define("inch", 0.0254, "m").
func (r *Registry) Define(symbol string, factor float64, expr string) error {
	if _, ok := r.symbols[symbol]; ok {
		return errors.Newf("unit %q already defined", symbol)
	}
	u, err := parseExpr(expr, r.symbols)
	if err != nil {
		return err
	}
	u.Scale *= factor
	u.Expr = symbol
	r.symbols[symbol] = u
	return nil
}

// Parse parses a unit expression against the registry symbols.
func (r *Registry) Parse(expr string) (Unit, error) {
	return parseExpr(expr, r.symbols)
}

// resetForTest clears the process registry. Only tests use this.
func resetForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	processRegistry = nil
}
