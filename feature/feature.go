// Package feature implements the declarative instrument properties at the
// center of lantz-core.
//
// A Feature describes one property of an instrument (output voltage, center
// frequency, channel enabled...) as a pair of commands plus a processing
// pipeline. Reads run pre-get hooks, the get stage, then post-get hooks;
// writes run pre-set hooks, the set stage, then post-set hooks. Hooks are
// named and ordered so drivers can splice their own steps between the ones
// installed by the typed constructors (mapping, enumeration, limits, unit
// conversion, casting).
//
// Values are cached on the host driver: a read returns the cached value
// when present, a write is skipped when the cached value equals the new
// one. Retryable communication errors trigger a reconnect and a bounded
// number of new attempts.
package feature

import (
	"context"
	"reflect"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/unit"
)

// Host is what a feature needs from the driver it lives on. driver.Core
// implements it; subsystems and channels pipe the communication methods to
// their parent.
type Host interface {
	// Name identifies the driver in errors and logs.
	Name() string

	// Lock and Unlock guard the communication channel and the cache.
	// Get and Set hold the lock for the whole pipeline.
	Lock()
	Unlock()

	// UseCache reports whether feature values may be cached.
	UseCache() bool
	// CachedValue returns the cached value of a feature, if any.
	CachedValue(feature string) (any, bool)
	// StoreCache caches a feature value.
	StoreCache(feature string, value any)
	// DropCache discards the cached values of the named features. Dotted
	// names reach subsystems and channels.
	DropCache(features ...string)

	// Limits returns the named limits validator, computing and caching it
	// on first use. Getters may talk to the instrument, so Limits must be
	// callable without the host lock; Set resolves named limits before
	// locking.
	Limits(ctx context.Context, id string) (limits.Validator, error)
	// DropLimits discards cached named limits.
	DropLimits(ids ...string)

	// DefaultGetFeature queries the instrument with the feature getter
	// command and returns the raw answer.
	DefaultGetFeature(ctx context.Context, f *Feature, cmd string) (string, error)
	// DefaultSetFeature writes the feature setter command formatted with
	// the value and returns the raw response, if any.
	DefaultSetFeature(ctx context.Context, f *Feature, cmd string, value any) (string, error)
	// CheckOperation verifies the instrument accepted a write.
	CheckOperation(ctx context.Context, f *Feature, value, iValue any, response string) error

	// ReopenConnection closes and reopens a suspicious connection between
	// retry attempts.
	ReopenConnection(ctx context.Context) error
}

// Hook signatures for the pipeline stages.
type (
	// PreGetFunc runs checks before querying the instrument.
	PreGetFunc func(ctx context.Context, h Host) error
	// PostGetFunc transforms the value returned by the instrument.
	PostGetFunc func(ctx context.Context, h Host, value any) (any, error)
	// PreSetFunc transforms or validates the value before writing it.
	PreSetFunc func(ctx context.Context, h Host, value any) (any, error)
	// PostSetFunc runs after a write; value is the user value, iValue the
	// transformed value actually written, response the raw answer.
	PostSetFunc func(ctx context.Context, h Host, value, iValue any, response string) error
	// GetFunc is the get stage itself.
	GetFunc func(ctx context.Context, h Host) (any, error)
	// SetFunc is the set stage itself.
	SetFunc func(ctx context.Context, h Host, value any) (string, error)
)

// Feature is a declarative instrument property. Build one with New or one
// of the typed constructors (Bool, Int, Float, Str, Register), then attach
// it to a driver core.
//
// A Feature holds no per-instrument state: the value cache lives on the
// host, so one Feature can serve every channel of a container.
type Feature struct {
	name    string
	getter  string
	setter  string
	retries int

	readable bool
	writable bool

	getFunc GetFunc
	setFunc SetFunc

	preGet  *composer[PreGetFunc]
	postGet *composer[PostGetFunc]
	preSet  *composer[PreSetFunc]
	postSet *composer[PostSetFunc]

	discardFeatures []string
	discardLimits   []string

	// set by typed constructors, used by Action and documentation
	unit      unit.Unit
	hasUnit   bool
	allowed   []any
	mapping   map[any]string
	inverse   map[string]any
	limitsVal limits.Validator
	limitsID  string
}

// Option configures a Feature at construction time.
type Option func(*Feature)

// Getter declares the command used to query the value and marks the
// feature readable.
func Getter(cmd string) Option {
	return func(f *Feature) {
		f.getter = cmd
		f.readable = true
	}
}

// Setter declares the command used to write the value and marks the
// feature writable. The command is a fmt format string receiving the
// transformed value.
func Setter(cmd string) Option {
	return func(f *Feature) {
		f.setter = cmd
		f.writable = true
	}
}

// Readable marks the feature readable without a command, for drivers that
// override the get stage with OverrideGet.
func Readable() Option {
	return func(f *Feature) { f.readable = true }
}

// Writable marks the feature writable without a command, for drivers that
// override the set stage with OverrideSet.
func Writable() Option {
	return func(f *Feature) { f.writable = true }
}

// Retries sets how many times a failed communication is re-attempted after
// reopening the connection.
func Retries(n int) Option {
	return func(f *Feature) { f.retries = n }
}

// CheckGet installs a predicate run before any query.
func CheckGet(check func(ctx context.Context, h Host) error) Option {
	return func(f *Feature) {
		f.preGet.add("checks", PreGetFunc(check), Prepend())
	}
}

// CheckSet installs a predicate run before any write. The returned value
// replaces the input, allowing the check to normalize it.
func CheckSet(check func(ctx context.Context, h Host, value any) (any, error)) Option {
	return func(f *Feature) {
		f.preSet.add("checks", PreSetFunc(check), Prepend())
	}
}

// Discard lists features whose cached values are dropped after a
// successful write of this feature.
func Discard(features ...string) Option {
	return func(f *Feature) {
		f.discardFeatures = append(f.discardFeatures, features...)
	}
}

// DiscardLimits lists named limits whose cached validators are dropped
// after a successful write of this feature.
func DiscardLimits(ids ...string) Option {
	return func(f *Feature) {
		f.discardLimits = append(f.discardLimits, ids...)
	}
}

// Extract installs a post-get hook that pulls the interesting part out of
// the instrument answer using a pattern with a single {} placeholder, e.g.
// "FREQ {} HZ".
func Extract(pattern string) Option {
	return func(f *Feature) {
		ex := mustExtractor(pattern)
		f.postGet.add("extract", func(ctx context.Context, h Host, value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, errors.Newf("extract expects a string answer, got %T", value)
			}
			return ex.apply(s)
		}, Prepend())
	}
}

// New builds a bare feature. Most drivers want a typed constructor instead:
// bare features move raw strings with no casting or validation.
func New(name string, opts ...Option) *Feature {
	f := &Feature{
		name:    name,
		preGet:  &composer[PreGetFunc]{},
		postGet: &composer[PostGetFunc]{},
		preSet:  &composer[PreSetFunc]{},
		postSet: &composer[PostSetFunc]{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the feature name.
func (f *Feature) Name() string { return f.name }

// Readable reports whether the feature can be read.
func (f *Feature) Readable() bool { return f.readable }

// Writable reports whether the feature can be written.
func (f *Feature) Writable() bool { return f.writable }

// Unit returns the declared unit and whether one was declared.
func (f *Feature) Unit() (unit.Unit, bool) { return f.unit, f.hasUnit }

// OverrideGet replaces the get stage, for values that cannot be obtained
// with a single query.
func (f *Feature) OverrideGet(fn GetFunc) {
	f.getFunc = fn
	f.readable = true
}

// OverrideSet replaces the set stage.
func (f *Feature) OverrideSet(fn SetFunc) {
	f.setFunc = fn
	f.writable = true
}

// ModifyPreGet splices a named hook into the pre-get chain.
func (f *Feature) ModifyPreGet(name string, fn PreGetFunc, pos Position) error {
	return f.preGet.add(name, fn, pos)
}

// ModifyPostGet splices a named hook into the post-get chain.
func (f *Feature) ModifyPostGet(name string, fn PostGetFunc, pos Position) error {
	return f.postGet.add(name, fn, pos)
}

// ModifyPreSet splices a named hook into the pre-set chain.
func (f *Feature) ModifyPreSet(name string, fn PreSetFunc, pos Position) error {
	return f.preSet.add(name, fn, pos)
}

// ModifyPostSet splices a named hook into the post-set chain.
func (f *Feature) ModifyPostSet(name string, fn PostSetFunc, pos Position) error {
	return f.postSet.add(name, fn, pos)
}

// RemovePreSet removes a named hook from the pre-set chain.
func (f *Feature) RemovePreSet(name string) error { return f.preSet.remove(name) }

// RemovePostGet removes a named hook from the post-get chain.
func (f *Feature) RemovePostGet(name string) error { return f.postGet.remove(name) }

// PreGetHooks returns the pre-get hook names in execution order.
func (f *Feature) PreGetHooks() []string { return f.preGet.Names() }

// PostGetHooks returns the post-get hook names in execution order.
func (f *Feature) PostGetHooks() []string { return f.postGet.Names() }

// PreSetHooks returns the pre-set hook names in execution order.
func (f *Feature) PreSetHooks() []string { return f.preSet.Names() }

// Clone returns an independent copy of the feature sharing no mutable
// state, so a driver variant can splice hooks without affecting the base
// declaration.
func (f *Feature) Clone() *Feature {
	c := *f
	c.preGet = f.preGet.clone()
	c.postGet = f.postGet.clone()
	c.preSet = f.preSet.clone()
	c.postSet = f.postSet.clone()
	c.discardFeatures = append([]string(nil), f.discardFeatures...)
	c.discardLimits = append([]string(nil), f.discardLimits...)
	c.allowed = append([]any(nil), f.allowed...)
	return &c
}

// Get reads the feature value through the pipeline, honoring the cache.
func (f *Feature) Get(ctx context.Context, h Host) (any, error) {
	if !f.readable {
		return nil, errors.Wrapf(errors.ErrNotSupported, "feature %s of %s is not readable",
			f.name, h.Name())
	}

	h.Lock()
	defer h.Unlock()

	if v, ok := h.CachedValue(f.name); ok {
		return v, nil
	}

	v, err := f.getChain(ctx, h)
	if err != nil {
		return nil, errors.Wrapf(err, "getting feature %s of %s", f.name, h.Name())
	}
	if h.UseCache() {
		h.StoreCache(f.name, v)
	}
	return v, nil
}

// Set writes the feature value through the pipeline, honoring the cache.
func (f *Feature) Set(ctx context.Context, h Host, value any) error {
	if !f.writable {
		return errors.Wrapf(errors.ErrNotSupported, "feature %s of %s is not writable",
			f.name, h.Name())
	}

	// Named limits getters may query the instrument, which takes the
	// host lock itself. Resolve them here, before the pipeline locks,
	// so the validate hook hits the cached validator.
	if f.limitsID != "" {
		if _, err := h.Limits(ctx, f.limitsID); err != nil {
			return errors.Wrapf(err, "setting feature %s of %s", f.name, h.Name())
		}
	}

	h.Lock()
	defer h.Unlock()

	if cached, ok := h.CachedValue(f.name); ok && reflect.DeepEqual(cached, value) {
		return nil
	}

	if err := f.setChain(ctx, h, value); err != nil {
		return errors.Wrapf(err, "setting feature %s of %s", f.name, h.Name())
	}
	if h.UseCache() {
		h.StoreCache(f.name, value)
	}
	if len(f.discardFeatures) > 0 {
		h.DropCache(f.discardFeatures...)
	}
	if len(f.discardLimits) > 0 {
		h.DropLimits(f.discardLimits...)
	}
	return nil
}

// getChain runs pre-get hooks, the retried get stage and post-get hooks.
func (f *Feature) getChain(ctx context.Context, h Host) (any, error) {
	for _, hook := range f.preGet.funcs {
		if err := hook(ctx, h); err != nil {
			return nil, err
		}
	}

	var value any
	err := f.withRetries(ctx, h, func() error {
		var err error
		if f.getFunc != nil {
			value, err = f.getFunc(ctx, h)
		} else {
			value, err = h.DefaultGetFeature(ctx, f, f.getter)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, hook := range f.postGet.funcs {
		var err error
		if value, err = hook(ctx, h, value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// setChain runs pre-set hooks, the retried set stage and post-set hooks.
func (f *Feature) setChain(ctx context.Context, h Host, value any) error {
	iValue := value
	for _, hook := range f.preSet.funcs {
		var err error
		if iValue, err = hook(ctx, h, iValue); err != nil {
			return err
		}
	}

	var response string
	err := f.withRetries(ctx, h, func() error {
		var err error
		if f.setFunc != nil {
			response, err = f.setFunc(ctx, h, iValue)
		} else {
			response, err = h.DefaultSetFeature(ctx, f, f.setter, iValue)
		}
		return err
	})
	if err != nil {
		return err
	}

	for _, hook := range f.postSet.funcs {
		if err := hook(ctx, h, value, iValue, response); err != nil {
			return err
		}
	}
	return h.CheckOperation(ctx, f, value, iValue, response)
}

// withRetries runs op, reopening the connection and retrying on retryable
// errors up to the configured count.
func (f *Feature) withRetries(ctx context.Context, h Host, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= f.retries || !errors.IsRetryable(err) {
			return err
		}
		if rerr := h.ReopenConnection(ctx); rerr != nil {
			return errors.Wrapf(err, "and reopening the connection failed: %v", rerr)
		}
	}
}
